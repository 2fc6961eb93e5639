package domain

// DefensePair is an undefended run and a defended run over the same seed.
// When defense is disabled, Defended repeats Undefended.
type DefensePair struct {
	Undefended     SimulationResult `json:"no_defense"`
	Defended       SimulationResult `json:"with_defense"`
	DefenseEnabled bool             `json:"defense_enabled"`
}

// SweepPoint is one grid point of an alpha sweep.
type SweepPoint struct {
	Index int     `json:"index"`
	Alpha float64 `json:"alpha"`
	Seed  uint64  `json:"seed"`

	NoDefense   SimulationResult `json:"no_defense"`
	WithDefense SimulationResult `json:"with_defense"`

	EfficiencyNoDefense   float64 `json:"efficiency_no_defense"`
	EfficiencyWithDefense float64 `json:"efficiency_with_defense"`
	AnalyticEfficiency    float64 `json:"analytic_efficiency"`

	// RevenueAdvantage is attacker revenue over its fair share, in BTC.
	RevenueAdvantage float64 `json:"revenue_advantage_btc"`
}

// SweepParams describes an alpha sweep.
type SweepParams struct {
	AlphaMin     float64 `json:"alpha_min"`
	AlphaMax     float64 `json:"alpha_max"`
	AlphaSteps   int     `json:"alpha_steps"`
	GammaAttack  float64 `json:"gamma_attack"`
	GammaDefense float64 `json:"gamma_defense"`
	Rounds       int     `json:"rounds"`
	Seed         *uint64 `json:"seed,omitempty"`
}

// SweepResult is the full output of an alpha sweep. Points are in
// ascending alpha order.
type SweepResult struct {
	SweepID string      `json:"sweep_id"`
	Params  SweepParams `json:"params"`

	Points []SweepPoint `json:"points"`

	OptimalAlpha  float64 `json:"optimal_alpha"`
	MaxEfficiency float64 `json:"max_efficiency"`

	// ProfitabilityThreshold is the analytic alpha above which selfish
	// mining beats honest mining at GammaAttack.
	ProfitabilityThreshold float64 `json:"profitability_threshold"`
}

// SweepProgress is published after each completed grid point.
type SweepProgress struct {
	SweepID   string     `json:"sweep_id"`
	Completed int        `json:"completed"`
	Total     int        `json:"total"`
	Point     SweepPoint `json:"point"`
}

// DefenseStrategy is a named network-level mitigation expressed as a
// resulting tie-break fraction.
type DefenseStrategy struct {
	Key          string  `json:"key" yaml:"key"`
	Name         string  `json:"name" yaml:"name"`
	GammaDefense float64 `json:"gamma_defense" yaml:"gamma_defense"`
	Rationale    string  `json:"rationale" yaml:"rationale"`
}

// DefenseOutcome is one row of a defense comparison.
type DefenseOutcome struct {
	Strategy       DefenseStrategy  `json:"strategy"`
	Result         SimulationResult `json:"result"`
	Efficiency     float64          `json:"efficiency"`
	ImprovementPct float64          `json:"improvement_pct"`
}

// DefenseComparison ranks mitigations against a shared undefended baseline.
type DefenseComparison struct {
	Alpha       float64 `json:"alpha"`
	GammaAttack float64 `json:"gamma_attack"`
	Rounds      int     `json:"rounds"`
	Seed        uint64  `json:"seed"`

	Baseline           SimulationResult `json:"baseline"`
	BaselineEfficiency float64          `json:"baseline_efficiency"`

	Outcomes []DefenseOutcome `json:"outcomes"`
}

// Best returns the outcome with the highest improvement, or false when
// there are no outcomes.
func (c DefenseComparison) Best() (DefenseOutcome, bool) {
	if len(c.Outcomes) == 0 {
		return DefenseOutcome{}, false
	}
	best := c.Outcomes[0]
	for _, o := range c.Outcomes[1:] {
		if o.ImprovementPct > best.ImprovementPct {
			best = o
		}
	}
	return best, true
}

// ReplicaSummary aggregates efficiency over independently seeded replicas.
type ReplicaSummary struct {
	Alpha    float64 `json:"alpha"`
	Gamma    float64 `json:"gamma"`
	Rounds   int     `json:"rounds"`
	Replicas int     `json:"replicas"`

	MeanEfficiency   float64 `json:"mean_efficiency"`
	StddevEfficiency float64 `json:"stddev_efficiency"`
	P10Efficiency    float64 `json:"p10_efficiency"`
	MedianEfficiency float64 `json:"median_efficiency"`
	P90Efficiency    float64 `json:"p90_efficiency"`
	MinEfficiency    float64 `json:"min_efficiency"`
	MaxEfficiency    float64 `json:"max_efficiency"`

	Efficiencies []float64 `json:"efficiencies"`
}
