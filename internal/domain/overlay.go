package domain

// ThreatLevel classifies an efficiency advantage.
type ThreatLevel string

// Threat levels, ordered by severity.
const (
	ThreatLow      ThreatLevel = "low"
	ThreatModerate ThreatLevel = "moderate"
	ThreatHigh     ThreatLevel = "high"
	ThreatExtreme  ThreatLevel = "extreme"
)

// OverlayResult is the common view of every attack overlay: a set of named
// numeric fields plus the primary simulation the overlay ran.
type OverlayResult interface {
	// Kind identifies the overlay.
	Kind() RunKind
	// Fields returns the overlay's named numeric outputs.
	Fields() map[string]float64
	// Simulation returns the primary attacker simulation.
	Simulation() SimulationResult
}

// ASICResult is the output of the ASIC advantage overlay.
type ASICResult struct {
	AlphaComputation float64 `json:"alpha_computation"`
	ASICMultiplier   float64 `json:"asic_multiplier"`
	AlphaEffective   float64 `json:"alpha_effective"`
	Gamma            float64 `json:"gamma"`

	HonestBaseline SimulationResult `json:"honest_baseline"`
	Attack         SimulationResult `json:"attacker_result"`

	PowerCostRatio       float64     `json:"asic_power_efficiency"` // 1 / multiplier
	EfficiencyAdvantage  float64     `json:"efficiency_advantage_with_asic"`
	ComputationAdvantage float64     `json:"computation_advantage"` // relative reward / alpha_computation
	ThreatLevel          ThreatLevel `json:"threat_level"`
}

func (r *ASICResult) Kind() RunKind                { return RunKindASIC }
func (r *ASICResult) Simulation() SimulationResult { return r.Attack }

func (r *ASICResult) Fields() map[string]float64 {
	return map[string]float64{
		"alpha_computation":     r.AlphaComputation,
		"asic_multiplier":       r.ASICMultiplier,
		"alpha_effective":       r.AlphaEffective,
		"gamma_effective":       r.Gamma,
		"asic_power_efficiency": r.PowerCostRatio,
		"efficiency_advantage":  r.EfficiencyAdvantage,
		"computation_advantage": r.ComputationAdvantage,
	}
}

// MEVResult is the output of the MEV extraction overlay.
type MEVResult struct {
	Alpha                 float64 `json:"alpha"`
	MEVExtractProbability float64 `json:"mev_extract_probability"`
	AvgMEVPerBlock        float64 `json:"avg_mev_per_block"`
	Gamma                 float64 `json:"gamma"`

	Attack SimulationResult `json:"attacker_result"`

	ExpectedMEVBlocks        float64 `json:"mev_extractable_blocks"`
	BaseRevenue              float64 `json:"base_revenue_btc"`
	MEVRevenue               float64 `json:"mev_revenue_btc"`
	EnhancedRevenue          float64 `json:"total_enhanced_revenue_btc"`
	HonestRevenue            float64 `json:"honest_revenue_btc"`
	RevenueAdvantageVsHonest float64 `json:"revenue_advantage_vs_honest"`
	RevenuePerHashrate       float64 `json:"revenue_per_hashrate"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

func (r *MEVResult) Kind() RunKind                { return RunKindMEV }
func (r *MEVResult) Simulation() SimulationResult { return r.Attack }

func (r *MEVResult) Fields() map[string]float64 {
	return map[string]float64{
		"alpha_effective":             r.Alpha,
		"gamma_effective":             r.Gamma,
		"mev_extractable_blocks":      r.ExpectedMEVBlocks,
		"base_revenue_btc":            r.BaseRevenue,
		"mev_revenue_btc":             r.MEVRevenue,
		"total_enhanced_revenue_btc":  r.EnhancedRevenue,
		"honest_revenue_btc":          r.HonestRevenue,
		"revenue_advantage_vs_honest": r.RevenueAdvantageVsHonest,
		"revenue_per_hashrate":        r.RevenuePerHashrate,
	}
}

// LatencyResult is the output of the latency-to-advantage overlay.
type LatencyResult struct {
	Alpha          float64 `json:"alpha"`
	NetworkDelayMs float64 `json:"network_delay_ms"`
	BlockTimeSec   float64 `json:"block_time_sec"`
	Gamma          float64 `json:"gamma"`

	DelayRatio     float64 `json:"delay_ratio"`
	GammaEffective float64 `json:"gamma_effective"`

	Attack         SimulationResult `json:"attacker_result"`
	ZeroDelay      SimulationResult `json:"zero_delay_result"`
	HonestBaseline SimulationResult `json:"honest_baseline"`

	AttackerEfficiency  float64     `json:"attacker_efficiency"`
	ZeroDelayEfficiency float64     `json:"zero_delay_efficiency"`
	HonestBaselineRatio float64     `json:"honest_baseline_ratio"`
	TimeAdvantageFactor float64     `json:"time_advantage_factor"` // vs zero-delay run
	AdvantageOverHonest float64     `json:"advantage_over_honest"` // vs honest mining
	RevenueAdvantage    float64     `json:"revenue_advantage_btc"`
	ThreatLevel         ThreatLevel `json:"threat_level"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

func (r *LatencyResult) Kind() RunKind                { return RunKindLatency }
func (r *LatencyResult) Simulation() SimulationResult { return r.Attack }

func (r *LatencyResult) Fields() map[string]float64 {
	return map[string]float64{
		"alpha_effective":       r.Alpha,
		"delay_ratio":           r.DelayRatio,
		"gamma_effective":       r.GammaEffective,
		"attacker_efficiency":   r.AttackerEfficiency,
		"zero_delay_efficiency": r.ZeroDelayEfficiency,
		"honest_baseline_ratio": r.HonestBaselineRatio,
		"time_advantage_factor": r.TimeAdvantageFactor,
		"advantage_over_honest": r.AdvantageOverHonest,
		"revenue_advantage_btc": r.RevenueAdvantage,
	}
}

// CrossChainResult is the output of the multi-chain composition overlay.
type CrossChainResult struct {
	Alpha          float64 `json:"alpha"`
	Gamma          float64 `json:"gamma"`
	NumChains      int     `json:"num_chains"`
	RoundsPerChain int     `json:"rounds_per_chain"`

	CoordinationCostPerChain float64 `json:"coordination_cost_per_chain"`
	CoordinationOverhead     float64 `json:"coordination_overhead"`

	Chains      []SimulationResult `json:"results_per_chain"`
	SingleChain SimulationResult   `json:"single_chain_result"`

	SingleChainRevenue float64 `json:"single_chain_btc"`
	TotalBeforeCost    float64 `json:"multi_chain_total_before_cost_btc"`
	TotalAfterCost     float64 `json:"multi_chain_total_after_cost_btc"`
	MultiplierEffect   float64 `json:"multiplier_effect"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

func (r *CrossChainResult) Kind() RunKind                { return RunKindCrossChain }
func (r *CrossChainResult) Simulation() SimulationResult { return r.SingleChain }

// CoordinationOverheadPct is the overhead in percent.
func (r *CrossChainResult) CoordinationOverheadPct() float64 {
	return r.CoordinationOverhead * 100
}

func (r *CrossChainResult) Fields() map[string]float64 {
	return map[string]float64{
		"alpha_effective":                   r.Alpha,
		"gamma_effective":                   r.Gamma,
		"num_chains":                        float64(r.NumChains),
		"coordination_overhead_percent":     r.CoordinationOverheadPct(),
		"single_chain_btc":                  r.SingleChainRevenue,
		"multi_chain_total_before_cost_btc": r.TotalBeforeCost,
		"multi_chain_total_after_cost_btc":  r.TotalAfterCost,
		"multiplier_effect":                 r.MultiplierEffect,
	}
}

// PoolResult is the output of the cooperating-pools overlay.
type PoolResult struct {
	NumPools         int     `json:"num_pools"`
	AlphaNominal     float64 `json:"alpha"`
	AlphaEffective   float64 `json:"alpha_effective"`
	CoordinationLoss float64 `json:"coordination_loss"`
	Gamma            float64 `json:"gamma"`

	Attack              SimulationResult `json:"attacker_result"`
	EfficiencyAdvantage float64          `json:"efficiency_advantage"` // vs nominal alpha
}

func (r *PoolResult) Kind() RunKind                { return RunKindPool }
func (r *PoolResult) Simulation() SimulationResult { return r.Attack }

func (r *PoolResult) Fields() map[string]float64 {
	return map[string]float64{
		"num_pools":            float64(r.NumPools),
		"alpha_effective":      r.AlphaEffective,
		"gamma_effective":      r.Gamma,
		"coordination_loss":    r.CoordinationLoss,
		"efficiency_advantage": r.EfficiencyAdvantage,
	}
}

// Compile-time interface checks.
var (
	_ OverlayResult = (*ASICResult)(nil)
	_ OverlayResult = (*MEVResult)(nil)
	_ OverlayResult = (*LatencyResult)(nil)
	_ OverlayResult = (*CrossChainResult)(nil)
	_ OverlayResult = (*PoolResult)(nil)
)
