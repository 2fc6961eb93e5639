package domain

// CombinedAdvantage multiplies the per-vector factors of an attacker that
// holds every advantage at once. The factors are not independent, so Value
// is an indicative upper envelope rather than a simulated outcome.
type CombinedAdvantage struct {
	ASICMultiplier float64 `json:"asic_multiplier"`
	DelayMs        float64 `json:"network_delay_ms"`
	MEVProbability float64 `json:"mev_extract_probability"`
	NumChains      int     `json:"num_chains"`

	ASICEfficiency      float64 `json:"asic_efficiency"`
	TimeAdvantageFactor float64 `json:"time_advantage_factor"`
	MEVUplift           float64 `json:"mev_uplift"`   // enhanced / base revenue
	ChainFactor         float64 `json:"chain_factor"` // multiplier / num_chains

	Value     float64 `json:"value"`
	ExcessPct float64 `json:"excess_pct"` // (Value - 1) * 100
}

// Analysis is the output of a full analysis run.
type Analysis struct {
	GeneratedAt int64 `json:"generated_at"` // Unix ms

	Alpha        float64 `json:"alpha"`
	GammaAttack  float64 `json:"gamma_attack"`
	GammaDefense float64 `json:"gamma_defense"`
	Rounds       int     `json:"rounds"`
	Seed         uint64  `json:"seed"`

	Baseline    SimulationResult   `json:"baseline"`
	DefensePair DefensePair        `json:"defense_pair"`
	Sweep       *SweepResult       `json:"sweep,omitempty"`
	Defense     *DefenseComparison `json:"defense,omitempty"`

	ASIC       []*ASICResult       `json:"asic,omitempty"`
	MEV        []*MEVResult        `json:"mev,omitempty"`
	Latency    []*LatencyResult    `json:"latency,omitempty"`
	CrossChain []*CrossChainResult `json:"cross_chain,omitempty"`
	Pools      []*PoolResult       `json:"pools,omitempty"`
	Combined   *CombinedAdvantage  `json:"combined,omitempty"`

	RunsPersisted   int      `json:"runs_persisted"`
	PointsPersisted int      `json:"points_persisted"`
	Errors          []string `json:"errors,omitempty"`
}
