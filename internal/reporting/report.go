package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"selfish-mining-lab/internal/domain"
)

// Report represents the attack and defense analysis report.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Params      ParamsSection

	// Core runs: honest baseline, undefended, defended
	CoreRuns []RunRow

	// Sweep (ascending alpha)
	SweepID                string
	Sweep                  []SweepRow
	OptimalAlpha           float64
	MaxEfficiency          float64
	ProfitabilityThreshold float64

	// Defense comparison (configured strategy order)
	DefenseBaselineEfficiency float64
	Defenses                  []DefenseRow
	BestDefense               string

	// Attack overlays
	ASIC       []ASICRow
	MEV        []MEVRow
	Latency    []LatencyRow
	CrossChain []CrossChainRow
	Pools      []PoolRow
	Combined   *domain.CombinedAdvantage

	// Persisted runs by kind (sorted by kind)
	StoredRuns []KindCount

	Diagnostics []string
	Errors      []string
}

// ParamsSection echoes the analysis parameters.
type ParamsSection struct {
	Alpha        float64
	GammaAttack  float64
	GammaDefense float64
	Rounds       int
	Seed         uint64
	BlockReward  decimal.Decimal
	AvgTxFee     decimal.Decimal
}

// RunRow summarises one simulation run.
type RunRow struct {
	Label           string
	Alpha           float64
	Gamma           float64
	AttackerBlocks  int
	HonestBlocks    int
	StaleBlocks     int
	RelativeReward  float64
	Efficiency      float64
	AttackerRevenue decimal.Decimal // BTC
}

// SweepRow is one sweep grid point.
type SweepRow struct {
	Alpha                 float64
	EfficiencyNoDefense   float64
	EfficiencyWithDefense float64
	AnalyticEfficiency    float64
	DefenseReduction      float64 // no-defense minus with-defense efficiency
	RevenueAdvantage      decimal.Decimal
	Optimal               bool
}

// DefenseRow is one defense strategy outcome.
type DefenseRow struct {
	Key            string
	Name           string
	GammaDefense   float64
	Efficiency     float64
	ImprovementPct float64
	Rationale      string
}

// ASICRow is one ASIC multiplier outcome.
type ASICRow struct {
	Multiplier           float64
	AlphaEffective       float64
	Efficiency           float64
	ComputationAdvantage float64
	PowerCostRatio       float64
	ThreatLevel          domain.ThreatLevel
}

// MEVRow is one MEV extraction probability outcome.
type MEVRow struct {
	Probability        float64
	BaseRevenue        decimal.Decimal
	MEVRevenue         decimal.Decimal
	EnhancedRevenue    decimal.Decimal
	HonestRevenue      decimal.Decimal
	AdvantageVsHonest  float64
	RevenuePerHashrate float64
}

// LatencyRow is one network delay outcome.
type LatencyRow struct {
	DelayMs             float64
	DelayRatio          float64
	GammaEffective      float64
	AttackerEfficiency  float64
	TimeAdvantageFactor float64
	AdvantageOverHonest float64
	RevenueAdvantage    decimal.Decimal
	ThreatLevel         domain.ThreatLevel
}

// CrossChainRow is one chain-count outcome.
type CrossChainRow struct {
	NumChains        int
	TotalAfterCost   decimal.Decimal
	MultiplierEffect float64
	OverheadPct      float64
}

// PoolRow is one pool-count outcome.
type PoolRow struct {
	NumPools         int
	AlphaEffective   float64
	CoordinationLoss float64
	Efficiency       float64
}

// KindCount counts persisted runs of one kind.
type KindCount struct {
	Kind  domain.RunKind
	Count int
}
