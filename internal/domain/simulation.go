package domain

import "fmt"

// Default per-block economics (BTC).
const (
	DefaultBlockReward      = 6.25
	DefaultAvgTxFeePerBlock = 0.5
)

// SimulationResult holds the block counts of one simulation run.
// Derived ratios are methods so every consumer computes them from the
// same counts.
type SimulationResult struct {
	Alpha  float64 `json:"alpha"`  // tracked party's hashpower share
	Gamma  float64 `json:"gamma"`  // tie-race advantage
	Rounds int     `json:"rounds"` // settled main-chain heights
	Seed   uint64  `json:"seed"`   // seed of the consumed random stream

	AttackerBlocks int `json:"attacker_blocks"`
	HonestBlocks   int `json:"honest_blocks"`
	StaleBlocks    int `json:"stale_blocks"` // orphaned during forks, not credited

	BlockReward      float64 `json:"block_reward"`
	AvgTxFeePerBlock float64 `json:"avg_tx_fee_per_block"`
}

// AttackerRelativeReward is attacker_blocks / rounds.
func (r SimulationResult) AttackerRelativeReward() float64 {
	if r.Rounds == 0 {
		return 0
	}
	return float64(r.AttackerBlocks) / float64(r.Rounds)
}

// HonestRelativeReward is 1 - AttackerRelativeReward.
func (r SimulationResult) HonestRelativeReward() float64 {
	if r.Rounds == 0 {
		return 0
	}
	return 1 - r.AttackerRelativeReward()
}

// PerBlockReward is block reward plus average fees.
func (r SimulationResult) PerBlockReward() float64 {
	return r.BlockReward + r.AvgTxFeePerBlock
}

// AttackerRevenue is the attacker's currency-denominated revenue.
func (r SimulationResult) AttackerRevenue() float64 {
	return Revenue(r.AttackerBlocks, r.BlockReward, r.AvgTxFeePerBlock)
}

// HonestRevenue is the honest miners' currency-denominated revenue.
func (r SimulationResult) HonestRevenue() float64 {
	return Revenue(r.HonestBlocks, r.BlockReward, r.AvgTxFeePerBlock)
}

// FairShareRevenue is what the attacker would earn at exactly its hashpower
// share of the settled heights.
func (r SimulationResult) FairShareRevenue() float64 {
	return r.Alpha * float64(r.Rounds) * r.PerBlockReward()
}

// EfficiencyAdvantage is relative reward divided by hashpower share.
// 1.0 means the attacker earns exactly its fair share.
func (r SimulationResult) EfficiencyAdvantage() (float64, error) {
	if r.Alpha == 0 {
		return 0, fmt.Errorf("efficiency advantage at alpha 0: %w", ErrDivisionByZero)
	}
	return r.AttackerRelativeReward() / r.Alpha, nil
}

// Summary is a flat, serialisable view including the derived metrics.
type Summary struct {
	SimulationResult
	AttackerRelativeReward float64 `json:"attacker_relative_reward"`
	HonestRelativeReward   float64 `json:"honest_relative_reward"`
	AttackerRevenue        float64 `json:"attacker_revenue_btc"`
	HonestRevenue          float64 `json:"honest_revenue_btc"`
	EfficiencyAdvantage    float64 `json:"efficiency_advantage"`
}

// Summarize flattens r. EfficiencyAdvantage is 0 when alpha is 0.
func (r SimulationResult) Summarize() Summary {
	eff, _ := r.EfficiencyAdvantage()
	return Summary{
		SimulationResult:       r,
		AttackerRelativeReward: r.AttackerRelativeReward(),
		HonestRelativeReward:   r.HonestRelativeReward(),
		AttackerRevenue:        r.AttackerRevenue(),
		HonestRevenue:          r.HonestRevenue(),
		EfficiencyAdvantage:    eff,
	}
}
