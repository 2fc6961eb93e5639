package simulation

import (
	"fmt"

	"selfish-mining-lab/internal/domain"
)

// DefaultMaxAlpha bounds the attacker share of a selfish race. The private
// lead grows without bound as alpha approaches 1, and with it the draws per
// settled height.
const DefaultMaxAlpha = 0.99

// Economics is the fixed per-height reward schedule.
type Economics struct {
	BlockReward      float64 `yaml:"block_reward" json:"block_reward"`
	AvgTxFeePerBlock float64 `yaml:"avg_tx_fee_per_block" json:"avg_tx_fee_per_block"`
}

// DefaultEconomics returns the default reward schedule (6.25 + 0.5 BTC).
func DefaultEconomics() Economics {
	return Economics{
		BlockReward:      domain.DefaultBlockReward,
		AvgTxFeePerBlock: domain.DefaultAvgTxFeePerBlock,
	}
}

// Simulator runs baseline and selfish-mining races under one reward
// schedule. It holds no random state; every call owns its own source, so a
// Simulator is safe for concurrent use.
type Simulator struct {
	econ     Economics
	maxAlpha float64
}

// NewSimulator creates a simulator. Returns ErrInvalidParameter for a
// negative reward or fee.
func NewSimulator(econ Economics) (*Simulator, error) {
	if err := ValidateEconomics(econ); err != nil {
		return nil, err
	}
	return &Simulator{econ: econ, maxAlpha: DefaultMaxAlpha}, nil
}

// NewDefaultSimulator creates a simulator with DefaultEconomics.
func NewDefaultSimulator() *Simulator {
	return &Simulator{econ: DefaultEconomics(), maxAlpha: DefaultMaxAlpha}
}

// WithMaxAlpha returns a copy of s whose selfish races reject alpha above
// limit, which must lie in (0, DefaultMaxAlpha].
func (s *Simulator) WithMaxAlpha(limit float64) (*Simulator, error) {
	if !(limit > 0 && limit <= DefaultMaxAlpha) {
		return nil, fmt.Errorf("max alpha %v not in (0,%v]: %w", limit, DefaultMaxAlpha, domain.ErrInvalidParameter)
	}
	c := *s
	c.maxAlpha = limit
	return &c, nil
}

// MaxAlpha returns the largest attacker share a selfish race accepts.
func (s *Simulator) MaxAlpha() float64 {
	return s.maxAlpha
}

// Economics returns the simulator's reward schedule.
func (s *Simulator) Economics() Economics {
	return s.econ
}

// Baseline simulates honest mining: the tracked party wins each round with
// probability alpha. Gamma is recorded as 0. A nil seed draws a fresh one.
func (s *Simulator) Baseline(alpha float64, rounds int, seed *uint64) (domain.SimulationResult, error) {
	if err := ValidateAlpha(alpha); err != nil {
		return domain.SimulationResult{}, err
	}
	if err := ValidateRounds(rounds); err != nil {
		return domain.SimulationResult{}, err
	}

	sd := ResolveSeed(seed)
	c := HonestRounds(NewRand(sd), alpha, rounds)
	return s.result(alpha, 0, rounds, sd, c), nil
}

// Selfish simulates the selfish-mining strategy. A nil seed draws a fresh one.
// Alpha above MaxAlpha is rejected with ErrInvalidParameter.
func (s *Simulator) Selfish(alpha, gamma float64, rounds int, seed *uint64) (domain.SimulationResult, error) {
	if err := validateSelfish(alpha, gamma, rounds); err != nil {
		return domain.SimulationResult{}, err
	}
	if alpha > s.maxAlpha {
		return domain.SimulationResult{}, fmt.Errorf("alpha %v above selfish limit %v: %w", alpha, s.maxAlpha, domain.ErrInvalidParameter)
	}

	sd := ResolveSeed(seed)
	c := SelfishRounds(NewRand(sd), alpha, gamma, rounds)
	return s.result(alpha, gamma, rounds, sd, c), nil
}

func (s *Simulator) result(alpha, gamma float64, rounds int, seed uint64, c Counts) domain.SimulationResult {
	return domain.SimulationResult{
		Alpha:            alpha,
		Gamma:            gamma,
		Rounds:           rounds,
		Seed:             seed,
		AttackerBlocks:   c.Attacker,
		HonestBlocks:     c.Honest,
		StaleBlocks:      c.Stale,
		BlockReward:      s.econ.BlockReward,
		AvgTxFeePerBlock: s.econ.AvgTxFeePerBlock,
	}
}
