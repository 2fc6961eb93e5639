package overlay

import (
	"fmt"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/metrics"
)

// MEV runs the MEV extraction overlay: expected MEV of
// attacker_blocks * probability * avgMEVPerBlock is added to the attacker's
// base revenue, and the enhanced revenue is compared against the honest
// miners' revenue over the same settled heights.
//
// The advantage is negative whenever enhanced revenue falls short of honest
// revenue; it is reported as-is with a diagnostic. When honest revenue is
// zero the advantage is taken over a denominator of 1 and flagged.
func (e *Engine) MEV(alpha, probability, avgMEVPerBlock, gamma float64, rounds int, seed *uint64) (*domain.MEVResult, error) {
	if !(probability >= 0 && probability <= 1) {
		return nil, fmt.Errorf("mev probability %v not in [0,1]: %w", probability, domain.ErrInvalidParameter)
	}
	if !(avgMEVPerBlock >= 0) {
		return nil, fmt.Errorf("avg mev per block %v must be non-negative: %w", avgMEVPerBlock, domain.ErrInvalidParameter)
	}

	attack, err := e.sim.Selfish(alpha, gamma, rounds, seed)
	if err != nil {
		return nil, err
	}

	mevBlocks := float64(attack.AttackerBlocks) * probability
	mevRevenue := mevBlocks * avgMEVPerBlock
	base := attack.AttackerRevenue()
	enhanced := base + mevRevenue
	honest := attack.HonestRevenue()

	advantage, err := metrics.RelativeAdvantage(enhanced, honest)
	ok := err == nil
	if !ok {
		advantage = enhanced - honest
	}

	return &domain.MEVResult{
		Alpha:                    alpha,
		MEVExtractProbability:    probability,
		AvgMEVPerBlock:           avgMEVPerBlock,
		Gamma:                    gamma,
		Attack:                   attack,
		ExpectedMEVBlocks:        mevBlocks,
		BaseRevenue:              base,
		MEVRevenue:               mevRevenue,
		EnhancedRevenue:          enhanced,
		HonestRevenue:            honest,
		RevenueAdvantageVsHonest: advantage,
		RevenuePerHashrate:       enhanced / alpha,
		Diagnostics: domain.CollectDiagnostics(
			domain.ZeroDenominator("revenue_advantage_vs_honest", ok, advantage,
				"honest revenue is zero; advantage taken over a denominator of 1"),
			domain.NegativeValue("revenue_advantage_vs_honest", advantage,
				"enhanced attacker revenue is below honest revenue"),
		),
	}, nil
}
