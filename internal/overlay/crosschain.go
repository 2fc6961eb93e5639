package overlay

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/idhash"
	"selfish-mining-lab/internal/metrics"
	"selfish-mining-lab/internal/simulation"
)

// CoordinationOverhead is costPerChain * (numChains - 1).
func CoordinationOverhead(costPerChain float64, numChains int) float64 {
	return costPerChain * float64(numChains-1)
}

// CrossChain runs the multi-chain composition overlay. Chains run in
// parallel on independent streams; chain 0 uses the base seed and doubles
// as the single-chain reference, so a single chain has multiplier 1. A
// reference chain with zero revenue also reports multiplier 1, flagged with
// a diagnostic.
func (e *Engine) CrossChain(ctx context.Context, alpha float64, numChains int, gamma float64, roundsPerChain int, seed *uint64) (*domain.CrossChainResult, error) {
	if err := simulation.ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	if err := simulation.ValidateGamma(gamma); err != nil {
		return nil, err
	}
	if err := simulation.ValidateRounds(roundsPerChain); err != nil {
		return nil, err
	}
	if numChains < 1 {
		return nil, fmt.Errorf("num chains %d must be at least 1: %w", numChains, domain.ErrInvalidParameter)
	}
	overhead := CoordinationOverhead(e.cfg.CostPerChain, numChains)
	if overhead >= 1 {
		return nil, fmt.Errorf("coordination overhead %v for %d chains leaves no revenue: %w",
			overhead, numChains, domain.ErrInvalidParameter)
	}

	base := simulation.ResolveSeed(seed)
	chains := make([]domain.SimulationResult, numChains)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.workers())
	for i := 0; i < numChains; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sd := base
			if i > 0 {
				sd = idhash.DeriveSeed(base, "chain", i)
			}
			res, err := e.sim.Selfish(alpha, gamma, roundsPerChain, &sd)
			if err != nil {
				return err
			}
			chains[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	single := chains[0]
	singleRevenue := single.AttackerRevenue()

	total := 0.0
	for _, c := range chains {
		total += c.AttackerRevenue()
	}
	afterCost := total * (1 - overhead)

	multiplier, ok := metrics.RatioOr(afterCost, singleRevenue, 1)

	return &domain.CrossChainResult{
		Alpha:                    alpha,
		Gamma:                    gamma,
		NumChains:                numChains,
		RoundsPerChain:           roundsPerChain,
		CoordinationCostPerChain: e.cfg.CostPerChain,
		CoordinationOverhead:     overhead,
		Chains:                   chains,
		SingleChain:              single,
		SingleChainRevenue:       singleRevenue,
		TotalBeforeCost:          total,
		TotalAfterCost:           afterCost,
		MultiplierEffect:         multiplier,
		Diagnostics: domain.CollectDiagnostics(
			domain.ZeroDenominator("multiplier_effect", ok, multiplier,
				"single-chain attacker revenue is zero"),
		),
	}, nil
}
