package overlay

import (
	"fmt"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/simulation"
)

// PoolCooperation runs the cooperating-pools overlay. Each pool beyond the
// first costs CostPerPool of hashpower to coordination; the selfish race
// runs at the reduced share but efficiency is measured against the nominal
// share.
func (e *Engine) PoolCooperation(alpha float64, numPools int, gamma float64, rounds int, seed *uint64) (*domain.PoolResult, error) {
	if err := simulation.ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	if numPools < 1 {
		return nil, fmt.Errorf("num pools %d must be at least 1: %w", numPools, domain.ErrInvalidParameter)
	}

	loss := e.cfg.CostPerPool * float64(numPools-1)
	alphaEff := alpha - loss
	if !(alphaEff > 0) {
		return nil, fmt.Errorf("coordination loss %v consumes alpha %v: %w", loss, alpha, domain.ErrInvalidParameter)
	}

	attack, err := e.sim.Selfish(alphaEff, gamma, rounds, seed)
	if err != nil {
		return nil, err
	}

	return &domain.PoolResult{
		NumPools:            numPools,
		AlphaNominal:        alpha,
		AlphaEffective:      alphaEff,
		CoordinationLoss:    loss,
		Gamma:               gamma,
		Attack:              attack,
		EfficiencyAdvantage: attack.AttackerRelativeReward() / alpha,
	}, nil
}
