package overlay

import (
	"fmt"
	"math"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/simulation"
)

// MaxEffectiveAlpha caps the boosted share fed to the selfish race.
const MaxEffectiveAlpha = simulation.DefaultMaxAlpha

// EffectiveASICShare renormalizes a computation share when only the tracked
// party's hardware is multiplied:
//
//	αm / (αm + 1 − α)
func EffectiveASICShare(alphaComputation, multiplier float64) float64 {
	boosted := alphaComputation * multiplier
	return boosted / (boosted + 1 - alphaComputation)
}

// ASIC runs the ASIC advantage overlay. The honest baseline and the attack
// share one random stream. The effective share is capped at
// MaxEffectiveAlpha, so large multipliers saturate instead of pushing the
// race toward alpha 1.
func (e *Engine) ASIC(alphaComputation, multiplier, gamma float64, rounds int, seed *uint64) (*domain.ASICResult, error) {
	if err := simulation.ValidateAlpha(alphaComputation); err != nil {
		return nil, err
	}
	if alphaComputation >= MaxEffectiveAlpha {
		return nil, fmt.Errorf("alpha %v must be below the effective cap %v: %w", alphaComputation, MaxEffectiveAlpha, domain.ErrInvalidParameter)
	}
	if !(multiplier > 0) || math.IsInf(multiplier, 1) {
		return nil, fmt.Errorf("asic multiplier %v must be positive and finite: %w", multiplier, domain.ErrInvalidParameter)
	}

	alphaEff := math.Min(MaxEffectiveAlpha, EffectiveASICShare(alphaComputation, multiplier))
	sd := simulation.ResolveSeed(seed)

	baseline, err := e.sim.Baseline(alphaEff, rounds, &sd)
	if err != nil {
		return nil, err
	}
	attack, err := e.sim.Selfish(alphaEff, gamma, rounds, &sd)
	if err != nil {
		return nil, err
	}

	eff, err := attack.EfficiencyAdvantage()
	if err != nil {
		return nil, err
	}

	return &domain.ASICResult{
		AlphaComputation:     alphaComputation,
		ASICMultiplier:       multiplier,
		AlphaEffective:       alphaEff,
		Gamma:                gamma,
		HonestBaseline:       baseline,
		Attack:               attack,
		PowerCostRatio:       1 / multiplier,
		EfficiencyAdvantage:  eff,
		ComputationAdvantage: attack.AttackerRelativeReward() / alphaComputation,
		ThreatLevel:          e.cfg.ThreatLadder.Classify(eff),
	}, nil
}
