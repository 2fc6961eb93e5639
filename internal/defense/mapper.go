// Package defense maps mitigations to the tie-break fraction an attacker
// keeps once they are deployed.
package defense

import (
	"fmt"
	"strconv"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/simulation"
)

// NeutralGamma is the tie-break fraction with no network advantage.
const NeutralGamma = 0.5

// MapStrength interpolates linearly from gamma (strength 0) to the neutral
// point 0.5 (strength 1):
//
//	γ_def = γ + s·(0.5 − γ)
func MapStrength(gamma, strength float64) (float64, error) {
	if err := simulation.ValidateGamma(gamma); err != nil {
		return 0, err
	}
	if !(strength >= 0 && strength <= 1) {
		return 0, fmt.Errorf("defense strength %v not in [0,1]: %w", strength, domain.ErrInvalidParameter)
	}
	return gamma + strength*(NeutralGamma-gamma), nil
}

// FromStrength builds an ad-hoc strategy for a strength level.
func FromStrength(gamma, strength float64) (domain.DefenseStrategy, error) {
	g, err := MapStrength(gamma, strength)
	if err != nil {
		return domain.DefenseStrategy{}, err
	}
	s := strconv.FormatFloat(strength, 'f', -1, 64)
	return domain.DefenseStrategy{
		Key:          "strength_" + s,
		Name:         "Defense strength " + s,
		GammaDefense: g,
		Rationale:    "Linear interpolation between the unmitigated tie advantage and the neutral point.",
	}, nil
}

// DefaultStrategies returns the named presets, strongest tie-break first.
func DefaultStrategies() []domain.DefenseStrategy {
	return []domain.DefenseStrategy{
		domain.DefenseStrategyForkChoiceRandomization,
		domain.DefenseStrategyRelayNetwork,
		domain.DefenseStrategyFeeMarketReform,
		domain.DefenseStrategyFairOrdering,
	}
}

// Lookup finds a strategy by key.
func Lookup(strategies []domain.DefenseStrategy, key string) (domain.DefenseStrategy, bool) {
	for _, s := range strategies {
		if s.Key == key {
			return s, true
		}
	}
	return domain.DefenseStrategy{}, false
}

// Validate requires non-empty unique keys and gamma_defense in [0,1].
func Validate(strategies []domain.DefenseStrategy) error {
	seen := make(map[string]struct{}, len(strategies))
	for _, s := range strategies {
		if s.Key == "" {
			return fmt.Errorf("defense strategy %q has no key: %w", s.Name, domain.ErrInvalidParameter)
		}
		if _, dup := seen[s.Key]; dup {
			return fmt.Errorf("duplicate defense strategy %q: %w", s.Key, domain.ErrInvalidParameter)
		}
		seen[s.Key] = struct{}{}
		if err := simulation.ValidateGamma(s.GammaDefense); err != nil {
			return fmt.Errorf("defense strategy %q: %w", s.Key, err)
		}
	}
	return nil
}
