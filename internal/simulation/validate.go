package simulation

import (
	"fmt"

	"selfish-mining-lab/internal/domain"
)

// ValidateAlpha rejects hashpower shares outside (0,1). NaN is rejected.
func ValidateAlpha(alpha float64) error {
	if !(alpha > 0 && alpha < 1) {
		return fmt.Errorf("alpha %v not in (0,1): %w", alpha, domain.ErrInvalidParameter)
	}
	return nil
}

// ValidateGamma rejects tie-race advantages outside [0,1].
func ValidateGamma(gamma float64) error {
	if !(gamma >= 0 && gamma <= 1) {
		return fmt.Errorf("gamma %v not in [0,1]: %w", gamma, domain.ErrInvalidParameter)
	}
	return nil
}

// ValidateRounds rejects non-positive round counts.
func ValidateRounds(rounds int) error {
	if rounds <= 0 {
		return fmt.Errorf("rounds %d must be positive: %w", rounds, domain.ErrInvalidParameter)
	}
	return nil
}

// ValidateEconomics rejects negative block rewards or fees.
func ValidateEconomics(e Economics) error {
	if !(e.BlockReward >= 0) {
		return fmt.Errorf("block reward %v must be non-negative: %w", e.BlockReward, domain.ErrInvalidParameter)
	}
	if !(e.AvgTxFeePerBlock >= 0) {
		return fmt.Errorf("avg tx fee %v must be non-negative: %w", e.AvgTxFeePerBlock, domain.ErrInvalidParameter)
	}
	return nil
}

func validateSelfish(alpha, gamma float64, rounds int) error {
	if err := ValidateAlpha(alpha); err != nil {
		return err
	}
	if err := ValidateGamma(gamma); err != nil {
		return err
	}
	return ValidateRounds(rounds)
}
