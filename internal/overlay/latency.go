package overlay

import (
	"fmt"
	"math"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/metrics"
	"selfish-mining-lab/internal/simulation"
)

// LatencyGamma maps a relative propagation delay to an effective tie
// advantage. At zero delay it equals gamma; it moves linearly to 0.5 (no
// network advantage) as delay approaches one full block interval. Delay
// only erodes an advantage, so gamma below 0.5 is returned unchanged and
// gammaEff never increases with delay.
//
//	ratio = delay / (blockTime * scale)
//	γ_eff = min(γ, 0.5 + (γ − 0.5)(1 − min(1, ratio)))
func LatencyGamma(gamma, delayMs, blockTimeSec, scale float64) (ratio, gammaEff float64) {
	ratio = delayMs / (blockTimeSec * scale)
	gammaEff = math.Min(gamma, 0.5+(gamma-0.5)*(1-math.Min(1, ratio)))
	return ratio, gammaEff
}

// Latency runs the latency-to-advantage overlay. The delayed attack, the
// zero-delay reference and the honest baseline share one random stream, so
// their efficiency differences come from gamma alone.
func (e *Engine) Latency(alpha, delayMs, blockTimeSec, gamma float64, rounds int, seed *uint64) (*domain.LatencyResult, error) {
	if !(delayMs >= 0) || math.IsInf(delayMs, 1) {
		return nil, fmt.Errorf("network delay %v must be non-negative and finite: %w", delayMs, domain.ErrInvalidParameter)
	}
	if !(blockTimeSec > 0) || math.IsInf(blockTimeSec, 1) {
		return nil, fmt.Errorf("block time %v must be positive and finite: %w", blockTimeSec, domain.ErrInvalidParameter)
	}
	if err := simulation.ValidateGamma(gamma); err != nil {
		return nil, err
	}

	ratio, gammaEff := LatencyGamma(gamma, delayMs, blockTimeSec, e.cfg.DelayScale)
	sd := simulation.ResolveSeed(seed)

	attack, err := e.sim.Selfish(alpha, gammaEff, rounds, &sd)
	if err != nil {
		return nil, err
	}
	zeroDelay, err := e.sim.Selfish(alpha, gamma, rounds, &sd)
	if err != nil {
		return nil, err
	}
	honest, err := e.sim.Baseline(alpha, rounds, &sd)
	if err != nil {
		return nil, err
	}

	attackEff, err := attack.EfficiencyAdvantage()
	if err != nil {
		return nil, err
	}
	zeroEff, err := zeroDelay.EfficiencyAdvantage()
	if err != nil {
		return nil, err
	}
	honestRatio, err := honest.EfficiencyAdvantage()
	if err != nil {
		return nil, err
	}

	// A race where the tracked party never settles a block has efficiency
	// 0; the factors over it fall back to 1.
	timeFactor, timeOK := metrics.RatioOr(attackEff, zeroEff, 1)
	overHonest, honestOK := metrics.RatioOr(attackEff, honestRatio, 1)
	revenueDelta := attack.AttackerRevenue() - honest.AttackerRevenue()

	return &domain.LatencyResult{
		Alpha:               alpha,
		NetworkDelayMs:      delayMs,
		BlockTimeSec:        blockTimeSec,
		Gamma:               gamma,
		DelayRatio:          ratio,
		GammaEffective:      gammaEff,
		Attack:              attack,
		ZeroDelay:           zeroDelay,
		HonestBaseline:      honest,
		AttackerEfficiency:  attackEff,
		ZeroDelayEfficiency: zeroEff,
		HonestBaselineRatio: honestRatio,
		TimeAdvantageFactor: timeFactor,
		AdvantageOverHonest: overHonest,
		RevenueAdvantage:    revenueDelta,
		ThreatLevel:         e.cfg.ThreatLadder.Classify(attackEff),
		Diagnostics: domain.CollectDiagnostics(
			domain.ZeroDenominator("time_advantage_factor", timeOK, timeFactor,
				"zero-delay attacker efficiency is zero"),
			domain.ZeroDenominator("advantage_over_honest", honestOK, overHonest,
				"honest baseline efficiency is zero"),
			domain.NegativeValue("revenue_advantage_btc", revenueDelta,
				"delayed selfish mining earns less than honest mining"),
		),
	}, nil
}
