package overlay

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/simulation"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(simulation.NewDefaultSimulator(), DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestEffectiveASICShare(t *testing.T) {
	tests := []struct {
		name       string
		alpha      float64
		multiplier float64
		want       float64
	}{
		{"no advantage", 0.25, 1, 0.25},
		{"triple", 0.25, 3, 0.5},
		{"half speed", 0.5, 0.5, 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EffectiveASICShare(tt.alpha, tt.multiplier), 1e-12)
		})
	}
}

func TestASIC_EffectiveShareExceedsComputation(t *testing.T) {
	e := newTestEngine(t)

	for _, alpha := range []float64{0.05, 0.2, 0.35} {
		for _, m := range []float64{1.01, 1.5, 3, 10} {
			res, err := e.ASIC(alpha, m, 0.9, 1000, simulation.SeedPtr(1))
			require.NoError(t, err)
			assert.Greater(t, res.AlphaEffective, res.AlphaComputation, "alpha %v m %v", alpha, m)
			assert.InDelta(t, 1/m, res.PowerCostRatio, 1e-12)
		}
	}
}

func TestASIC_EffectiveShareCapped(t *testing.T) {
	e := newTestEngine(t)

	assert.Greater(t, EffectiveASICShare(0.5, 1e4), MaxEffectiveAlpha)

	res, err := e.ASIC(0.5, 1e4, 0.9, 1000, simulation.SeedPtr(1))
	require.NoError(t, err)
	assert.Equal(t, MaxEffectiveAlpha, res.AlphaEffective)
	assert.Equal(t, MaxEffectiveAlpha, res.Attack.Alpha)
	assert.Equal(t, 1000, res.Attack.AttackerBlocks+res.Attack.HonestBlocks)
}

func TestASIC_UnitMultiplierMatchesSelfish(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.ASIC(0.25, 1, 0.9, 50000, simulation.SeedPtr(2025))
	require.NoError(t, err)

	direct, err := simulation.NewDefaultSimulator().Selfish(0.25, 0.9, 50000, simulation.SeedPtr(2025))
	require.NoError(t, err)

	assert.Equal(t, direct, res.Attack)
	assert.InDelta(t, res.EfficiencyAdvantage, res.ComputationAdvantage, 1e-12)
	assert.Equal(t, domain.ThreatModerate, res.ThreatLevel)
	assert.Equal(t, res.Attack.Seed, res.HonestBaseline.Seed)
}

func TestASIC_InvalidParameters(t *testing.T) {
	e := newTestEngine(t)

	for _, m := range []float64{0, -2, math.NaN(), math.Inf(1)} {
		_, err := e.ASIC(0.25, m, 0.9, 1000, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidParameter, "multiplier %v", m)
	}
	_, err := e.ASIC(MaxEffectiveAlpha, 2, 0.9, 1000, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = e.ASIC(0, 2, 0.9, 1000, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = e.ASIC(0.25, 2, 1.5, 1000, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestMEV_RevenueComposition(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.MEV(0.3, 0.3, 2.5, 0.9, 20000, simulation.SeedPtr(7))
	require.NoError(t, err)

	blocks := float64(res.Attack.AttackerBlocks)
	assert.InDelta(t, blocks*0.3, res.ExpectedMEVBlocks, 1e-9)
	assert.InDelta(t, blocks*0.3*2.5, res.MEVRevenue, 1e-9)
	assert.InDelta(t, res.BaseRevenue+res.MEVRevenue, res.EnhancedRevenue, 1e-9)
	assert.InDelta(t, res.Attack.HonestRevenue(), res.HonestRevenue, 1e-9)
	assert.InDelta(t, res.EnhancedRevenue/0.3, res.RevenuePerHashrate, 1e-9)
	assert.InDelta(t, (res.EnhancedRevenue-res.HonestRevenue)/res.HonestRevenue, res.RevenueAdvantageVsHonest, 1e-12)
}

func TestMEV_ZeroProbabilityIsBaseRevenue(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.MEV(0.3, 0, 2.5, 0.9, 5000, simulation.SeedPtr(3))
	require.NoError(t, err)
	assert.Equal(t, res.BaseRevenue, res.EnhancedRevenue)
	assert.Zero(t, res.MEVRevenue)
}

func TestMEV_NegativeAdvantageIsReportedNotClamped(t *testing.T) {
	// A small miner with little MEV earns far less than the honest majority.
	e := newTestEngine(t)

	res, err := e.MEV(0.1, 0.1, 0.5, 0.9, 20000, simulation.SeedPtr(2025))
	require.NoError(t, err)

	assert.Less(t, res.RevenueAdvantageVsHonest, 0.0)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, domain.DiagnosticNegativeDerivedValue, res.Diagnostics[0].Code)
	assert.Equal(t, "revenue_advantage_vs_honest", res.Diagnostics[0].Field)
	assert.Equal(t, res.RevenueAdvantageVsHonest, res.Diagnostics[0].Value)
}

func TestMEV_PositiveAdvantageHasNoDiagnostic(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.MEV(0.45, 1, 100, 1, 20000, simulation.SeedPtr(1))
	require.NoError(t, err)
	assert.Greater(t, res.RevenueAdvantageVsHonest, 0.0)
	assert.Empty(t, res.Diagnostics)
}

func TestMEV_ZeroHonestRevenue(t *testing.T) {
	e := newTestEngine(t)
	sim := simulation.NewDefaultSimulator()

	// Find a seed where the attacker takes the only settled height.
	var seed uint64
	found := false
	for s := uint64(0); s < 100; s++ {
		res, err := sim.Selfish(0.99, 0.5, 1, simulation.SeedPtr(s))
		require.NoError(t, err)
		if res.HonestBlocks == 0 {
			seed, found = s, true
			break
		}
	}
	require.True(t, found)

	res, err := e.MEV(0.99, 0.5, 1, 0.5, 1, simulation.SeedPtr(seed))
	require.NoError(t, err)
	assert.Zero(t, res.HonestRevenue)
	assert.InDelta(t, res.EnhancedRevenue, res.RevenueAdvantageVsHonest, 1e-12)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, domain.DiagnosticZeroDenominator, res.Diagnostics[0].Code)
	assert.Equal(t, "revenue_advantage_vs_honest", res.Diagnostics[0].Field)
}

func TestMEV_InvalidParameters(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.MEV(0.3, 1.2, 2.5, 0.9, 100, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = e.MEV(0.3, 0.3, -1, 0.9, 100, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = e.MEV(0.3, 0.3, 1, 0.9, 0, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestLatencyGamma(t *testing.T) {
	tests := []struct {
		name      string
		gamma     float64
		delayMs   float64
		wantRatio float64
		wantGamma float64
	}{
		{"zero delay keeps gamma", 0.9, 0, 0, 0.9},
		{"half interval", 0.9, 300000, 0.5, 0.7},
		{"full interval", 0.9, 600000, 1, 0.5},
		{"beyond interval saturates", 0.9, 1200000, 2, 0.5},
		{"gamma at neutral", 0.5, 100, 100.0 / 600000, 0.5},
		{"disadvantaged gamma unchanged", 0.2, 300000, 0.5, 0.2},
		{"disadvantaged gamma beyond interval", 0.2, 1200000, 2, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio, g := LatencyGamma(tt.gamma, tt.delayMs, 600, DefaultDelayScale)
			assert.InDelta(t, tt.wantRatio, ratio, 1e-12)
			assert.InDelta(t, tt.wantGamma, g, 1e-12)
		})
	}
}

func TestLatencyGamma_NonIncreasingInDelay(t *testing.T) {
	for _, gamma := range []float64{0, 0.2, 0.5, 0.7, 1} {
		prev := math.Inf(1)
		for _, delay := range []float64{0, 1, 1000, 60000, 300000, 600000, 900000} {
			_, g := LatencyGamma(gamma, delay, 600, DefaultDelayScale)
			assert.LessOrEqual(t, g, prev, "gamma %v delay %v", gamma, delay)
			assert.LessOrEqual(t, g, gamma, "gamma %v delay %v", gamma, delay)
			prev = g
		}
	}
}

func TestLatency_ZeroDelayFactorIsOne(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Latency(0.3, 0, 600, 0.9, 20000, simulation.SeedPtr(5))
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.TimeAdvantageFactor)
	assert.Equal(t, res.Attack, res.ZeroDelay)
}

func TestLatency_DelayNeverHelps(t *testing.T) {
	e := newTestEngine(t)

	prevEff := math.Inf(1)
	for _, delay := range []float64{10, 1000, 60000, 300000, 600000} {
		res, err := e.Latency(0.3, delay, 600, 0.9, 20000, simulation.SeedPtr(2025))
		require.NoError(t, err)

		assert.LessOrEqual(t, res.TimeAdvantageFactor, 1.0, "delay %v", delay)
		assert.LessOrEqual(t, res.AttackerEfficiency, prevEff, "delay %v", delay)
		prevEff = res.AttackerEfficiency

		honestEff, err := res.HonestBaseline.EfficiencyAdvantage()
		require.NoError(t, err)
		assert.Equal(t, honestEff, res.HonestBaselineRatio)
		assert.InDelta(t, res.AttackerEfficiency/res.HonestBaselineRatio, res.AdvantageOverHonest, 1e-12)
	}
}

func TestLatency_NegativeRevenueAdvantageDiagnostic(t *testing.T) {
	// Below the profitability threshold selfish mining loses to honest mining.
	e := newTestEngine(t)

	res, err := e.Latency(0.1, 600000, 600, 0.9, 20000, simulation.SeedPtr(9))
	require.NoError(t, err)

	assert.Equal(t, 0.5, res.GammaEffective)
	assert.Less(t, res.RevenueAdvantage, 0.0)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "revenue_advantage_btc", res.Diagnostics[0].Field)
}

func TestLatency_ZeroEfficiencyFallsBackToOne(t *testing.T) {
	e := newTestEngine(t)

	// Find a seed where five heights at alpha 0.01 settle no attacker block.
	var res *domain.LatencyResult
	for s := uint64(0); s < 100; s++ {
		r, err := e.Latency(0.01, 100, 600, 0.9, 5, simulation.SeedPtr(s))
		require.NoError(t, err)
		if r.ZeroDelay.AttackerBlocks == 0 {
			res = r
			break
		}
	}
	require.NotNil(t, res)

	assert.Equal(t, 1.0, res.TimeAdvantageFactor)
	var fields []string
	for _, d := range res.Diagnostics {
		if d.Code == domain.DiagnosticZeroDenominator {
			fields = append(fields, d.Field)
		}
	}
	assert.Contains(t, fields, "time_advantage_factor")
}

func TestLatency_InvalidParameters(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Latency(0.3, -1, 600, 0.9, 100, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = e.Latency(0.3, 10, 0, 0.9, 100, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = e.Latency(0.3, 10, 600, -0.1, 100, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestCrossChain_SingleChainMultiplierIsOne(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.CrossChain(context.Background(), 0.3, 1, 0.9, 20000, simulation.SeedPtr(2025))
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.MultiplierEffect)
	assert.Zero(t, res.CoordinationOverhead)
	require.Len(t, res.Chains, 1)
	assert.Equal(t, res.SingleChain, res.Chains[0])
}

func TestCrossChain_MultiplierApproachesChainCount(t *testing.T) {
	e := newTestEngine(t)

	for _, n := range []int{2, 3, 5} {
		res, err := e.CrossChain(context.Background(), 0.3, n, 0.9, 100000, simulation.SeedPtr(11))
		require.NoError(t, err)

		want := float64(n) * (1 - 0.01*float64(n-1))
		assert.InDelta(t, want, res.MultiplierEffect, 0.05*float64(n), "chains %d", n)
		assert.InDelta(t, res.TotalBeforeCost*(1-res.CoordinationOverhead), res.TotalAfterCost, 1e-9)
		assert.InDelta(t, float64(n-1), res.CoordinationOverheadPct(), 1e-9)
	}
}

func TestCrossChain_DeterministicAcrossWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1
	serial, err := NewEngine(nil, cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := NewEngine(nil, cfg)
	require.NoError(t, err)

	a, err := serial.CrossChain(context.Background(), 0.25, 5, 0.8, 5000, simulation.SeedPtr(99))
	require.NoError(t, err)
	b, err := parallel.CrossChain(context.Background(), 0.25, 5, 0.8, 5000, simulation.SeedPtr(99))
	require.NoError(t, err)

	assert.Equal(t, a, b)

	seeds := make(map[uint64]bool)
	for _, c := range a.Chains {
		assert.False(t, seeds[c.Seed], "chains share a stream")
		seeds[c.Seed] = true
	}
}

func TestCrossChain_ZeroSingleChainRevenue(t *testing.T) {
	sim, err := simulation.NewSimulator(simulation.Economics{})
	require.NoError(t, err)
	e, err := NewEngine(sim, DefaultConfig())
	require.NoError(t, err)

	res, err := e.CrossChain(context.Background(), 0.3, 3, 0.9, 10000, simulation.SeedPtr(1))
	require.NoError(t, err)
	assert.Zero(t, res.SingleChainRevenue)
	assert.Equal(t, 1.0, res.MultiplierEffect)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, domain.DiagnosticZeroDenominator, res.Diagnostics[0].Code)
	assert.Equal(t, "multiplier_effect", res.Diagnostics[0].Field)
}

func TestCrossChain_InvalidParameters(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CrossChain(ctx, 0.3, 0, 0.9, 100, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	// 1% per extra chain: 101 chains cost everything.
	_, err = e.CrossChain(ctx, 0.3, 101, 0.9, 100, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = e.CrossChain(ctx, 1.3, 2, 0.9, 100, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestPoolCooperation(t *testing.T) {
	e := newTestEngine(t)

	single, err := e.PoolCooperation(0.3, 1, 0.9, 20000, simulation.SeedPtr(4))
	require.NoError(t, err)
	assert.Equal(t, 0.3, single.AlphaEffective)
	assert.Zero(t, single.CoordinationLoss)

	res, err := e.PoolCooperation(0.3, 3, 0.9, 20000, simulation.SeedPtr(4))
	require.NoError(t, err)
	assert.InDelta(t, 0.26, res.AlphaEffective, 1e-12)
	assert.InDelta(t, 0.04, res.CoordinationLoss, 1e-12)
	assert.InDelta(t, res.Attack.AttackerRelativeReward()/0.3, res.EfficiencyAdvantage, 1e-12)
	assert.InDelta(t, 0.26, res.Attack.Alpha, 1e-12)
}

func TestPoolCooperation_InvalidParameters(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.PoolCooperation(0.02, 2, 0.9, 100, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = e.PoolCooperation(0.3, 0, 0.9, 100, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestOverlayResults_Fields(t *testing.T) {
	e := newTestEngine(t)

	asic, err := e.ASIC(0.2, 2, 0.9, 1000, simulation.SeedPtr(1))
	require.NoError(t, err)

	var r domain.OverlayResult = asic
	assert.Equal(t, domain.RunKindASIC, r.Kind())
	assert.Equal(t, asic.AlphaEffective, r.Fields()["alpha_effective"])
	assert.Equal(t, asic.Attack, r.Simulation())
}
