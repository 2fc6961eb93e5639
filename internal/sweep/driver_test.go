package sweep

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/simulation"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := NewDriver(DriverOptions{Workers: 4})
	require.NoError(t, err)
	return d
}

func TestGrid(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
		steps    int
		want     []float64
	}{
		{"single", 0.3, 0.3, 1, []float64{0.3}},
		{"two", 0.1, 0.4, 2, []float64{0.1, 0.4}},
		{"four", 0.1, 0.4, 4, []float64{0.1, 0.2, 0.3, 0.4}},
		{"zero steps", 0.1, 0.4, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grid(tt.min, tt.max, tt.steps)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestSimulateWithDefense_Lowers(t *testing.T) {
	d := newTestDriver(t)

	pair, err := d.SimulateWithDefense(0.25, 0.9, 0.5, 100_000, true, simulation.SeedPtr(2025))
	require.NoError(t, err)
	assert.True(t, pair.DefenseEnabled)

	undef, err := pair.Undefended.EfficiencyAdvantage()
	require.NoError(t, err)
	def, err := pair.Defended.EfficiencyAdvantage()
	require.NoError(t, err)

	assert.Less(t, def, undef)
	assert.Equal(t, pair.Undefended.Seed, pair.Defended.Seed)
	assert.InDelta(t, 0.9, pair.Undefended.Gamma, 1e-12)
	assert.InDelta(t, 0.5, pair.Defended.Gamma, 1e-12)
}

func TestSimulateWithDefense_Disabled(t *testing.T) {
	d := newTestDriver(t)

	pair, err := d.SimulateWithDefense(0.3, 0.8, 0.2, 5_000, false, simulation.SeedPtr(7))
	require.NoError(t, err)
	assert.False(t, pair.DefenseEnabled)
	assert.Equal(t, pair.Undefended, pair.Defended)
}

func TestSimulateWithDefense_Validation(t *testing.T) {
	d := newTestDriver(t)

	_, err := d.SimulateWithDefense(0.3, 0.8, 1.5, 1000, false, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))

	_, err = d.SimulateWithDefense(0, 0.8, 0.5, 1000, true, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
}

func TestParameterSweep(t *testing.T) {
	d := newTestDriver(t)

	res, err := d.ParameterSweep(context.Background(), domain.SweepParams{
		AlphaMin:     0.1,
		AlphaMax:     0.4,
		AlphaSteps:   7,
		GammaAttack:  0.9,
		GammaDefense: 0.5,
		Rounds:       100_000,
	})
	require.NoError(t, err)
	require.Len(t, res.Points, 7)

	assert.NotEmpty(t, res.SweepID)
	assert.InDelta(t, 0.4, res.OptimalAlpha, 1e-12)
	assert.InDelta(t, simulation.ProfitabilityThreshold(0.9), res.ProfitabilityThreshold, 1e-12)

	for i, pt := range res.Points {
		assert.Equal(t, i, pt.Index)
		assert.LessOrEqual(t, pt.EfficiencyWithDefense, pt.EfficiencyNoDefense, "alpha %v", pt.Alpha)
		assert.LessOrEqual(t, pt.EfficiencyNoDefense, res.MaxEfficiency)
		if i > 0 {
			prev := res.Points[i-1]
			assert.Greater(t, pt.Alpha, prev.Alpha)
			assert.GreaterOrEqual(t, pt.EfficiencyNoDefense, prev.EfficiencyNoDefense-0.03)
		}
	}
}

func TestParameterSweep_UnseededIsReproducible(t *testing.T) {
	d := newTestDriver(t)
	p := domain.SweepParams{
		AlphaMin: 0.2, AlphaMax: 0.3, AlphaSteps: 3,
		GammaAttack: 0.7, GammaDefense: 0.4, Rounds: 2_000,
	}

	a, err := d.ParameterSweep(context.Background(), p)
	require.NoError(t, err)
	b, err := d.ParameterSweep(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, a.SweepID, b.SweepID)
	assert.Equal(t, a.Points, b.Points)
	assert.Equal(t, uint64(200), a.Points[0].Seed)
	assert.Equal(t, uint64(300), a.Points[2].Seed)
}

func TestParameterSweep_SeededDiffersPerPoint(t *testing.T) {
	d := newTestDriver(t)
	res, err := d.ParameterSweep(context.Background(), domain.SweepParams{
		AlphaMin: 0.3, AlphaMax: 0.3, AlphaSteps: 2,
		GammaAttack: 0.5, GammaDefense: 0.5, Rounds: 1_000,
		Seed: simulation.SeedPtr(11),
	})
	require.NoError(t, err)
	assert.NotEqual(t, res.Points[0].Seed, res.Points[1].Seed)
}

func TestParameterSweep_Validation(t *testing.T) {
	d := newTestDriver(t)
	valid := domain.SweepParams{
		AlphaMin: 0.1, AlphaMax: 0.4, AlphaSteps: 3,
		GammaAttack: 0.9, GammaDefense: 0.5, Rounds: 100,
	}

	tests := []struct {
		name   string
		mutate func(*domain.SweepParams)
	}{
		{"zero steps", func(p *domain.SweepParams) { p.AlphaSteps = 0 }},
		{"min above max", func(p *domain.SweepParams) { p.AlphaMin = 0.5 }},
		{"alpha max one", func(p *domain.SweepParams) { p.AlphaMax = 1 }},
		{"gamma attack", func(p *domain.SweepParams) { p.GammaAttack = -0.1 }},
		{"gamma defense", func(p *domain.SweepParams) { p.GammaDefense = 2 }},
		{"rounds", func(p *domain.SweepParams) { p.Rounds = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := d.ParameterSweep(context.Background(), p)
			assert.True(t, errors.Is(err, domain.ErrInvalidParameter), "got %v", err)
		})
	}
}

func TestParameterSweep_Cancelled(t *testing.T) {
	d := newTestDriver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.ParameterSweep(ctx, domain.SweepParams{
		AlphaMin: 0.1, AlphaMax: 0.4, AlphaSteps: 4,
		GammaAttack: 0.9, GammaDefense: 0.5, Rounds: 1_000,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubscribeProgress(t *testing.T) {
	d := newTestDriver(t)

	ch := make(chan domain.SweepProgress, 3)
	sub := d.SubscribeProgress(ch)
	defer sub.Unsubscribe()

	res, err := d.ParameterSweep(context.Background(), domain.SweepParams{
		AlphaMin: 0.2, AlphaMax: 0.4, AlphaSteps: 3,
		GammaAttack: 0.9, GammaDefense: 0.5, Rounds: 1_000,
	})
	require.NoError(t, err)

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		ev := <-ch
		assert.Equal(t, res.SweepID, ev.SweepID)
		assert.Equal(t, 3, ev.Total)
		seen[ev.Completed] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, seen)
}

func TestCompareDefenses(t *testing.T) {
	d := newTestDriver(t)

	cmp, err := d.CompareDefenses(context.Background(), 0.3, DefaultComparisonGamma, 50_000, nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(DefaultComparisonSeed), cmp.Seed)
	require.Len(t, cmp.Outcomes, len(d.Strategies()))

	for _, o := range cmp.Outcomes {
		assert.GreaterOrEqual(t, o.ImprovementPct, 0.0, o.Strategy.Key)
		assert.LessOrEqual(t, o.Efficiency, cmp.BaselineEfficiency)
		assert.Equal(t, cmp.Seed, o.Result.Seed)
	}

	best, ok := cmp.Best()
	require.True(t, ok)
	assert.Equal(t, domain.DefenseFairOrdering, best.Strategy.Key)
}

func TestCompareDefenses_CustomStrategies(t *testing.T) {
	d, err := NewDriver(DriverOptions{Strategies: []domain.DefenseStrategy{
		{Key: "none", GammaDefense: 0.9},
	}})
	require.NoError(t, err)

	cmp, err := d.CompareDefenses(context.Background(), 0.3, 0.9, 5_000, simulation.SeedPtr(1))
	require.NoError(t, err)
	require.Len(t, cmp.Outcomes, 1)
	assert.InDelta(t, 0.0, cmp.Outcomes[0].ImprovementPct, 1e-12)
}

func TestNewDriver_RejectsDuplicateStrategies(t *testing.T) {
	_, err := NewDriver(DriverOptions{Strategies: []domain.DefenseStrategy{
		{Key: "a", GammaDefense: 0.2},
		{Key: "a", GammaDefense: 0.3},
	}})
	assert.Error(t, err)
}

func TestReplicate(t *testing.T) {
	d := newTestDriver(t)

	a, err := d.Replicate(context.Background(), 0.3, 0.5, 2_000, 5, simulation.SeedPtr(99))
	require.NoError(t, err)
	b, err := d.Replicate(context.Background(), 0.3, 0.5, 2_000, 5, simulation.SeedPtr(99))
	require.NoError(t, err)

	assert.Equal(t, 5, a.Replicas)
	assert.Equal(t, a.Efficiencies, b.Efficiencies)
	assert.LessOrEqual(t, a.MinEfficiency, a.MedianEfficiency)
	assert.LessOrEqual(t, a.MedianEfficiency, a.MaxEfficiency)

	_, err = d.Replicate(context.Background(), 0.3, 0.5, 2_000, 0, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
}
