// Package sweep orchestrates repeated simulations: defense pairs, alpha
// sweeps, defense comparisons and replicated runs.
package sweep

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dominant-strategies/go-quai/event"
	"golang.org/x/sync/errgroup"

	"selfish-mining-lab/internal/defense"
	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/idhash"
	"selfish-mining-lab/internal/metrics"
	"selfish-mining-lab/internal/observability"
	"selfish-mining-lab/internal/simulation"
)

// Defense comparison defaults.
const (
	DefaultComparisonGamma = 0.9
	DefaultComparisonSeed  = 2025
)

// Driver runs grids and comparison tables over a Simulator.
type Driver struct {
	sim        *simulation.Simulator
	workers    int
	strategies []domain.DefenseStrategy
	feed       event.Feed
	now        func() time.Time
}

// DriverOptions contains configuration for creating a Driver.
type DriverOptions struct {
	Simulator  *simulation.Simulator    // default: NewDefaultSimulator()
	Workers    int                      // default: GOMAXPROCS
	Strategies []domain.DefenseStrategy // default: defense.DefaultStrategies()
	Clock      func() time.Time         // default: time.Now
}

// NewDriver creates a sweep driver.
func NewDriver(opts DriverOptions) (*Driver, error) {
	d := &Driver{
		sim:        opts.Simulator,
		workers:    opts.Workers,
		strategies: opts.Strategies,
		now:        opts.Clock,
	}
	if d.sim == nil {
		d.sim = simulation.NewDefaultSimulator()
	}
	if d.workers <= 0 {
		d.workers = runtime.GOMAXPROCS(0)
	}
	if d.strategies == nil {
		d.strategies = defense.DefaultStrategies()
	}
	if err := defense.Validate(d.strategies); err != nil {
		return nil, err
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

// Strategies returns the configured defense strategies.
func (d *Driver) Strategies() []domain.DefenseStrategy {
	out := make([]domain.DefenseStrategy, len(d.strategies))
	copy(out, d.strategies)
	return out
}

// SubscribeProgress delivers a SweepProgress after every completed grid
// point of every sweep. Subscribers must keep draining ch; a sweep blocks
// until each event is delivered.
func (d *Driver) SubscribeProgress(ch chan<- domain.SweepProgress) event.Subscription {
	return d.feed.Subscribe(ch)
}

// SimulateWithDefense runs the undefended race at gammaAttack and, when
// enabled, the defended race at gammaDefense on the same stream. All inputs
// are validated before either race samples.
func (d *Driver) SimulateWithDefense(alpha, gammaAttack, gammaDefense float64, rounds int, enabled bool, seed *uint64) (domain.DefensePair, error) {
	if err := simulation.ValidateGamma(gammaDefense); err != nil {
		return domain.DefensePair{}, fmt.Errorf("gamma defense: %w", err)
	}

	sd := simulation.ResolveSeed(seed)
	undefended, err := d.sim.Selfish(alpha, gammaAttack, rounds, &sd)
	if err != nil {
		return domain.DefensePair{}, err
	}
	if !enabled {
		return domain.DefensePair{Undefended: undefended, Defended: undefended}, nil
	}

	defended, err := d.sim.Selfish(alpha, gammaDefense, rounds, &sd)
	if err != nil {
		return domain.DefensePair{}, err
	}
	return domain.DefensePair{Undefended: undefended, Defended: defended, DefenseEnabled: true}, nil
}

// Grid returns steps evenly spaced values from min to max inclusive.
func Grid(min, max float64, steps int) []float64 {
	if steps <= 0 {
		return nil
	}
	if steps == 1 {
		return []float64{min}
	}
	out := make([]float64, steps)
	step := (max - min) / float64(steps-1)
	for i := range out {
		out[i] = min + float64(i)*step
	}
	out[steps-1] = max
	return out
}

// pointSeed is round(alpha*1000) for unseeded sweeps, so the same grid
// point always replays the same stream; seeded sweeps derive one stream
// per index.
func pointSeed(base *uint64, alpha float64, index int) uint64 {
	if base == nil {
		return uint64(math.Round(alpha * 1000))
	}
	return idhash.DeriveSeed(*base, "sweep", index)
}

func validateSweep(p domain.SweepParams) error {
	if p.AlphaSteps < 1 {
		return fmt.Errorf("alpha steps %d must be at least 1: %w", p.AlphaSteps, domain.ErrInvalidParameter)
	}
	if err := simulation.ValidateAlpha(p.AlphaMin); err != nil {
		return fmt.Errorf("alpha min: %w", err)
	}
	if err := simulation.ValidateAlpha(p.AlphaMax); err != nil {
		return fmt.Errorf("alpha max: %w", err)
	}
	if p.AlphaMin > p.AlphaMax {
		return fmt.Errorf("alpha min %v above alpha max %v: %w", p.AlphaMin, p.AlphaMax, domain.ErrInvalidParameter)
	}
	if err := simulation.ValidateGamma(p.GammaAttack); err != nil {
		return fmt.Errorf("gamma attack: %w", err)
	}
	if err := simulation.ValidateGamma(p.GammaDefense); err != nil {
		return fmt.Errorf("gamma defense: %w", err)
	}
	return simulation.ValidateRounds(p.Rounds)
}

// ParameterSweep runs an undefended/defended pair at every grid point and
// reports the point with the highest undefended efficiency as optimal.
// Points run on a bounded worker pool; results are ordered by alpha.
func (d *Driver) ParameterSweep(ctx context.Context, p domain.SweepParams) (*domain.SweepResult, error) {
	if err := validateSweep(p); err != nil {
		observability.RecordInvalidParameter("sweep")
		return nil, err
	}

	start := d.now()
	sweepID := idhash.ComputeSweepID(p)
	alphas := Grid(p.AlphaMin, p.AlphaMax, p.AlphaSteps)
	points := make([]domain.SweepPoint, len(alphas))

	var completed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, alpha := range alphas {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pt, err := d.sweepPoint(i, alpha, p)
			if err != nil {
				return err
			}
			points[i] = pt

			observability.RecordSweepPoint()
			d.feed.Send(domain.SweepProgress{
				SweepID:   sweepID,
				Completed: int(completed.Add(1)),
				Total:     len(alphas),
				Point:     pt,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.RecordSweep("error", d.now().Sub(start).Seconds())
		return nil, err
	}

	effs := make([]float64, len(points))
	for i, pt := range points {
		effs[i] = pt.EfficiencyNoDefense
	}
	best := points[metrics.ArgMax(effs)]

	observability.RecordSweep("ok", d.now().Sub(start).Seconds())

	return &domain.SweepResult{
		SweepID:                sweepID,
		Params:                 p,
		Points:                 points,
		OptimalAlpha:           best.Alpha,
		MaxEfficiency:          best.EfficiencyNoDefense,
		ProfitabilityThreshold: simulation.ProfitabilityThreshold(p.GammaAttack),
	}, nil
}

func (d *Driver) sweepPoint(index int, alpha float64, p domain.SweepParams) (domain.SweepPoint, error) {
	seed := pointSeed(p.Seed, alpha, index)

	pair, err := d.SimulateWithDefense(alpha, p.GammaAttack, p.GammaDefense, p.Rounds, true, &seed)
	if err != nil {
		return domain.SweepPoint{}, err
	}
	effNo, err := pair.Undefended.EfficiencyAdvantage()
	if err != nil {
		return domain.SweepPoint{}, err
	}
	effWith, err := pair.Defended.EfficiencyAdvantage()
	if err != nil {
		return domain.SweepPoint{}, err
	}

	return domain.SweepPoint{
		Index:                 index,
		Alpha:                 alpha,
		Seed:                  seed,
		NoDefense:             pair.Undefended,
		WithDefense:           pair.Defended,
		EfficiencyNoDefense:   effNo,
		EfficiencyWithDefense: effWith,
		AnalyticEfficiency:    simulation.ExpectedEfficiency(alpha, p.GammaAttack),
		RevenueAdvantage:      pair.Undefended.AttackerRevenue() - pair.Undefended.FairShareRevenue(),
	}, nil
}

// CompareDefenses runs every configured strategy against one undefended
// baseline. All runs share the seed (DefaultComparisonSeed when nil), so
// each improvement reflects the strategy's gamma alone.
func (d *Driver) CompareDefenses(ctx context.Context, alpha, gammaAttack float64, rounds int, seed *uint64) (*domain.DefenseComparison, error) {
	sd := uint64(DefaultComparisonSeed)
	if seed != nil {
		sd = *seed
	}

	baseline, err := d.sim.Selfish(alpha, gammaAttack, rounds, &sd)
	if err != nil {
		return nil, err
	}
	baseEff, err := baseline.EfficiencyAdvantage()
	if err != nil {
		return nil, err
	}

	outcomes := make([]domain.DefenseOutcome, len(d.strategies))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, s := range d.strategies {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := d.sim.Selfish(alpha, s.GammaDefense, rounds, &sd)
			if err != nil {
				return err
			}
			eff, err := res.EfficiencyAdvantage()
			if err != nil {
				return err
			}
			improvement, err := metrics.ImprovementPct(eff, baseEff)
			if err != nil {
				return fmt.Errorf("defense %s: %w", s.Key, err)
			}
			outcomes[i] = domain.DefenseOutcome{
				Strategy:       s,
				Result:         res,
				Efficiency:     eff,
				ImprovementPct: improvement,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.DefenseComparison{
		Alpha:              alpha,
		GammaAttack:        gammaAttack,
		Rounds:             rounds,
		Seed:               sd,
		Baseline:           baseline,
		BaselineEfficiency: baseEff,
		Outcomes:           outcomes,
	}, nil
}

// Replicate repeats a selfish run over independent derived streams and
// summarises the efficiency distribution.
func (d *Driver) Replicate(ctx context.Context, alpha, gamma float64, rounds, replicas int, seed *uint64) (*domain.ReplicaSummary, error) {
	if replicas < 1 {
		return nil, fmt.Errorf("replicas %d must be at least 1: %w", replicas, domain.ErrInvalidParameter)
	}
	if err := simulation.ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	if err := simulation.ValidateGamma(gamma); err != nil {
		return nil, err
	}
	if err := simulation.ValidateRounds(rounds); err != nil {
		return nil, err
	}

	base := simulation.ResolveSeed(seed)
	results := make([]domain.SimulationResult, replicas)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i := 0; i < replicas; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sd := idhash.DeriveSeed(base, "replica", i)
			res, err := d.sim.Selfish(alpha, gamma, rounds, &sd)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return metrics.SummarizeEfficiencies(results)
}
