// Package orchestrator runs a full attack and defense analysis.
// It coordinates: baseline → defense pair → sweep → defense comparison → overlays
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"selfish-mining-lab/internal/config"
	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/metrics"
	"selfish-mining-lab/internal/observability"
	"selfish-mining-lab/internal/overlay"
	"selfish-mining-lab/internal/simulation"
	"selfish-mining-lab/internal/storage"
	"selfish-mining-lab/internal/sweep"
)

// Phase names, used as log fields and metric labels.
const (
	PhaseBaseline          = "baseline"
	PhaseDefensePair       = "defense_pair"
	PhaseSweep             = "sweep"
	PhaseDefenseComparison = "defense_comparison"
	PhaseOverlays          = "overlays"
	PhaseCombined          = "combined"
)

// Orchestrator coordinates a full analysis run.
type Orchestrator struct {
	cfg config.ModelConfig

	runner  *simulation.Runner
	driver  *sweep.Driver
	overlay *overlay.Engine

	sweepPointStore storage.SweepPointStore

	log logrus.FieldLogger
	now func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	Config config.ModelConfig

	// Optional stores; nil skips persistence.
	RunStore        storage.RunStore
	SweepPointStore storage.SweepPointStore

	Logger logrus.FieldLogger // default: discards output
	Clock  func() time.Time   // default: time.Now
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sim, err := cfg.Simulator()
	if err != nil {
		return nil, err
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	driver, err := sweep.NewDriver(sweep.DriverOptions{
		Simulator:  sim,
		Workers:    cfg.Workers,
		Strategies: cfg.Defenses,
		Clock:      now,
	})
	if err != nil {
		return nil, err
	}

	ovCfg := cfg.Overlay
	if ovCfg.Workers == 0 {
		ovCfg.Workers = cfg.Workers
	}
	engine, err := overlay.NewEngine(sim, ovCfg)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	return &Orchestrator{
		cfg: cfg,
		runner: simulation.NewRunner(simulation.RunnerOptions{
			Simulator: sim,
			RunStore:  opts.RunStore,
			Clock:     now,
		}),
		driver:          driver,
		overlay:         engine,
		sweepPointStore: opts.SweepPointStore,
		log:             log.WithField("component", "orchestrator"),
		now:             now,
	}, nil
}

// Driver returns the sweep driver, so callers can subscribe to sweep
// progress before Run.
func (o *Orchestrator) Driver() *sweep.Driver {
	return o.driver
}

// Run executes the full analysis.
// Phases:
//  1. Honest baseline at the analysis alpha
//  2. Undefended/defended pair on one seed
//  3. Alpha sweep (points persisted)
//  4. Defense strategy comparison
//  5. ASIC, MEV, latency, cross-chain and pool overlay grids
//  6. Combined multi-vector advantage
//
// Phases 1-4 abort the run on error; overlay grid failures are collected
// in Analysis.Errors.
func (o *Orchestrator) Run(ctx context.Context) (*domain.Analysis, error) {
	a := o.cfg.Analysis
	out := &domain.Analysis{
		GeneratedAt:  o.now().UnixMilli(),
		Alpha:        a.Alpha,
		GammaAttack:  a.GammaAttack,
		GammaDefense: a.GammaDefense,
		Rounds:       a.Rounds,
		Seed:         a.Seed,
	}

	phases := []struct {
		name string
		run  func(context.Context, *domain.Analysis) error
	}{
		{PhaseBaseline, o.runBaseline},
		{PhaseDefensePair, o.runDefensePair},
		{PhaseSweep, o.runSweep},
		{PhaseDefenseComparison, o.runDefenseComparison},
		{PhaseOverlays, o.runOverlays},
		{PhaseCombined, o.runCombined},
	}

	for i, p := range phases {
		log := o.log.WithField("phase", p.name)
		log.Infof("Phase %d: %s", i+1, p.name)

		start := o.now()
		err := p.run(ctx, out)
		elapsed := o.now().Sub(start).Seconds()
		if err != nil {
			observability.RecordAnalysisPhase(p.name, "error", elapsed)
			return nil, fmt.Errorf("phase %d (%s) failed: %w", i+1, p.name, err)
		}
		observability.RecordAnalysisPhase(p.name, "ok", elapsed)
		log.WithField("seconds", elapsed).Debug("phase completed")
	}

	observability.MarkAnalysisSuccess(o.now().Unix())
	o.log.WithFields(logrus.Fields{
		"runs":   out.RunsPersisted,
		"points": out.PointsPersisted,
		"errors": len(out.Errors),
	}).Info("analysis completed")

	return out, nil
}

func (o *Orchestrator) runBaseline(ctx context.Context, out *domain.Analysis) error {
	a := o.cfg.Analysis
	rec, err := o.runner.Run(ctx, simulation.Request{
		Kind:   domain.RunKindBaseline,
		Label:  "honest",
		Alpha:  a.Alpha,
		Rounds: a.Rounds,
		Seed:   simulation.SeedPtr(a.Seed),
	})
	if err != nil {
		return err
	}
	out.Baseline = rec.Result
	out.RunsPersisted++

	eff, err := metrics.EfficiencyAdvantage(rec.Result)
	if err != nil {
		return err
	}
	o.log.WithFields(logrus.Fields{
		"alpha":      a.Alpha,
		"rounds":     a.Rounds,
		"run_id":     rec.RunID,
		"efficiency": eff,
	}).Info("honest baseline")
	return nil
}

func (o *Orchestrator) runDefensePair(ctx context.Context, out *domain.Analysis) error {
	a := o.cfg.Analysis
	pair, err := o.driver.SimulateWithDefense(a.Alpha, a.GammaAttack, a.GammaDefense, a.Rounds, true, simulation.SeedPtr(a.Seed))
	if err != nil {
		return err
	}
	out.DefensePair = pair

	if _, err := o.runner.Record(ctx, domain.RunKindSelfish, "no_defense", pair.Undefended); err != nil {
		return err
	}
	if _, err := o.runner.Record(ctx, domain.RunKindDefended, "with_defense", pair.Defended); err != nil {
		return err
	}
	out.RunsPersisted += 2
	return nil
}

func (o *Orchestrator) runSweep(ctx context.Context, out *domain.Analysis) error {
	a := o.cfg.Analysis
	res, err := o.driver.ParameterSweep(ctx, domain.SweepParams{
		AlphaMin:     a.Sweep.AlphaMin,
		AlphaMax:     a.Sweep.AlphaMax,
		AlphaSteps:   a.Sweep.AlphaSteps,
		GammaAttack:  a.GammaAttack,
		GammaDefense: a.GammaDefense,
		Rounds:       a.Sweep.Rounds,
	})
	if err != nil {
		return err
	}
	out.Sweep = res

	o.log.WithFields(logrus.Fields{
		"sweep_id":       res.SweepID,
		"optimal_alpha":  res.OptimalAlpha,
		"max_efficiency": res.MaxEfficiency,
	}).Info("sweep completed")

	if o.sweepPointStore == nil {
		return nil
	}
	records := make([]*domain.SweepPointRecord, len(res.Points))
	for i, pt := range res.Points {
		records[i] = &domain.SweepPointRecord{SweepID: res.SweepID, Point: pt}
	}
	if err := o.sweepPointStore.InsertBulk(ctx, records); err != nil {
		// Sweeps are deterministic per sweep_id; a rerun finds them stored.
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return fmt.Errorf("persist sweep points: %w", err)
	}
	out.PointsPersisted += len(records)
	return nil
}

func (o *Orchestrator) runDefenseComparison(ctx context.Context, out *domain.Analysis) error {
	a := o.cfg.Analysis
	seed := o.cfg.DefenseComparisonSeed
	cmp, err := o.driver.CompareDefenses(ctx, a.Alpha, o.cfg.DefenseComparisonGamma, a.Rounds, &seed)
	if err != nil {
		return err
	}
	out.Defense = cmp

	if _, err := o.runner.Record(ctx, domain.RunKindSelfish, "defense_baseline", cmp.Baseline); err != nil {
		return err
	}
	out.RunsPersisted++
	for _, oc := range cmp.Outcomes {
		if _, err := o.runner.Record(ctx, domain.RunKindDefense, oc.Strategy.Key, oc.Result); err != nil {
			return err
		}
		out.RunsPersisted++
	}

	if best, ok := cmp.Best(); ok {
		o.log.WithFields(logrus.Fields{
			"strategy":    best.Strategy.Key,
			"improvement": best.ImprovementPct,
		}).Info("best defense")
	}
	return nil
}

func (o *Orchestrator) runOverlays(ctx context.Context, out *domain.Analysis) error {
	a := o.cfg.Analysis
	seed := simulation.SeedPtr(a.Seed)

	for _, m := range a.ASICMultipliers {
		res, err := o.overlay.ASIC(a.Alpha, m, a.GammaAttack, a.Rounds, seed)
		if o.collect(ctx, out, fmt.Sprintf("asic x%g", m), res, err) {
			out.ASIC = append(out.ASIC, res)
		}
	}
	for _, p := range a.MEVProbabilities {
		res, err := o.overlay.MEV(a.Alpha, p, a.AvgMEVPerBlock, a.GammaAttack, a.Rounds, seed)
		if o.collect(ctx, out, fmt.Sprintf("mev p=%g", p), res, err) {
			out.MEV = append(out.MEV, res)
		}
	}
	for _, d := range a.LatencyDelaysMs {
		res, err := o.overlay.Latency(a.Alpha, d, a.BlockTimeSec, a.GammaAttack, a.Rounds, seed)
		if o.collect(ctx, out, fmt.Sprintf("latency %gms", d), res, err) {
			out.Latency = append(out.Latency, res)
		}
	}
	for _, n := range a.ChainCounts {
		res, err := o.overlay.CrossChain(ctx, a.Alpha, n, a.GammaAttack, a.Rounds, seed)
		if o.collect(ctx, out, fmt.Sprintf("crosschain n=%d", n), res, err) {
			out.CrossChain = append(out.CrossChain, res)
		}
	}
	for _, n := range a.PoolCounts {
		res, err := o.overlay.PoolCooperation(a.Alpha, n, a.GammaAttack, a.Rounds, seed)
		if o.collect(ctx, out, fmt.Sprintf("pool n=%d", n), res, err) {
			out.Pools = append(out.Pools, res)
		}
	}

	return ctx.Err()
}

// collect records an overlay outcome. Failures are appended to
// out.Errors; successes persist the overlay's primary run. Reports whether
// res should be kept.
func (o *Orchestrator) collect(ctx context.Context, out *domain.Analysis, label string, res domain.OverlayResult, err error) bool {
	log := o.log.WithField("overlay", label)
	if err != nil {
		log.WithError(err).Warn("overlay failed")
		out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", label, err))
		return false
	}

	if _, err := o.runner.Record(ctx, res.Kind(), label, res.Simulation()); err != nil {
		log.WithError(err).Warn("persist overlay run failed")
		out.Errors = append(out.Errors, fmt.Sprintf("persist %s: %v", label, err))
		return true
	}
	out.RunsPersisted++
	log.WithFields(toFields(res.Fields())).Debug("overlay completed")
	return true
}

func (o *Orchestrator) runCombined(ctx context.Context, out *domain.Analysis) error {
	c, err := o.Combined(ctx)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("combined: %v", err))
		return nil
	}
	out.Combined = c
	return nil
}

// Combined runs the configured combined scenario's four overlays and
// multiplies their factors: ASIC efficiency, latency time advantage, MEV
// revenue uplift, and cross-chain multiplier per chain.
func (o *Orchestrator) Combined(ctx context.Context) (*domain.CombinedAdvantage, error) {
	a := o.cfg.Analysis
	c := a.Combined
	seed := simulation.SeedPtr(a.Seed)

	asic, err := o.overlay.ASIC(a.Alpha, c.ASICMultiplier, a.GammaAttack, a.Rounds, seed)
	if err != nil {
		return nil, err
	}
	lat, err := o.overlay.Latency(a.Alpha, c.DelayMs, a.BlockTimeSec, a.GammaAttack, a.Rounds, seed)
	if err != nil {
		return nil, err
	}
	mev, err := o.overlay.MEV(a.Alpha, c.MEVProbability, a.AvgMEVPerBlock, a.GammaAttack, a.Rounds, seed)
	if err != nil {
		return nil, err
	}
	cross, err := o.overlay.CrossChain(ctx, a.Alpha, c.NumChains, a.GammaAttack, a.Rounds, seed)
	if err != nil {
		return nil, err
	}

	uplift, _ := metrics.RatioOr(mev.EnhancedRevenue, mev.BaseRevenue, 1)
	chainFactor := cross.MultiplierEffect / float64(c.NumChains)
	value := asic.EfficiencyAdvantage * lat.TimeAdvantageFactor * uplift * chainFactor

	return &domain.CombinedAdvantage{
		ASICMultiplier:      c.ASICMultiplier,
		DelayMs:             c.DelayMs,
		MEVProbability:      c.MEVProbability,
		NumChains:           c.NumChains,
		ASICEfficiency:      asic.EfficiencyAdvantage,
		TimeAdvantageFactor: lat.TimeAdvantageFactor,
		MEVUplift:           uplift,
		ChainFactor:         chainFactor,
		Value:               value,
		ExcessPct:           (value - 1) * 100,
	}, nil
}

func toFields(m map[string]float64) logrus.Fields {
	f := make(logrus.Fields, len(m))
	for k, v := range m {
		f[k] = v
	}
	return f
}
