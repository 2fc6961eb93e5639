package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/urfave/cli.v1"

	"selfish-mining-lab/internal/defense"
	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/orchestrator"
	"selfish-mining-lab/internal/reporting"
	"selfish-mining-lab/internal/simulation"
	"selfish-mining-lab/internal/storage"
	"selfish-mining-lab/internal/verification"
)

// AnalysisFile is the raw analysis written next to the report.
const AnalysisFile = "analysis.json"

var (
	alphaFlag = cli.Float64Flag{
		Name:  "alpha",
		Usage: "Attacker hash-power share in (0, 1)",
		Value: 0.25,
	}
	gammaFlag = cli.Float64Flag{
		Name:  "gamma",
		Usage: "Fraction of honest miners building on the attacker's branch in a tie",
		Value: 0.5,
	}
	roundsFlag = cli.IntFlag{
		Name:  "rounds",
		Usage: "Rounds to simulate (config default when unset)",
	}
	seedFlag = cli.Uint64Flag{
		Name:  "seed",
		Usage: "PRNG seed (random when unset)",
	}
)

// simFlags returns the flags shared by every single-run command.
func simFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{alphaFlag, gammaFlag, roundsFlag, seedFlag}, extra...)
}

func commands(ctx context.Context) []cli.Command {
	return []cli.Command{
		{
			Name:   "simulate",
			Usage:  "Run a selfish (or honest) mining simulation",
			Flags:  simFlags(cli.BoolFlag{Name: "honest", Usage: "Simulate honest mining instead"}),
			Action: withEnv(ctx, simulateCmd),
		},
		{
			Name:  "defend",
			Usage: "Simulate an undefended and a defended run on the same seed",
			Flags: simFlags(
				cli.Float64Flag{Name: "gamma-defense", Usage: "Tie-break fraction under defense", Value: 0.5},
				cli.Float64Flag{Name: "strength", Usage: "Defense strength in [0,1]; derives --gamma-defense from --gamma"},
				cli.BoolFlag{Name: "no-defense", Usage: "Disable the defended run"},
			),
			Action: withEnv(ctx, defendCmd),
		},
		{
			Name:  "sweep",
			Usage: "Sweep attacker alpha over a grid",
			Flags: []cli.Flag{
				cli.Float64Flag{Name: "alpha-min", Value: 0.1},
				cli.Float64Flag{Name: "alpha-max", Value: 0.4},
				cli.IntFlag{Name: "alpha-steps", Value: 7},
				cli.Float64Flag{Name: "gamma-attack", Value: 0.9},
				cli.Float64Flag{Name: "gamma-defense", Value: 0.5},
				roundsFlag,
				seedFlag,
				cli.BoolFlag{Name: "csv", Usage: "Print the sweep as CSV"},
			},
			Action: withEnv(ctx, sweepCmd),
		},
		{
			Name:  "compare-defenses",
			Usage: "Rank the configured defense strategies",
			Flags: []cli.Flag{
				alphaFlag,
				cli.Float64Flag{Name: "gamma-attack", Usage: "Attack tie-break fraction (config default when unset)"},
				roundsFlag,
				seedFlag,
				cli.BoolFlag{Name: "csv", Usage: "Print the comparison as CSV"},
			},
			Action: withEnv(ctx, compareDefensesCmd),
		},
		{
			Name:   "asic",
			Usage:  "Selfish mining with an ASIC efficiency multiplier",
			Flags:  simFlags(cli.Float64Flag{Name: "multiplier", Value: 3}),
			Action: withEnv(ctx, asicCmd),
		},
		{
			Name:  "mev",
			Usage: "Selfish mining with MEV extraction on attacker blocks",
			Flags: simFlags(
				cli.Float64Flag{Name: "probability", Value: 0.3},
				cli.Float64Flag{Name: "avg-mev", Usage: "Average MEV per block in BTC (config default when unset)"},
			),
			Action: withEnv(ctx, mevCmd),
		},
		{
			Name:  "latency",
			Usage: "Selfish mining with a network propagation advantage",
			Flags: simFlags(
				cli.Float64Flag{Name: "delay-ms", Value: 50},
				cli.Float64Flag{Name: "block-time", Usage: "Block time in seconds (config default when unset)"},
			),
			Action: withEnv(ctx, latencyCmd),
		},
		{
			Name:   "crosschain",
			Usage:  "Split the attacker across several chains",
			Flags:  simFlags(cli.IntFlag{Name: "chains", Value: 3}),
			Action: withEnv(ctx, crossChainCmd),
		},
		{
			Name:   "pool",
			Usage:  "Several cooperating pools attacking together",
			Flags:  simFlags(cli.IntFlag{Name: "pools", Value: 2}),
			Action: withEnv(ctx, poolCmd),
		},
		{
			Name:   "replicate",
			Usage:  "Efficiency distribution over independently seeded replicas",
			Flags:  simFlags(cli.IntFlag{Name: "replicas", Value: 10}),
			Action: withEnv(ctx, replicateCmd),
		},
		{
			Name:  "report",
			Usage: "Run the full analysis and write the report files",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "output-dir", Usage: "Report directory", Value: "report"},
			},
			Action: withEnv(ctx, reportCmd),
		},
		{
			Name:  "verify",
			Usage: "Replay stored runs and check they reproduce",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "run-id", Usage: "Verify one run (all runs when empty)"},
			},
			Action: withEnv(ctx, verifyCmd),
		},
	}
}

// withEnv builds the environment, runs fn and releases the stores.
func withEnv(ctx context.Context, fn func(context.Context, *cli.Context, *env) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		e, err := setup(ctx, c)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(ctx, c, e)
	}
}

// rounds falls back to the configured default only when --rounds is
// absent; explicit values are left to validation.
func (e *env) rounds(c *cli.Context) int {
	if !c.IsSet("rounds") {
		return e.cfg.Rounds
	}
	return c.Int("rounds")
}

// floatOr returns the flag value when set and def otherwise.
func floatOr(c *cli.Context, name string, def float64) float64 {
	if !c.IsSet(name) {
		return def
	}
	return c.Float64(name)
}

func seedOf(c *cli.Context) *uint64 {
	if !c.IsSet("seed") {
		return nil
	}
	return simulation.SeedPtr(c.Uint64("seed"))
}

func simulateCmd(ctx context.Context, c *cli.Context, e *env) error {
	kind := domain.RunKindSelfish
	if c.Bool("honest") {
		kind = domain.RunKindBaseline
	}
	rec, err := e.runner.Run(ctx, simulation.Request{
		Kind:   kind,
		Alpha:  c.Float64("alpha"),
		Gamma:  c.Float64("gamma"),
		Rounds: e.rounds(c),
		Seed:   seedOf(c),
	})
	if err != nil {
		return err
	}
	return e.print(rec)
}

func defendCmd(ctx context.Context, c *cli.Context, e *env) error {
	enabled := !c.Bool("no-defense")
	gamma := c.Float64("gamma")
	gammaDefense, label := c.Float64("gamma-defense"), "with_defense"
	if c.IsSet("strength") {
		strategy, err := defense.FromStrength(gamma, c.Float64("strength"))
		if err != nil {
			return err
		}
		gammaDefense, label = strategy.GammaDefense, strategy.Key
	}
	pair, err := e.driver.SimulateWithDefense(c.Float64("alpha"), gamma,
		gammaDefense, e.rounds(c), enabled, seedOf(c))
	if err != nil {
		return err
	}
	e.record(ctx, domain.RunKindSelfish, "no_defense", pair.Undefended)
	if enabled {
		e.record(ctx, domain.RunKindDefended, label, pair.Defended)
	}
	return e.print(pair)
}

func sweepCmd(ctx context.Context, c *cli.Context, e *env) error {
	res, err := e.driver.ParameterSweep(ctx, domain.SweepParams{
		AlphaMin:     c.Float64("alpha-min"),
		AlphaMax:     c.Float64("alpha-max"),
		AlphaSteps:   c.Int("alpha-steps"),
		GammaAttack:  c.Float64("gamma-attack"),
		GammaDefense: c.Float64("gamma-defense"),
		Rounds:       e.rounds(c),
		Seed:         seedOf(c),
	})
	if err != nil {
		return err
	}
	e.persistSweep(ctx, res)

	if c.Bool("csv") {
		_, err := fmt.Fprint(e.out, reporting.RenderSweepCSV(reporting.SweepRows(res)))
		return err
	}
	return e.print(res)
}

func compareDefensesCmd(ctx context.Context, c *cli.Context, e *env) error {
	gamma := floatOr(c, "gamma-attack", e.cfg.DefenseComparisonGamma)
	seed := seedOf(c)
	if seed == nil {
		seed = simulation.SeedPtr(e.cfg.DefenseComparisonSeed)
	}
	cmp, err := e.driver.CompareDefenses(ctx, c.Float64("alpha"), gamma, e.rounds(c), seed)
	if err != nil {
		return err
	}

	if c.Bool("csv") {
		_, err := fmt.Fprint(e.out, reporting.RenderDefenseCSV(reporting.DefenseRows(cmp)))
		return err
	}
	return e.print(cmp)
}

func asicCmd(ctx context.Context, c *cli.Context, e *env) error {
	mult := c.Float64("multiplier")
	res, err := e.overlay.ASIC(c.Float64("alpha"), mult, c.Float64("gamma"), e.rounds(c), seedOf(c))
	if err != nil {
		return err
	}
	e.recordOverlay(ctx, fmt.Sprintf("asic x%g", mult), res)
	return e.print(res)
}

func mevCmd(ctx context.Context, c *cli.Context, e *env) error {
	avg := floatOr(c, "avg-mev", e.cfg.Analysis.AvgMEVPerBlock)
	p := c.Float64("probability")
	res, err := e.overlay.MEV(c.Float64("alpha"), p, avg, c.Float64("gamma"), e.rounds(c), seedOf(c))
	if err != nil {
		return err
	}
	e.recordOverlay(ctx, fmt.Sprintf("mev p=%g", p), res)
	return e.print(res)
}

func latencyCmd(ctx context.Context, c *cli.Context, e *env) error {
	blockTime := floatOr(c, "block-time", e.cfg.Analysis.BlockTimeSec)
	delay := c.Float64("delay-ms")
	res, err := e.overlay.Latency(c.Float64("alpha"), delay, blockTime, c.Float64("gamma"), e.rounds(c), seedOf(c))
	if err != nil {
		return err
	}
	e.recordOverlay(ctx, fmt.Sprintf("latency %gms", delay), res)
	return e.print(res)
}

func crossChainCmd(ctx context.Context, c *cli.Context, e *env) error {
	n := c.Int("chains")
	res, err := e.overlay.CrossChain(ctx, c.Float64("alpha"), n, c.Float64("gamma"), e.rounds(c), seedOf(c))
	if err != nil {
		return err
	}
	e.recordOverlay(ctx, fmt.Sprintf("crosschain n=%d", n), res)
	return e.print(res)
}

func poolCmd(ctx context.Context, c *cli.Context, e *env) error {
	n := c.Int("pools")
	res, err := e.overlay.PoolCooperation(c.Float64("alpha"), n, c.Float64("gamma"), e.rounds(c), seedOf(c))
	if err != nil {
		return err
	}
	e.recordOverlay(ctx, fmt.Sprintf("pool n=%d", n), res)
	return e.print(res)
}

func replicateCmd(ctx context.Context, c *cli.Context, e *env) error {
	res, err := e.driver.Replicate(ctx, c.Float64("alpha"), c.Float64("gamma"), e.rounds(c), c.Int("replicas"), seedOf(c))
	if err != nil {
		return err
	}
	return e.print(res)
}

func reportCmd(ctx context.Context, c *cli.Context, e *env) error {
	orch, err := orchestrator.New(orchestrator.Options{
		Config:          e.cfg,
		RunStore:        e.stores.Runs,
		SweepPointStore: e.stores.SweepPoints,
		Logger:          e.log,
	})
	if err != nil {
		return err
	}

	analysis, err := orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	report, err := reporting.NewGenerator(e.stores.Runs).Generate(ctx, analysis)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	dir := c.String("output-dir")
	written, err := reporting.WriteFiles(dir, report)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	path := filepath.Join(dir, AnalysisFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	written = append(written, path)

	for _, p := range written {
		fmt.Fprintln(e.out, p)
	}
	e.log.WithField("files", len(written)).Info("report written")
	return nil
}

func verifyCmd(ctx context.Context, c *cli.Context, e *env) error {
	v := verification.NewReplayVerifier(e.stores.Runs)

	if id := c.String("run-id"); id != "" {
		res, err := v.VerifyRun(ctx, id)
		if err != nil {
			return err
		}
		if err := e.print(res); err != nil {
			return err
		}
		if !res.Match {
			return cli.NewExitError(fmt.Sprintf("run %s diverged", id), 2)
		}
		return nil
	}

	report, err := v.VerifyAll(ctx)
	if err != nil {
		return err
	}
	if err := e.print(report); err != nil {
		return err
	}
	if report.DivergentRuns > 0 {
		return cli.NewExitError(fmt.Sprintf("%d of %d runs diverged", report.DivergentRuns, report.TotalRuns), 2)
	}
	return nil
}

// record persists a simulation. Failures are logged only.
func (e *env) record(ctx context.Context, kind domain.RunKind, label string, res domain.SimulationResult) {
	if _, err := e.runner.Record(ctx, kind, label, res); err != nil {
		e.log.WithError(err).WithField("label", label).Warn("persist run failed")
	}
}

func (e *env) recordOverlay(ctx context.Context, label string, res domain.OverlayResult) {
	e.record(ctx, res.Kind(), label, res.Simulation())
}

func (e *env) persistSweep(ctx context.Context, res *domain.SweepResult) {
	records := make([]*domain.SweepPointRecord, len(res.Points))
	for i, pt := range res.Points {
		records[i] = &domain.SweepPointRecord{SweepID: res.SweepID, Point: pt}
	}
	if err := e.stores.SweepPoints.InsertBulk(ctx, records); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		e.log.WithError(err).WithField("sweep_id", res.SweepID).Warn("persist sweep points failed")
	}
}
