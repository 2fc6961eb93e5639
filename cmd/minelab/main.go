// Package main provides the minelab CLI: one subcommand per simulation
// operation plus full analysis reports and stored-run verification.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"selfish-mining-lab/internal/config"
	"selfish-mining-lab/internal/overlay"
	"selfish-mining-lab/internal/simulation"
	"selfish-mining-lab/internal/storage/backend"
	"selfish-mining-lab/internal/sweep"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(ctx, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Usage:  "Model config YAML file (defaults when empty)",
			EnvVar: "MINELAB_CONFIG",
		},
		cli.StringFlag{
			Name:  "log.level",
			Usage: "Log level (trace|debug|info|warn|error)",
			Value: "info",
		},
		cli.StringFlag{
			Name:  "log.format",
			Usage: "Log output format (text|json)",
			Value: "text",
		},
		cli.StringFlag{
			Name:   "postgres-dsn",
			Usage:  "PostgreSQL connection string for runs (memory when empty)",
			EnvVar: "POSTGRES_DSN",
		},
		cli.StringFlag{
			Name:   "clickhouse-dsn",
			Usage:  "ClickHouse connection string for sweep points (memory when empty)",
			EnvVar: "CLICKHOUSE_DSN",
		},
		cli.BoolFlag{
			Name:  "migrate",
			Usage: "Apply embedded migrations before running",
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "Worker pool size (overrides config when > 0)",
		},
	}
}

func newApp(ctx context.Context, out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "minelab"
	app.Usage = "Selfish mining attack and defense simulator"
	app.Version = "0.1.0"
	app.Writer = out
	app.Flags = globalFlags()
	app.Commands = commands(ctx)
	return app
}

// env holds the components a subcommand needs.
type env struct {
	cfg    config.ModelConfig
	log    *logrus.Logger
	stores *backend.Stores

	sim     *simulation.Simulator
	runner  *simulation.Runner
	driver  *sweep.Driver
	overlay *overlay.Engine

	out io.Writer
}

// setup builds the logger, config and stores from the global flags.
func setup(ctx context.Context, c *cli.Context) (*env, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(c.GlobalString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	logger.SetLevel(lvl)
	switch c.GlobalString("log.format") {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
	default:
		return nil, fmt.Errorf("unknown log.format %q", c.GlobalString("log.format"))
	}

	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	if w := c.GlobalInt("workers"); w > 0 {
		cfg.Workers = w
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sim, err := cfg.Simulator()
	if err != nil {
		return nil, err
	}
	driver, err := sweep.NewDriver(sweep.DriverOptions{
		Simulator:  sim,
		Workers:    cfg.Workers,
		Strategies: cfg.Defenses,
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

	stores, err := backend.Open(ctx, backend.Config{
		PostgresDSN:   c.GlobalString("postgres-dsn"),
		ClickhouseDSN: c.GlobalString("clickhouse-dsn"),
		Migrate:       c.GlobalBool("migrate"),
	}, logger)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:    cfg,
		log:    logger,
		stores: stores,
		sim:    sim,
		runner: simulation.NewRunner(simulation.RunnerOptions{
			Simulator: sim,
			RunStore:  stores.Runs,
		}),
		driver:  driver,
		overlay: engine,
		out:     c.App.Writer,
	}, nil
}

func (e *env) Close() {
	e.stores.Close()
}

// print writes v as indented JSON.
func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
