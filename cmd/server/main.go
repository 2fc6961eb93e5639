// Package main provides the HTTP server for the simulation API:
// - JSON endpoints for every simulation operation
// - /ws/sweep streaming sweep progress
// - /metrics and /health
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"selfish-mining-lab/internal/api"
	"selfish-mining-lab/internal/config"
	"selfish-mining-lab/internal/storage/backend"
)

// shutdownTimeout bounds graceful shutdown after a signal.
const shutdownTimeout = 30 * time.Second

type options struct {
	addr          string
	configPath    string
	postgresDSN   string
	clickhouseDSN string
	migrate       bool
	cacheSize     int
	logLevel      string
	logFormat     string
}

func main() {
	// Values from .env never override the real environment.
	if err := loadEnvFile(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error reading .env: %v\n", err)
		os.Exit(1)
	}

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the command line; environment variables supply the
// defaults.
func parseFlags(args []string, errOut io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(errOut)

	fs.StringVar(&o.addr, "addr", envOr("MINELAB_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&o.configPath, "config", os.Getenv("MINELAB_CONFIG"), "Model config YAML file (defaults when empty)")
	fs.StringVar(&o.postgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (memory when empty)")
	fs.StringVar(&o.clickhouseDSN, "clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (memory when empty)")
	fs.BoolVar(&o.migrate, "migrate", true, "Apply embedded migrations on start")
	fs.IntVar(&o.cacheSize, "cache-size", api.DefaultCacheSize, "Number of cached seeded responses")
	fs.StringVar(&o.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", envOr("LOG_FORMAT", "text"), "Log format (text, json)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return o, nil
}

func newLogger(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(lvl)
	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return logger, nil
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, o options) error {
	logger, err := newLogger(o.logLevel, o.logFormat)
	if err != nil {
		return err
	}
	log := logger.WithField("service", "server")

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	stores, err := backend.Open(ctx, backend.Config{
		PostgresDSN:   o.postgresDSN,
		ClickhouseDSN: o.clickhouseDSN,
		Migrate:       o.migrate,
	}, log)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer stores.Close()

	srv, err := api.NewServer(api.Options{
		Config:          cfg,
		RunStore:        stores.Runs,
		SweepPointStore: stores.SweepPoints,
		CacheSize:       o.cacheSize,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              o.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    o.addr,
			"rounds":  cfg.Rounds,
			"workers": cfg.Workers,
		}).Info("Starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("Shutdown complete")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile sets KEY=VALUE pairs from path for keys not already in the
// environment. Blank lines, # comments, an "export " prefix and matching
// surrounding quotes are accepted.
func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))

		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
	return sc.Err()
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
