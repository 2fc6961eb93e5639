// Package backend opens the run and sweep-point stores selected by DSN.
// An empty DSN selects the in-memory store for that table.
package backend

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"selfish-mining-lab/internal/storage"
	chstore "selfish-mining-lab/internal/storage/clickhouse"
	"selfish-mining-lab/internal/storage/memory"
	pgstore "selfish-mining-lab/internal/storage/postgres"
)

// Config selects the storage backends.
type Config struct {
	PostgresDSN   string // simulation_runs; empty: memory
	ClickhouseDSN string // sweep_points; empty: memory
	Migrate       bool   // apply embedded migrations on open
}

// Stores holds the opened stores.
type Stores struct {
	Runs        storage.RunStore
	SweepPoints storage.SweepPointStore

	closers []func()
}

// Close releases database connections in reverse open order.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Open connects the configured backends.
func Open(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Stores, error) {
	s := &Stores{}

	// PostgreSQL (runs)
	if cfg.PostgresDSN == "" {
		s.Runs = memory.NewRunStore()
		log.Debug("runs: in-memory store")
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		if cfg.Migrate {
			if err := pgstore.Migrate(ctx, pool, log); err != nil {
				s.Close()
				return nil, err
			}
		}
		s.Runs = pgstore.NewRunStore(pool)
		log.Info("runs: postgres store")
	}

	// ClickHouse (sweep points)
	if cfg.ClickhouseDSN == "" {
		s.SweepPoints = memory.NewSweepPointStore()
		log.Debug("sweep points: in-memory store")
		return s, nil
	}

	var (
		conn *chstore.Conn
		err  error
	)
	if cfg.Migrate {
		conn, err = chstore.Migrate(ctx, cfg.ClickhouseDSN, log)
	} else {
		conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	s.closers = append(s.closers, func() { conn.Close() })
	s.SweepPoints = chstore.NewSweepPointStore(conn)
	log.Info("sweep points: clickhouse store")

	return s, nil
}
