package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"selfish-mining-lab/internal/storage/migrations"
)

const createSchemaMigrations = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Migrate applies the embedded migrations that are not yet recorded in
// schema_migrations. Each migration runs in its own transaction together
// with its bookkeeping row.
func Migrate(ctx context.Context, pool *Pool, log logrus.FieldLogger) error {
	files, err := migrations.Postgres()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaMigrations); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, f := range files {
		var applied bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, f.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", f.Version, err)
		}
		if applied {
			continue
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, f.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, f.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", f.Version, err)
		}
		log.WithField("version", f.Version).Info("applied postgres migration")
	}
	return nil
}
