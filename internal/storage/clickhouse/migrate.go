package clickhouse

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"selfish-mining-lab/internal/storage/migrations"
)

// Migrate creates the DSN's database if needed, applies the embedded
// migrations statement by statement and returns a connection to that
// database. The schema uses IF NOT EXISTS throughout, so re-running is safe.
func Migrate(ctx context.Context, dsn string, log logrus.FieldLogger) (*Conn, error) {
	opts, err := Options(dsn)
	if err != nil {
		return nil, err
	}
	database := opts.Auth.Database
	if database == "" {
		return nil, fmt.Errorf("clickhouse dsn %q names no database", dsn)
	}

	admin, err := NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database))
	admin.Close()
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", database, err)
	}

	conn, err := NewConn(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := applyMigrations(ctx, conn, log); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func applyMigrations(ctx context.Context, conn *Conn, log logrus.FieldLogger) error {
	files, err := migrations.Clickhouse()
	if err != nil {
		return err
	}
	for _, f := range files {
		for _, stmt := range migrations.SplitStatements(f.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", f.Version, err)
			}
		}
		log.WithFields(logrus.Fields{
			"version":  f.Version,
			"database": conn.Database(),
		}).Info("applied clickhouse migration")
	}
	return nil
}
