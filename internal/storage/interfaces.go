package storage

import (
	"context"

	"selfish-mining-lab/internal/domain"
)

// RunStore provides access to simulation_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// InsertBulk adds multiple runs atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, runs []*domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetByKind retrieves all runs of a kind, ordered by created_at ASC, run_id ASC.
	GetByKind(ctx context.Context, kind domain.RunKind) ([]*domain.RunRecord, error)

	// GetAll retrieves all runs, ordered by created_at ASC, run_id ASC.
	GetAll(ctx context.Context) ([]*domain.RunRecord, error)
}

// SweepPointStore provides access to sweep_points storage.
type SweepPointStore interface {
	// InsertBulk adds multiple points atomically.
	// Returns ErrDuplicateKey if any (sweep_id, point index) exists.
	InsertBulk(ctx context.Context, points []*domain.SweepPointRecord) error

	// GetBySweepID retrieves all points of a sweep, ordered by alpha ASC.
	// Returns an empty slice if the sweep is unknown.
	GetBySweepID(ctx context.Context, sweepID string) ([]*domain.SweepPointRecord, error)

	// GetOptimal retrieves the point with the highest undefended efficiency.
	// Returns ErrNotFound if the sweep has no points.
	GetOptimal(ctx context.Context, sweepID string) (*domain.SweepPointRecord, error)
}
