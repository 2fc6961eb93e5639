package storage

import "errors"

// Store errors. Runs and sweep points are write-once: a record is never
// updated after insert.
var (
	// ErrNotFound is returned for an unknown run_id, or by GetOptimal for a
	// sweep without points.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a run_id or (sweep_id, index) is
	// already stored. Bulk inserts fail as a whole.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned for nil records, empty keys and rows that
	// contradict the schema constraints.
	ErrInvalidInput = errors.New("invalid input")
)
