package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/observability"
	"selfish-mining-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const insertRunQuery = `
	INSERT INTO simulation_runs (
		run_id, kind, label, seed, created_at,
		alpha, gamma, rounds,
		attacker_blocks, honest_blocks, stale_blocks,
		block_reward, avg_tx_fee_per_block, attacker_revenue_btc, honest_revenue_btc
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8,
		$9, $10, $11,
		$12, $13, $14, $15
	)
`

const selectRunColumns = `
	SELECT
		run_id, kind, label, seed, created_at,
		alpha, gamma, rounds,
		attacker_blocks, honest_blocks, stale_blocks,
		block_reward, avg_tx_fee_per_block
	FROM simulation_runs
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	_, err := s.pool.Exec(ctx, insertRunQuery, runArgs(r)...)
	observability.RecordDBQuery("postgres", "insert_run", time.Since(start).Seconds(), err)
	return translate("insert run", err)
}

// InsertBulk adds multiple runs atomically. Fails entire batch on any duplicate.
func (s *RunStore) InsertBulk(ctx context.Context, runs []*domain.RunRecord) error {
	if len(runs) == 0 {
		return nil
	}
	for _, r := range runs {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	start := time.Now()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range runs {
			batch.Queue(insertRunQuery, runArgs(r)...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	observability.RecordDBQuery("postgres", "insert_runs", time.Since(start).Seconds(), err)
	return translate("insert runs", err)
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	row := s.pool.QueryRow(ctx, selectRunColumns+` WHERE run_id = $1`, runID)
	r, err := scanRun(row)
	if err != nil {
		return nil, translate("get run by id", err)
	}
	return r, nil
}

// GetByKind retrieves all runs of a kind.
func (s *RunStore) GetByKind(ctx context.Context, kind domain.RunKind) ([]*domain.RunRecord, error) {
	rows, err := s.pool.Query(ctx, selectRunColumns+`
		WHERE kind = $1
		ORDER BY created_at ASC, run_id ASC
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("get runs by kind: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetAll retrieves all runs.
func (s *RunStore) GetAll(ctx context.Context) ([]*domain.RunRecord, error) {
	rows, err := s.pool.Query(ctx, selectRunColumns+`
		ORDER BY created_at ASC, run_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get all runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// runArgs flattens a record into insertRunQuery arguments. The seed is
// bit-cast into BIGINT; currency columns are NUMERIC at satoshi precision.
func runArgs(r *domain.RunRecord) []any {
	res := r.Result
	return []any{
		r.RunID, string(r.Kind), r.Label, int64(r.Seed), r.CreatedAt,
		res.Alpha, res.Gamma, res.Rounds,
		int64(res.AttackerBlocks), int64(res.HonestBlocks), int64(res.StaleBlocks),
		domain.BTC(res.BlockReward),
		domain.BTC(res.AvgTxFeePerBlock),
		domain.RevenueBTC(res.AttackerBlocks, res.BlockReward, res.AvgTxFeePerBlock),
		domain.RevenueBTC(res.HonestBlocks, res.BlockReward, res.AvgTxFeePerBlock),
	}
}

// scanRun scans a single row into a RunRecord.
func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var (
		r                   domain.RunRecord
		kind                string
		seed                int64
		attacker, honest    int64
		stale               int64
		blockReward, avgFee decimal.Decimal
	)

	err := row.Scan(
		&r.RunID, &kind, &r.Label, &seed, &r.CreatedAt,
		&r.Result.Alpha, &r.Result.Gamma, &r.Result.Rounds,
		&attacker, &honest, &stale,
		&blockReward, &avgFee,
	)
	if err != nil {
		return nil, err
	}

	r.Kind = domain.RunKind(kind)
	r.Seed = uint64(seed)
	r.Result.Seed = r.Seed
	r.Result.AttackerBlocks = int(attacker)
	r.Result.HonestBlocks = int(honest)
	r.Result.StaleBlocks = int(stale)
	r.Result.BlockReward = blockReward.InexactFloat64()
	r.Result.AvgTxFeePerBlock = avgFee.InexactFloat64()

	return &r, nil
}

// scanRuns scans multiple rows into a slice of RunRecord.
func scanRuns(rows pgx.Rows) ([]*domain.RunRecord, error) {
	runs := []*domain.RunRecord{}

	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}
