package clickhouse

import (
	"context"
	"fmt"
	"time"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/observability"
	"selfish-mining-lab/internal/storage"
)

// SweepPointStore implements storage.SweepPointStore using ClickHouse.
type SweepPointStore struct {
	conn *Conn
}

// NewSweepPointStore creates a new SweepPointStore.
func NewSweepPointStore(conn *Conn) *SweepPointStore {
	return &SweepPointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SweepPointStore = (*SweepPointStore)(nil)

const sweepPointColumns = `
	sweep_id, point_index, alpha, seed,
	gamma_attack, gamma_defense, rounds,
	nd_attacker_blocks, nd_honest_blocks, nd_stale_blocks,
	wd_attacker_blocks, wd_honest_blocks, wd_stale_blocks,
	block_reward, avg_tx_fee_per_block,
	efficiency_no_defense, efficiency_with_defense, analytic_efficiency, revenue_advantage_btc
`

// InsertBulk adds multiple points atomically. Fails entire batch on any duplicate.
func (s *SweepPointStore) InsertBulk(ctx context.Context, points []*domain.SweepPointRecord) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.SweepID == "" {
			return storage.ErrInvalidInput
		}
		key := fmt.Sprintf("%s|%d", p.SweepID, p.Point.Index)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	// ReplacingMergeTree would silently replace; keep append-only semantics.
	for _, p := range points {
		exists, err := s.exists(ctx, p.SweepID, p.Point.Index)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	start := time.Now()
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO sweep_points (`+sweepPointColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		pt := p.Point
		nd, wd := pt.NoDefense, pt.WithDefense
		err = batch.Append(
			p.SweepID, uint32(pt.Index), pt.Alpha, pt.Seed,
			nd.Gamma, wd.Gamma, uint32(nd.Rounds),
			uint64(nd.AttackerBlocks), uint64(nd.HonestBlocks), uint64(nd.StaleBlocks),
			uint64(wd.AttackerBlocks), uint64(wd.HonestBlocks), uint64(wd.StaleBlocks),
			nd.BlockReward, nd.AvgTxFeePerBlock,
			pt.EfficiencyNoDefense, pt.EfficiencyWithDefense, pt.AnalyticEfficiency, pt.RevenueAdvantage,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "insert_sweep_points", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySweepID retrieves all points of a sweep, ordered by alpha.
func (s *SweepPointStore) GetBySweepID(ctx context.Context, sweepID string) ([]*domain.SweepPointRecord, error) {
	query := `SELECT ` + sweepPointColumns + `
		FROM sweep_points FINAL
		WHERE sweep_id = ?
		ORDER BY alpha ASC, point_index ASC
	`

	rows, err := s.conn.Query(ctx, query, sweepID)
	if err != nil {
		return nil, fmt.Errorf("query by sweep id: %w", err)
	}
	defer rows.Close()

	return scanSweepPoints(rows)
}

// GetOptimal retrieves the point with the highest undefended efficiency;
// ties resolve to the lowest alpha.
func (s *SweepPointStore) GetOptimal(ctx context.Context, sweepID string) (*domain.SweepPointRecord, error) {
	query := `SELECT ` + sweepPointColumns + `
		FROM sweep_points FINAL
		WHERE sweep_id = ?
		ORDER BY efficiency_no_defense DESC, alpha ASC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, sweepID)
	if err != nil {
		return nil, fmt.Errorf("query optimal: %w", err)
	}
	defer rows.Close()

	points, err := scanSweepPoints(rows)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return points[0], nil
}

// exists checks if a point with the given key exists.
func (s *SweepPointStore) exists(ctx context.Context, sweepID string, index int) (bool, error) {
	query := `
		SELECT count(*) FROM sweep_points FINAL
		WHERE sweep_id = ? AND point_index = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, sweepID, uint32(index)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanSweepPoints scans multiple rows into a slice.
func scanSweepPoints(rows chRows) ([]*domain.SweepPointRecord, error) {
	points := []*domain.SweepPointRecord{}

	for rows.Next() {
		var (
			rec                       domain.SweepPointRecord
			index, rounds             uint32
			gammaAttack, gammaDefense float64
			ndAtt, ndHon, ndStale     uint64
			wdAtt, wdHon, wdStale     uint64
			blockReward, avgFee       float64
		)
		pt := &rec.Point

		err := rows.Scan(
			&rec.SweepID, &index, &pt.Alpha, &pt.Seed,
			&gammaAttack, &gammaDefense, &rounds,
			&ndAtt, &ndHon, &ndStale,
			&wdAtt, &wdHon, &wdStale,
			&blockReward, &avgFee,
			&pt.EfficiencyNoDefense, &pt.EfficiencyWithDefense, &pt.AnalyticEfficiency, &pt.RevenueAdvantage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sweep point row: %w", err)
		}

		pt.Index = int(index)
		pt.NoDefense = domain.SimulationResult{
			Alpha: pt.Alpha, Gamma: gammaAttack, Rounds: int(rounds), Seed: pt.Seed,
			AttackerBlocks: int(ndAtt), HonestBlocks: int(ndHon), StaleBlocks: int(ndStale),
			BlockReward: blockReward, AvgTxFeePerBlock: avgFee,
		}
		pt.WithDefense = domain.SimulationResult{
			Alpha: pt.Alpha, Gamma: gammaDefense, Rounds: int(rounds), Seed: pt.Seed,
			AttackerBlocks: int(wdAtt), HonestBlocks: int(wdHon), StaleBlocks: int(wdStale),
			BlockReward: blockReward, AvgTxFeePerBlock: avgFee,
		}
		points = append(points, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweep point rows: %w", err)
	}

	return points, nil
}
