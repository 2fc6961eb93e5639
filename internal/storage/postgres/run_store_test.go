package postgres

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/storage"
)

func makeRun(id string, kind domain.RunKind, createdAt int64, seed uint64) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:     id,
		Kind:      kind,
		Label:     "test",
		Seed:      seed,
		CreatedAt: createdAt,
		Result: domain.SimulationResult{
			Alpha: 0.25, Gamma: 0.9, Rounds: 1000, Seed: seed,
			AttackerBlocks: 294, HonestBlocks: 706, StaleBlocks: 87,
			BlockReward: 6.25, AvgTxFeePerBlock: 0.5,
		},
	}
}

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool := setupTestDB(t)

	store := NewRunStore(pool)
	ctx := context.Background()

	// Seeds above MaxInt64 must survive the BIGINT column.
	run := makeRun("run-1", domain.RunKindSelfish, 1000, math.MaxUint64-5)
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, *run, *got)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_Duplicate(t *testing.T) {
	pool := setupTestDB(t)

	store := NewRunStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, makeRun("dup", domain.RunKindBaseline, 1, 1)))
	assert.ErrorIs(t, store.Insert(ctx, makeRun("dup", domain.RunKindBaseline, 2, 2)), storage.ErrDuplicateKey)

	err := store.InsertBulk(ctx, []*domain.RunRecord{
		makeRun("fresh", domain.RunKindSelfish, 3, 3),
		makeRun("dup", domain.RunKindSelfish, 4, 4),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Bulk insert is atomic.
	_, err = store.GetByID(ctx, "fresh")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.Insert(ctx, &domain.RunRecord{}), storage.ErrInvalidInput)
}

func TestRunStore_Ordering(t *testing.T) {
	pool := setupTestDB(t)

	store := NewRunStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.RunRecord{
		makeRun("c", domain.RunKindSelfish, 20, 1),
		makeRun("b", domain.RunKindBaseline, 10, 2),
		makeRun("a", domain.RunKindSelfish, 20, 3),
	}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})

	selfish, err := store.GetByKind(ctx, domain.RunKindSelfish)
	require.NoError(t, err)
	require.Len(t, selfish, 2)
	assert.Equal(t, "a", selfish[0].RunID)

	none, err := store.GetByKind(ctx, domain.RunKindMEV)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRunStore_RejectsInconsistentCounts(t *testing.T) {
	pool := setupTestDB(t)

	store := NewRunStore(pool)
	r := makeRun("bad", domain.RunKindSelfish, 1, 1)
	r.Result.HonestBlocks = 1 // attacker + honest no longer equals rounds

	assert.ErrorIs(t, store.Insert(context.Background(), r), storage.ErrInvalidInput)
}

func TestRunStore_BulkDuplicateRollsBack(t *testing.T) {
	pool := setupTestDB(t)

	store := NewRunStore(pool)
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.RunRecord{
		makeRun("x", domain.RunKindSelfish, 1, 1),
		makeRun("x", domain.RunKindSelfish, 2, 2),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMigrate_Idempotent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	log := logrus.New()
	log.SetOutput(io.Discard)
	require.NoError(t, Migrate(ctx, pool, log))

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)
}
