package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/storage/memory"
)

func fixedClock() time.Time {
	return time.UnixMilli(1704067200000)
}

func TestRunner_Run_Persists(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRunStore()

	runner := NewRunner(RunnerOptions{RunStore: store, Clock: fixedClock})

	rec, err := runner.Run(ctx, Request{
		Kind:   domain.RunKindSelfish,
		Alpha:  0.25,
		Gamma:  0.9,
		Rounds: 10000,
		Seed:   SeedPtr(2025),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if rec.CreatedAt != 1704067200000 {
		t.Errorf("CreatedAt = %d, want 1704067200000", rec.CreatedAt)
	}
	if rec.Seed != 2025 || rec.Result.Seed != 2025 {
		t.Errorf("seed not recorded: record %d, result %d", rec.Seed, rec.Result.Seed)
	}

	stored, err := store.GetByID(ctx, rec.RunID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Result != rec.Result {
		t.Errorf("stored result differs from returned result")
	}
}

func TestRunner_Run_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRunStore()
	runner := NewRunner(RunnerOptions{RunStore: store, Clock: fixedClock})

	req := Request{Kind: domain.RunKindBaseline, Alpha: 0.3, Rounds: 5000, Seed: SeedPtr(1)}

	first, err := runner.Run(ctx, req)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := runner.Run(ctx, req)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if first.RunID != second.RunID {
		t.Errorf("run_id differs across identical seeded runs: %s vs %s", first.RunID, second.RunID)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 1 {
		t.Errorf("expected 1 stored run, got %d", len(all))
	}
}

func TestRunner_Run_InvalidParameter(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRunStore()
	runner := NewRunner(RunnerOptions{RunStore: store})

	_, err := runner.Run(ctx, Request{Kind: domain.RunKindSelfish, Alpha: 1.2, Gamma: 0.5, Rounds: 100})
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 0 {
		t.Errorf("rejected run was persisted")
	}
}

func TestRunner_Run_UnsupportedKind(t *testing.T) {
	runner := NewRunner(RunnerOptions{})

	_, err := runner.Run(context.Background(), Request{Kind: domain.RunKindSweep, Alpha: 0.3, Rounds: 100})
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}

func TestRunner_Replay(t *testing.T) {
	sim, err := NewSimulator(Economics{BlockReward: 3.125, AvgTxFeePerBlock: 0.2})
	if err != nil {
		t.Fatalf("NewSimulator failed: %v", err)
	}
	runner := NewRunner(RunnerOptions{Simulator: sim})

	for _, kind := range []domain.RunKind{domain.RunKindBaseline, domain.RunKindSelfish, domain.RunKindLatency} {
		rec, err := runner.Run(context.Background(), Request{Kind: kind, Alpha: 0.35, Gamma: 0.6, Rounds: 20000})
		if err != nil {
			t.Fatalf("%s: Run failed: %v", kind, err)
		}

		// Replay uses the recorded reward schedule, not the runner's.
		replayed, err := NewRunner(RunnerOptions{}).Replay(rec)
		if err != nil {
			t.Fatalf("%s: Replay failed: %v", kind, err)
		}
		if replayed != rec.Result {
			t.Errorf("%s: replay diverged: %+v vs %+v", kind, replayed, rec.Result)
		}
	}
}

func TestRunner_Record(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRunStore()
	runner := NewRunner(RunnerOptions{RunStore: store, Clock: fixedClock})

	result, err := NewDefaultSimulator().Selfish(0.28, 0.9, 5000, SeedPtr(9))
	if err != nil {
		t.Fatalf("Selfish failed: %v", err)
	}

	rec, err := runner.Record(ctx, domain.RunKindASIC, "x3", result)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.Seed != 9 || rec.Kind != domain.RunKindASIC {
		t.Errorf("unexpected record: %+v", rec)
	}

	replayed, err := runner.Replay(rec)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if replayed != result {
		t.Errorf("recorded overlay run does not replay")
	}

	if _, err := runner.Record(ctx, domain.RunKindSweep, "", result); !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("expected ErrUnsupportedKind for sweep, got %v", err)
	}
}
