package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/idhash"
	"selfish-mining-lab/internal/observability"
	"selfish-mining-lab/internal/storage"
)

// Runner errors
var (
	ErrUnsupportedKind = errors.New("run kind is not reproducible by a single simulation")
)

// Request describes one persisted simulation.
type Request struct {
	Kind   domain.RunKind
	Label  string
	Alpha  float64
	Gamma  float64 // ignored for baseline
	Rounds int
	Seed   *uint64
}

// Runner executes simulations and persists them as run records.
type Runner struct {
	sim      *Simulator
	runStore storage.RunStore
	now      func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Simulator *Simulator       // default: NewDefaultSimulator()
	RunStore  storage.RunStore // optional; nil skips persistence
	Clock     func() time.Time // default: time.Now
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		sim:      opts.Simulator,
		runStore: opts.RunStore,
		now:      opts.Clock,
	}
	if r.sim == nil {
		r.sim = NewDefaultSimulator()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Run executes a simulation request.
// Steps:
//  1. Resolve the seed so the record is reproducible
//  2. Simulate (validation happens before any sampling)
//  3. Build RunRecord with a deterministic run_id
//  4. Persist RunRecord; an existing record with the same run_id is returned as-is
func (r *Runner) Run(ctx context.Context, req Request) (*domain.RunRecord, error) {
	// 1. Resolve seed
	seed := ResolveSeed(req.Seed)

	// 2. Simulate
	start := r.now()
	result, err := r.Simulate(req.Kind, req.Alpha, req.Gamma, req.Rounds, seed)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParameter) {
			observability.RecordInvalidParameter(string(req.Kind))
		}
		return nil, err
	}
	observability.RecordSimulation(string(req.Kind), req.Rounds, r.now().Sub(start).Seconds())

	// 3. Build RunRecord
	rec := r.newRecord(req.Kind, req.Label, result, start)

	// 4. Persist RunRecord
	return r.persist(ctx, rec)
}

// Record persists a result that was simulated elsewhere, such as the
// primary run of an attack overlay. The result's own seed identifies it.
func (r *Runner) Record(ctx context.Context, kind domain.RunKind, label string, result domain.SimulationResult) (*domain.RunRecord, error) {
	if !kind.IsValid() || kind == domain.RunKindSweep {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	return r.persist(ctx, r.newRecord(kind, label, result, r.now()))
}

func (r *Runner) newRecord(kind domain.RunKind, label string, result domain.SimulationResult, at time.Time) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:     idhash.ComputeRunID(kind, label, result.Alpha, result.Gamma, result.Rounds, result.Seed),
		Kind:      kind,
		Label:     label,
		Seed:      result.Seed,
		CreatedAt: at.UnixMilli(),
		Result:    result,
	}
}

// persist inserts rec; an existing record with the same run_id is returned
// as-is.
func (r *Runner) persist(ctx context.Context, rec *domain.RunRecord) (*domain.RunRecord, error) {
	if r.runStore == nil {
		return rec, nil
	}
	if err := r.runStore.Insert(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return r.runStore.GetByID(ctx, rec.RunID)
		}
		return nil, fmt.Errorf("persist run %s: %w", rec.RunID, err)
	}
	return rec, nil
}

// Simulate runs the single simulation a run kind stands for. Baseline runs
// are honest races; every other kind stores its primary selfish run at the
// effective parameters, so it replays as a selfish race.
func (r *Runner) Simulate(kind domain.RunKind, alpha, gamma float64, rounds int, seed uint64) (domain.SimulationResult, error) {
	return simulateKind(r.sim, kind, alpha, gamma, rounds, seed)
}

// Replay re-simulates a stored run from its seed, parameters and reward
// schedule.
func (r *Runner) Replay(rec *domain.RunRecord) (domain.SimulationResult, error) {
	sim, err := NewSimulator(Economics{
		BlockReward:      rec.Result.BlockReward,
		AvgTxFeePerBlock: rec.Result.AvgTxFeePerBlock,
	})
	if err != nil {
		return domain.SimulationResult{}, err
	}
	return simulateKind(sim, rec.Kind, rec.Result.Alpha, rec.Result.Gamma, rec.Result.Rounds, rec.Seed)
}

func simulateKind(sim *Simulator, kind domain.RunKind, alpha, gamma float64, rounds int, seed uint64) (domain.SimulationResult, error) {
	switch kind {
	case domain.RunKindBaseline:
		return sim.Baseline(alpha, rounds, &seed)
	case domain.RunKindSelfish, domain.RunKindDefended, domain.RunKindDefense,
		domain.RunKindASIC, domain.RunKindMEV, domain.RunKindLatency,
		domain.RunKindCrossChain, domain.RunKindPool:
		return sim.Selfish(alpha, gamma, rounds, &seed)
	default:
		return domain.SimulationResult{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
}
