package verification

import (
	"context"
	"errors"
	"fmt"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/idhash"
	"selfish-mining-lab/internal/simulation"
	"selfish-mining-lab/internal/storage"
)

var (
	// ErrRunNotFound is returned when run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")
)

// ReplayVerifier implements Verifier interface.
type ReplayVerifier struct {
	runStore storage.RunStore
	runner   *simulation.Runner
}

// NewReplayVerifier creates a new ReplayVerifier. Replays never persist.
func NewReplayVerifier(runStore storage.RunStore) *ReplayVerifier {
	return &ReplayVerifier{
		runStore: runStore,
		runner:   simulation.NewRunner(simulation.RunnerOptions{}),
	}
}

// VerifyRun verifies a single run by replaying its simulation.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	// 1. Load stored run
	stored, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	return v.verify(stored)
}

// VerifyAll verifies all stored runs.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	runs, err := v.runStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(runs),
		Results:   make([]VerificationResult, 0, len(runs)),
	}

	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := v.verify(run)
		if err != nil {
			// Record error as divergence
			report.Results = append(report.Results, VerificationResult{
				RunID: run.RunID,
				Kind:  run.Kind,
				Match: false,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentRuns++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}

func (v *ReplayVerifier) verify(stored *domain.RunRecord) (*VerificationResult, error) {
	// 1. Replay from the stored seed and reward schedule
	replayed, err := v.runner.Replay(stored)
	if err != nil {
		return nil, err
	}

	// 2. Compare results
	divergences := CompareResults(stored.Result, replayed)

	// 3. The run ID must still hash from the stored identity
	if stored.Seed != stored.Result.Seed {
		divergences = append(divergences, FieldDivergence{
			Field:    "RecordSeed",
			Expected: stored.Seed,
			Actual:   stored.Result.Seed,
		})
	}
	wantID := idhash.ComputeRunID(stored.Kind, stored.Label, stored.Result.Alpha, stored.Result.Gamma, stored.Result.Rounds, stored.Seed)
	if wantID != stored.RunID {
		divergences = append(divergences, FieldDivergence{
			Field:    "RunID",
			Expected: stored.RunID,
			Actual:   wantID,
		})
	}

	res := &VerificationResult{
		RunID:       stored.RunID,
		Kind:        stored.Kind,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}
	// Efficiency is undefined at alpha 0; both sides stay 0 then.
	res.StoredEfficiency, _ = stored.Result.EfficiencyAdvantage()
	res.ReplayedEfficiency, _ = replayed.EfficiencyAdvantage()
	return res, nil
}
