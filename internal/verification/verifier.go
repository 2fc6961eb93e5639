// Package verification replays stored simulation runs from their seeds and
// checks that the stored results match the replayed ones.
package verification

import (
	"context"
	"math"

	"selfish-mining-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID              string            // verified run ID
	Kind               domain.RunKind    // run kind
	Match              bool              // true if all fields match
	Divergences        []FieldDivergence // list of divergent fields
	StoredEfficiency   float64           // efficiency from stored run
	ReplayedEfficiency float64           // efficiency from replayed run
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int                  // total runs verified
	MatchedRuns   int                  // runs that matched exactly
	DivergentRuns int                  // runs with divergences
	Results       []VerificationResult // individual results
}

// Verifier interface for run replay verification.
type Verifier interface {
	// VerifyRun verifies a single run by ID.
	// It loads the stored run, re-simulates it from its seed and compares
	// all fields.
	VerifyRun(ctx context.Context, runID string) (*VerificationResult, error)

	// VerifyAll verifies all stored runs.
	// Returns a report with individual results.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// CompareResults compares two simulation results and returns divergences.
// Block counts and the seed must match exactly; floats use FloatTolerance.
func CompareResults(stored, replayed domain.SimulationResult) []FieldDivergence {
	var divergences []FieldDivergence

	ints := []struct {
		field    string
		expected int
		actual   int
	}{
		{"Rounds", stored.Rounds, replayed.Rounds},
		{"AttackerBlocks", stored.AttackerBlocks, replayed.AttackerBlocks},
		{"HonestBlocks", stored.HonestBlocks, replayed.HonestBlocks},
		{"StaleBlocks", stored.StaleBlocks, replayed.StaleBlocks},
	}
	for _, c := range ints {
		if c.expected != c.actual {
			divergences = append(divergences, FieldDivergence{
				Field:    c.field,
				Expected: c.expected,
				Actual:   c.actual,
			})
		}
	}

	if stored.Seed != replayed.Seed {
		divergences = append(divergences, FieldDivergence{
			Field:    "Seed",
			Expected: stored.Seed,
			Actual:   replayed.Seed,
		})
	}

	floats := []struct {
		field    string
		expected float64
		actual   float64
	}{
		{"Alpha", stored.Alpha, replayed.Alpha},
		{"Gamma", stored.Gamma, replayed.Gamma},
		{"BlockReward", stored.BlockReward, replayed.BlockReward},
		{"AvgTxFeePerBlock", stored.AvgTxFeePerBlock, replayed.AvgTxFeePerBlock},
	}
	for _, c := range floats {
		if !floatEquals(c.expected, c.actual) {
			divergences = append(divergences, FieldDivergence{
				Field:    c.field,
				Expected: c.expected,
				Actual:   c.actual,
			})
		}
	}

	return divergences
}

// floatEquals compares two floats with tolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
