package metrics

import (
	"fmt"
	"math"
	"sort"

	"selfish-mining-lab/internal/domain"
)

// Comparison holds attacker/honest comparison ratios for one run.
type Comparison struct {
	AttackerRelativeReward float64 `json:"attacker_relative_reward"`
	HonestRelativeReward   float64 `json:"honest_relative_reward"`
	EfficiencyAdvantage    float64 `json:"efficiency_advantage"`
	// RevenueRatio is attacker revenue / honest revenue.
	RevenueRatio float64 `json:"revenue_ratio"`
	// FairShareDelta is attacker revenue minus its hashpower-fair revenue.
	FairShareDelta float64 `json:"fair_share_delta_btc"`
}

// EfficiencyAdvantage is attacker_relative_reward / alpha.
// Returns ErrDivisionByZero when alpha is 0.
func EfficiencyAdvantage(r domain.SimulationResult) (float64, error) {
	return r.EfficiencyAdvantage()
}

// Compare derives all comparison ratios from r.
// Returns ErrDivisionByZero when alpha is 0 or honest revenue is 0.
func Compare(r domain.SimulationResult) (Comparison, error) {
	eff, err := r.EfficiencyAdvantage()
	if err != nil {
		return Comparison{}, err
	}
	ratio, err := Ratio(r.AttackerRevenue(), r.HonestRevenue())
	if err != nil {
		return Comparison{}, fmt.Errorf("revenue ratio: %w", err)
	}

	return Comparison{
		AttackerRelativeReward: r.AttackerRelativeReward(),
		HonestRelativeReward:   r.HonestRelativeReward(),
		EfficiencyAdvantage:    eff,
		RevenueRatio:           ratio,
		FairShareDelta:         r.AttackerRevenue() - r.FairShareRevenue(),
	}, nil
}

// Ratio returns num / den. Returns ErrDivisionByZero when den is 0.
func Ratio(num, den float64) (float64, error) {
	if den == 0 {
		return 0, fmt.Errorf("ratio %v/0: %w", num, domain.ErrDivisionByZero)
	}
	return num / den, nil
}

// RatioOr returns num / den, or fallback when den is 0. ok is false when
// the fallback was used.
func RatioOr(num, den, fallback float64) (r float64, ok bool) {
	if den == 0 {
		return fallback, false
	}
	return num / den, true
}

// RelativeAdvantage is (value - reference) / reference.
// Negative when value falls short of reference.
func RelativeAdvantage(value, reference float64) (float64, error) {
	if reference == 0 {
		return 0, fmt.Errorf("relative advantage over 0: %w", domain.ErrDivisionByZero)
	}
	return (value - reference) / reference, nil
}

// ImprovementPct is (1 - defended/undefended) * 100.
func ImprovementPct(defended, undefended float64) (float64, error) {
	r, err := Ratio(defended, undefended)
	if err != nil {
		return 0, fmt.Errorf("improvement: %w", err)
	}
	return (1 - r) * 100, nil
}

// SummarizeEfficiencies aggregates efficiency over replicated runs of the
// same (alpha, gamma, rounds). Returns ErrInvalidParameter for an empty set.
func SummarizeEfficiencies(results []domain.SimulationResult) (*domain.ReplicaSummary, error) {
	n := len(results)
	if n == 0 {
		return nil, fmt.Errorf("no replicas to summarize: %w", domain.ErrInvalidParameter)
	}

	effs := make([]float64, n)
	for i, r := range results {
		eff, err := r.EfficiencyAdvantage()
		if err != nil {
			return nil, err
		}
		effs[i] = eff
	}

	sorted := make([]float64, n)
	copy(sorted, effs)
	sort.Float64s(sorted)

	mean := computeMean(effs)

	return &domain.ReplicaSummary{
		Alpha:    results[0].Alpha,
		Gamma:    results[0].Gamma,
		Rounds:   results[0].Rounds,
		Replicas: n,

		MeanEfficiency:   mean,
		StddevEfficiency: computeStddev(effs, mean),
		P10Efficiency:    computePercentile(sorted, 0.10),
		MedianEfficiency: computePercentile(sorted, 0.50),
		P90Efficiency:    computePercentile(sorted, 0.90),
		MinEfficiency:    sorted[0],
		MaxEfficiency:    sorted[n-1],

		Efficiencies: effs,
	}, nil
}

// ArgMax returns the index of the largest value; ties resolve to the lowest
// index. Returns -1 for an empty slice.
func ArgMax(values []float64) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}

// computeMean calculates arithmetic mean of values.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	// Linear interpolation
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
