package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/observability"
	"selfish-mining-lab/internal/storage"
)

// Generator produces reports from an analysis and stored runs.
type Generator struct {
	runStore storage.RunStore // optional
	now      func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. runStore may be nil.
func NewGenerator(runStore storage.RunStore) *Generator {
	return &Generator{
		runStore: runStore,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report from a completed analysis.
func (g *Generator) Generate(ctx context.Context, a *domain.Analysis) (*Report, error) {
	if a == nil {
		return nil, fmt.Errorf("nil analysis: %w", domain.ErrInvalidParameter)
	}

	r := &Report{
		GeneratedAt: g.now(),
		Params: ParamsSection{
			Alpha:        a.Alpha,
			GammaAttack:  a.GammaAttack,
			GammaDefense: a.GammaDefense,
			Rounds:       a.Rounds,
			Seed:         a.Seed,
			BlockReward:  domain.BTC(a.Baseline.BlockReward),
			AvgTxFee:     domain.BTC(a.Baseline.AvgTxFeePerBlock),
		},
		CoreRuns: []RunRow{
			runRow("honest", a.Baseline),
			runRow("selfish (no defense)", a.DefensePair.Undefended),
			runRow("selfish (with defense)", a.DefensePair.Defended),
		},
		Combined: a.Combined,
		Errors:   append([]string(nil), a.Errors...),
	}

	if a.Sweep != nil {
		r.SweepID = a.Sweep.SweepID
		r.OptimalAlpha = a.Sweep.OptimalAlpha
		r.MaxEfficiency = a.Sweep.MaxEfficiency
		r.ProfitabilityThreshold = a.Sweep.ProfitabilityThreshold
		r.Sweep = SweepRows(a.Sweep)
	}

	if a.Defense != nil {
		r.DefenseBaselineEfficiency = a.Defense.BaselineEfficiency
		r.Defenses = DefenseRows(a.Defense)
		if best, ok := a.Defense.Best(); ok {
			r.BestDefense = best.Strategy.Key
		}
	}

	g.overlayRows(r, a)

	if g.runStore != nil {
		counts, err := g.kindCounts(ctx)
		if err != nil {
			return nil, err
		}
		r.StoredRuns = counts
	}

	observability.RecordReportGenerated()
	return r, nil
}

func (g *Generator) overlayRows(r *Report, a *domain.Analysis) {
	for _, x := range a.ASIC {
		r.ASIC = append(r.ASIC, ASICRow{
			Multiplier:           x.ASICMultiplier,
			AlphaEffective:       x.AlphaEffective,
			Efficiency:           x.EfficiencyAdvantage,
			ComputationAdvantage: x.ComputationAdvantage,
			PowerCostRatio:       x.PowerCostRatio,
			ThreatLevel:          x.ThreatLevel,
		})
	}
	for _, x := range a.MEV {
		r.MEV = append(r.MEV, MEVRow{
			Probability:        x.MEVExtractProbability,
			BaseRevenue:        domain.BTC(x.BaseRevenue),
			MEVRevenue:         domain.BTC(x.MEVRevenue),
			EnhancedRevenue:    domain.BTC(x.EnhancedRevenue),
			HonestRevenue:      domain.BTC(x.HonestRevenue),
			AdvantageVsHonest:  x.RevenueAdvantageVsHonest,
			RevenuePerHashrate: x.RevenuePerHashrate,
		})
		r.Diagnostics = appendDiagnostics(r.Diagnostics, fmt.Sprintf("mev p=%g", x.MEVExtractProbability), x.Diagnostics)
	}
	for _, x := range a.Latency {
		r.Latency = append(r.Latency, LatencyRow{
			DelayMs:             x.NetworkDelayMs,
			DelayRatio:          x.DelayRatio,
			GammaEffective:      x.GammaEffective,
			AttackerEfficiency:  x.AttackerEfficiency,
			TimeAdvantageFactor: x.TimeAdvantageFactor,
			AdvantageOverHonest: x.AdvantageOverHonest,
			RevenueAdvantage:    domain.BTC(x.RevenueAdvantage),
			ThreatLevel:         x.ThreatLevel,
		})
		r.Diagnostics = appendDiagnostics(r.Diagnostics, fmt.Sprintf("latency %gms", x.NetworkDelayMs), x.Diagnostics)
	}
	for _, x := range a.CrossChain {
		r.CrossChain = append(r.CrossChain, CrossChainRow{
			NumChains:        x.NumChains,
			TotalAfterCost:   domain.BTC(x.TotalAfterCost),
			MultiplierEffect: x.MultiplierEffect,
			OverheadPct:      x.CoordinationOverheadPct(),
		})
		r.Diagnostics = appendDiagnostics(r.Diagnostics, fmt.Sprintf("crosschain %d chains", x.NumChains), x.Diagnostics)
	}
	for _, x := range a.Pools {
		r.Pools = append(r.Pools, PoolRow{
			NumPools:         x.NumPools,
			AlphaEffective:   x.AlphaEffective,
			CoordinationLoss: x.CoordinationLoss,
			Efficiency:       x.EfficiencyAdvantage,
		})
	}
}

// kindCounts counts stored runs per kind, sorted by kind.
func (g *Generator) kindCounts(ctx context.Context) ([]KindCount, error) {
	runs, err := g.runStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}

	byKind := make(map[domain.RunKind]int)
	for _, run := range runs {
		byKind[run.Kind]++
	}

	counts := make([]KindCount, 0, len(byKind))
	for k, n := range byKind {
		counts = append(counts, KindCount{Kind: k, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		return counts[i].Kind < counts[j].Kind
	})
	return counts, nil
}

func runRow(label string, res domain.SimulationResult) RunRow {
	// Efficiency is undefined only for alpha 0, which never reaches a report.
	eff, _ := res.EfficiencyAdvantage()
	return RunRow{
		Label:           label,
		Alpha:           res.Alpha,
		Gamma:           res.Gamma,
		AttackerBlocks:  res.AttackerBlocks,
		HonestBlocks:    res.HonestBlocks,
		StaleBlocks:     res.StaleBlocks,
		RelativeReward:  res.AttackerRelativeReward(),
		Efficiency:      eff,
		AttackerRevenue: domain.RevenueBTC(res.AttackerBlocks, res.BlockReward, res.AvgTxFeePerBlock),
	}
}

// SweepRows flattens a sweep into report rows, marking the optimal point.
func SweepRows(s *domain.SweepResult) []SweepRow {
	rows := make([]SweepRow, len(s.Points))
	for i, p := range s.Points {
		rows[i] = SweepRow{
			Alpha:                 p.Alpha,
			EfficiencyNoDefense:   p.EfficiencyNoDefense,
			EfficiencyWithDefense: p.EfficiencyWithDefense,
			AnalyticEfficiency:    p.AnalyticEfficiency,
			DefenseReduction:      p.EfficiencyNoDefense - p.EfficiencyWithDefense,
			RevenueAdvantage:      domain.BTC(p.RevenueAdvantage),
			Optimal:               p.Alpha == s.OptimalAlpha,
		}
	}
	return rows
}

// DefenseRows flattens a defense comparison into report rows.
func DefenseRows(c *domain.DefenseComparison) []DefenseRow {
	rows := make([]DefenseRow, len(c.Outcomes))
	for i, o := range c.Outcomes {
		rows[i] = DefenseRow{
			Key:            o.Strategy.Key,
			Name:           o.Strategy.Name,
			GammaDefense:   o.Strategy.GammaDefense,
			Efficiency:     o.Efficiency,
			ImprovementPct: o.ImprovementPct,
			Rationale:      o.Strategy.Rationale,
		}
	}
	return rows
}

func appendDiagnostics(out []string, source string, diags []domain.Diagnostic) []string {
	for _, d := range diags {
		out = append(out, fmt.Sprintf("%s: %s %s=%.6f (%s)", source, d.Code, d.Field, d.Value, d.Message))
	}
	return out
}
