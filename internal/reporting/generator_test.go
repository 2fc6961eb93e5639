package reporting

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/storage/memory"
)

func result(alpha, gamma float64, attacker, honest, stale int) domain.SimulationResult {
	return domain.SimulationResult{
		Alpha:            alpha,
		Gamma:            gamma,
		Rounds:           attacker + honest,
		Seed:             2025,
		AttackerBlocks:   attacker,
		HonestBlocks:     honest,
		StaleBlocks:      stale,
		BlockReward:      domain.DefaultBlockReward,
		AvgTxFeePerBlock: domain.DefaultAvgTxFeePerBlock,
	}
}

func setupAnalysis() *domain.Analysis {
	undefended := result(0.25, 0.9, 300, 700, 40)
	defended := result(0.25, 0.5, 270, 730, 45)

	return &domain.Analysis{
		Alpha:        0.25,
		GammaAttack:  0.9,
		GammaDefense: 0.5,
		Rounds:       1000,
		Seed:         2025,
		Baseline:     result(0.25, 0, 250, 750, 0),
		DefensePair: domain.DefensePair{
			Undefended:     undefended,
			Defended:       defended,
			DefenseEnabled: true,
		},
		Sweep: &domain.SweepResult{
			SweepID: "sweep-1",
			Points: []domain.SweepPoint{
				{Index: 0, Alpha: 0.2, EfficiencyNoDefense: 0.9, EfficiencyWithDefense: 0.8, AnalyticEfficiency: 0.92, RevenueAdvantage: -13.5},
				{Index: 1, Alpha: 0.3, EfficiencyNoDefense: 1.2, EfficiencyWithDefense: 1.05, AnalyticEfficiency: 1.21, RevenueAdvantage: 40.5},
			},
			OptimalAlpha:           0.3,
			MaxEfficiency:          1.2,
			ProfitabilityThreshold: 1.0 / 12.0,
		},
		Defense: &domain.DefenseComparison{
			Alpha:              0.25,
			GammaAttack:        0.9,
			Rounds:             1000,
			Seed:               2025,
			Baseline:           undefended,
			BaselineEfficiency: 1.2,
			Outcomes: []domain.DefenseOutcome{
				{Strategy: domain.DefenseStrategy{Key: "uniform_tie_breaking", Name: "Uniform Tie-Breaking", GammaDefense: 0.5}, Efficiency: 1.08, ImprovementPct: 10},
				{Strategy: domain.DefenseStrategy{Key: "fair_ordering", Name: "Fair Ordering", GammaDefense: 0.1}, Efficiency: 0.9, ImprovementPct: 25},
			},
		},
		ASIC: []*domain.ASICResult{
			{AlphaComputation: 0.25, ASICMultiplier: 3, AlphaEffective: 0.5, Attack: result(0.5, 0.9, 700, 300, 80),
				PowerCostRatio: 1.0 / 3.0, EfficiencyAdvantage: 1.4, ComputationAdvantage: 2.8, ThreatLevel: domain.ThreatHigh},
		},
		MEV: []*domain.MEVResult{
			{Alpha: 0.25, MEVExtractProbability: 0.1, AvgMEVPerBlock: 2.5, Attack: undefended,
				BaseRevenue: 2025, MEVRevenue: 75, EnhancedRevenue: 2100, HonestRevenue: 4725,
				RevenueAdvantageVsHonest: -0.5556, RevenuePerHashrate: 8400,
				Diagnostics: domain.CollectDiagnostics(domain.NegativeValue("revenue_advantage_vs_honest", -0.5556, "below honest"))},
		},
		Pools: []*domain.PoolResult{
			{AlphaNominal: 0.25, NumPools: 2, AlphaEffective: 0.2375, CoordinationLoss: 0.05, Attack: result(0.2375, 0.9, 260, 740, 30), EfficiencyAdvantage: 1.09},
		},
		Combined: &domain.CombinedAdvantage{
			ASICMultiplier: 5, DelayMs: 50, MEVProbability: 0.3, NumChains: 3,
			ASICEfficiency: 1.5, TimeAdvantageFactor: 0.99, MEVUplift: 1.1, ChainFactor: 0.97,
			Value: 1.5844, ExcessPct: 58.44,
		},
		Errors: []string{"pool 20: invalid parameter"},
	}
}

func TestGenerate_NilAnalysis(t *testing.T) {
	_, err := NewGenerator(nil).Generate(context.Background(), nil)
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestGenerate_WithClock(t *testing.T) {
	fixed := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator(nil).WithClock(func() time.Time { return fixed })

	r, err := gen.Generate(context.Background(), setupAnalysis())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !r.GeneratedAt.Equal(fixed) {
		t.Errorf("GeneratedAt = %v, want %v", r.GeneratedAt, fixed)
	}
}

func TestGenerate_Rows(t *testing.T) {
	r, err := NewGenerator(nil).Generate(context.Background(), setupAnalysis())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(r.CoreRuns) != 3 {
		t.Fatalf("expected 3 core runs, got %d", len(r.CoreRuns))
	}
	if r.CoreRuns[0].Label != "honest" {
		t.Errorf("first core run = %q, want honest", r.CoreRuns[0].Label)
	}
	// 300 blocks at 6.75 BTC
	if got := r.CoreRuns[1].AttackerRevenue.StringFixed(2); got != "2025.00" {
		t.Errorf("selfish revenue = %s, want 2025.00", got)
	}
	if got := r.CoreRuns[1].Efficiency; got < 1.1999 || got > 1.2001 {
		t.Errorf("selfish efficiency = %v, want 1.2", got)
	}

	if len(r.Sweep) != 2 {
		t.Fatalf("expected 2 sweep rows, got %d", len(r.Sweep))
	}
	if r.Sweep[0].Optimal || !r.Sweep[1].Optimal {
		t.Errorf("optimal flag on wrong row: %+v", r.Sweep)
	}
	if got := r.Sweep[1].DefenseReduction; got < 0.1499 || got > 0.1501 {
		t.Errorf("defense reduction = %v, want 0.15", got)
	}

	if r.BestDefense != "fair_ordering" {
		t.Errorf("BestDefense = %q, want fair_ordering", r.BestDefense)
	}
	if len(r.Defenses) != 2 || r.Defenses[0].Key != "uniform_tie_breaking" {
		t.Errorf("defense rows must keep configured order: %+v", r.Defenses)
	}

	if len(r.ASIC) != 1 || r.ASIC[0].ThreatLevel != domain.ThreatHigh {
		t.Errorf("unexpected ASIC rows: %+v", r.ASIC)
	}
	if len(r.MEV) != 1 || r.MEV[0].EnhancedRevenue.StringFixed(0) != "2100" {
		t.Errorf("unexpected MEV rows: %+v", r.MEV)
	}
	if len(r.Diagnostics) != 1 || !strings.Contains(r.Diagnostics[0], domain.DiagnosticNegativeDerivedValue) {
		t.Errorf("expected one negative value diagnostic, got %v", r.Diagnostics)
	}
	if len(r.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", r.Errors)
	}
	if r.StoredRuns != nil {
		t.Errorf("StoredRuns should be nil without a run store")
	}
}

func TestGenerate_StoredRunsByKind(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRunStore()

	runs := []*domain.RunRecord{
		{RunID: "r1", Kind: domain.RunKindSelfish, CreatedAt: 1},
		{RunID: "r2", Kind: domain.RunKindBaseline, CreatedAt: 2},
		{RunID: "r3", Kind: domain.RunKindSelfish, CreatedAt: 3},
		{RunID: "r4", Kind: domain.RunKindASIC, CreatedAt: 4},
	}
	for _, run := range runs {
		if err := store.Insert(ctx, run); err != nil {
			t.Fatalf("Insert run failed: %v", err)
		}
	}

	r, err := NewGenerator(store).Generate(ctx, setupAnalysis())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := []KindCount{
		{Kind: domain.RunKindASIC, Count: 1},
		{Kind: domain.RunKindBaseline, Count: 1},
		{Kind: domain.RunKindSelfish, Count: 2},
	}
	if len(r.StoredRuns) != len(want) {
		t.Fatalf("StoredRuns = %+v, want %+v", r.StoredRuns, want)
	}
	for i := range want {
		if r.StoredRuns[i] != want[i] {
			t.Errorf("StoredRuns[%d] = %+v, want %+v", i, r.StoredRuns[i], want[i])
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	fixed := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator(nil).WithClock(func() time.Time { return fixed })

	r1, err := gen.Generate(context.Background(), setupAnalysis())
	if err != nil {
		t.Fatalf("Generate 1 failed: %v", err)
	}
	r2, err := gen.Generate(context.Background(), setupAnalysis())
	if err != nil {
		t.Fatalf("Generate 2 failed: %v", err)
	}

	if RenderMarkdown(r1) != RenderMarkdown(r2) {
		t.Error("markdown output is not deterministic")
	}
}

func TestRenderMarkdown_ContainsRequiredSections(t *testing.T) {
	r, err := NewGenerator(nil).Generate(context.Background(), setupAnalysis())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	md := RenderMarkdown(r)

	sections := []string{
		"# Selfish Mining Attack & Defense Report",
		"## Parameters",
		"## Honest vs Selfish Mining",
		"## Alpha Sweep",
		"## Defense Comparison",
		"## ASIC Advantage",
		"## MEV Extraction",
		"## Network Latency",
		"## Cross-Chain Attack",
		"## Pool Cooperation",
		"## Combined Threat",
		"## Diagnostics",
		"## Errors",
	}
	for _, s := range sections {
		if !strings.Contains(md, s) {
			t.Errorf("markdown missing section %q", s)
		}
	}

	if !strings.Contains(md, "No latency results.") {
		t.Error("empty latency section should say so")
	}
	if !strings.Contains(md, "Most effective: `fair_ordering`") {
		t.Error("markdown should name the most effective defense")
	}
	if strings.Contains(md, "## Stored Runs") {
		t.Error("stored runs section should be omitted without a run store")
	}
}

func TestRenderSweepCSV(t *testing.T) {
	r, err := NewGenerator(nil).Generate(context.Background(), setupAnalysis())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(RenderSweepCSV(r.Sweep)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "alpha,efficiency_no_defense") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0.200000,") || !strings.HasSuffix(lines[1], ",false") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",40.50000000,true") {
		t.Errorf("unexpected second row: %s", lines[2])
	}
}

func TestRenderDefenseCSV(t *testing.T) {
	r, err := NewGenerator(nil).Generate(context.Background(), setupAnalysis())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	csv := RenderDefenseCSV(r.Defenses)
	want := "strategy_key,gamma_defense,efficiency,improvement_pct\n" +
		"uniform_tie_breaking,0.5000,1.080000,10.0000\n" +
		"fair_ordering,0.1000,0.900000,25.0000\n"
	if csv != want {
		t.Errorf("RenderDefenseCSV =\n%s\nwant\n%s", csv, want)
	}
}

func TestWriteFiles(t *testing.T) {
	r, err := NewGenerator(nil).Generate(context.Background(), setupAnalysis())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteFiles(dir, r)
	if err != nil {
		t.Fatalf("WriteFiles failed: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 files, got %v", paths)
	}

	md, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(md) != RenderMarkdown(r) {
		t.Error("report file differs from rendered markdown")
	}
}
