package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Selfish Mining Attack & Defense Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Parameters
	p := r.Params
	sb.WriteString("## Parameters\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Alpha | %.4f |\n", p.Alpha))
	sb.WriteString(fmt.Sprintf("| Gamma (attack) | %.4f |\n", p.GammaAttack))
	sb.WriteString(fmt.Sprintf("| Gamma (defense) | %.4f |\n", p.GammaDefense))
	sb.WriteString(fmt.Sprintf("| Rounds | %d |\n", p.Rounds))
	sb.WriteString(fmt.Sprintf("| Seed | %d |\n", p.Seed))
	sb.WriteString(fmt.Sprintf("| Block Reward (BTC) | %s |\n", p.BlockReward.StringFixed(8)))
	sb.WriteString(fmt.Sprintf("| Avg Tx Fee (BTC) | %s |\n", p.AvgTxFee.StringFixed(8)))
	sb.WriteString("\n")

	// Core runs
	sb.WriteString("## Honest vs Selfish Mining\n\n")
	sb.WriteString("| Run | Alpha | Gamma | Attacker | Honest | Stale | Relative Reward | Efficiency | Revenue (BTC) |\n")
	sb.WriteString("|-----|-------|-------|----------|--------|-------|-----------------|------------|---------------|\n")
	for _, c := range r.CoreRuns {
		sb.WriteString(fmt.Sprintf("| %s | %.4f | %.2f | %d | %d | %d | %.4f | %.4fx | %s |\n",
			c.Label, c.Alpha, c.Gamma, c.AttackerBlocks, c.HonestBlocks, c.StaleBlocks,
			c.RelativeReward, c.Efficiency, c.AttackerRevenue.StringFixed(8)))
	}
	sb.WriteString("\n")

	// Sweep
	sb.WriteString("## Alpha Sweep\n\n")
	if len(r.Sweep) > 0 {
		sb.WriteString(fmt.Sprintf("Sweep ID: `%s`\n\n", r.SweepID))
		sb.WriteString("| Alpha | No Defense | With Defense | Analytic | Reduction | Revenue Advantage (BTC) |\n")
		sb.WriteString("|-------|------------|--------------|----------|-----------|-------------------------|\n")
		for _, s := range r.Sweep {
			marker := ""
			if s.Optimal {
				marker = " **"
			}
			sb.WriteString(fmt.Sprintf("| %.4f%s | %.4fx | %.4fx | %.4fx | %.4f | %s |\n",
				s.Alpha, marker, s.EfficiencyNoDefense, s.EfficiencyWithDefense,
				s.AnalyticEfficiency, s.DefenseReduction, s.RevenueAdvantage.StringFixed(8)))
		}
		sb.WriteString(fmt.Sprintf("\nOptimal alpha: %.4f (efficiency %.4fx). Profitability threshold at attack gamma: %.4f\n",
			r.OptimalAlpha, r.MaxEfficiency, r.ProfitabilityThreshold))
	} else {
		sb.WriteString("No sweep available.\n")
	}
	sb.WriteString("\n")

	// Defense comparison
	sb.WriteString("## Defense Comparison\n\n")
	if len(r.Defenses) > 0 {
		sb.WriteString(fmt.Sprintf("Undefended efficiency: %.4fx\n\n", r.DefenseBaselineEfficiency))
		sb.WriteString("| Strategy | Gamma | Efficiency | Improvement % | Rationale |\n")
		sb.WriteString("|----------|-------|------------|---------------|-----------|\n")
		for _, d := range r.Defenses {
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %.4fx | %.2f | %s |\n",
				d.Name, d.GammaDefense, d.Efficiency, d.ImprovementPct, d.Rationale))
		}
		if r.BestDefense != "" {
			sb.WriteString(fmt.Sprintf("\nMost effective: `%s`\n", r.BestDefense))
		}
	} else {
		sb.WriteString("No defense comparison available.\n")
	}
	sb.WriteString("\n")

	// Overlays
	sb.WriteString("## ASIC Advantage\n\n")
	if len(r.ASIC) > 0 {
		sb.WriteString("| Multiplier | Effective Alpha | Efficiency | Computation Advantage | Power Cost Ratio | Threat |\n")
		sb.WriteString("|------------|-----------------|------------|-----------------------|------------------|--------|\n")
		for _, a := range r.ASIC {
			sb.WriteString(fmt.Sprintf("| %.1fx | %.4f | %.4fx | %.4fx | %.4f | %s |\n",
				a.Multiplier, a.AlphaEffective, a.Efficiency, a.ComputationAdvantage, a.PowerCostRatio, a.ThreatLevel))
		}
	} else {
		sb.WriteString("No ASIC results.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## MEV Extraction\n\n")
	if len(r.MEV) > 0 {
		sb.WriteString("| Probability | Base (BTC) | MEV (BTC) | Total (BTC) | Honest (BTC) | Advantage | Per Hashrate |\n")
		sb.WriteString("|-------------|------------|-----------|-------------|--------------|-----------|--------------|\n")
		for _, m := range r.MEV {
			sb.WriteString(fmt.Sprintf("| %.0f%% | %s | %s | %s | %s | %.4f | %.4f |\n",
				m.Probability*100, m.BaseRevenue.StringFixed(4), m.MEVRevenue.StringFixed(4),
				m.EnhancedRevenue.StringFixed(4), m.HonestRevenue.StringFixed(4),
				m.AdvantageVsHonest, m.RevenuePerHashrate))
		}
	} else {
		sb.WriteString("No MEV results.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Network Latency\n\n")
	if len(r.Latency) > 0 {
		sb.WriteString("| Delay (ms) | Delay Ratio | Effective Gamma | Efficiency | Time Advantage | vs Honest | Extra Revenue (BTC) | Threat |\n")
		sb.WriteString("|------------|-------------|-----------------|------------|----------------|-----------|---------------------|--------|\n")
		for _, l := range r.Latency {
			sb.WriteString(fmt.Sprintf("| %.0f | %.6f | %.4f | %.4fx | %.4fx | %.4fx | %s | %s |\n",
				l.DelayMs, l.DelayRatio, l.GammaEffective, l.AttackerEfficiency,
				l.TimeAdvantageFactor, l.AdvantageOverHonest, l.RevenueAdvantage.StringFixed(4), l.ThreatLevel))
		}
	} else {
		sb.WriteString("No latency results.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Cross-Chain Attack\n\n")
	if len(r.CrossChain) > 0 {
		sb.WriteString("| Chains | Total After Cost (BTC) | Multiplier | Overhead % |\n")
		sb.WriteString("|--------|------------------------|------------|------------|\n")
		for _, c := range r.CrossChain {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.4fx | %.2f |\n",
				c.NumChains, c.TotalAfterCost.StringFixed(4), c.MultiplierEffect, c.OverheadPct))
		}
	} else {
		sb.WriteString("No cross-chain results.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Pool Cooperation\n\n")
	if len(r.Pools) > 0 {
		sb.WriteString("| Pools | Effective Alpha | Coordination Loss | Efficiency |\n")
		sb.WriteString("|-------|-----------------|-------------------|------------|\n")
		for _, pl := range r.Pools {
			sb.WriteString(fmt.Sprintf("| %d | %.4f | %.4f | %.4fx |\n",
				pl.NumPools, pl.AlphaEffective, pl.CoordinationLoss, pl.Efficiency))
		}
	} else {
		sb.WriteString("No pool results.\n")
	}
	sb.WriteString("\n")

	if c := r.Combined; c != nil {
		sb.WriteString("## Combined Threat\n\n")
		sb.WriteString(fmt.Sprintf("ASIC %.1fx, %.0fms delay, MEV %.0f%%, %d chains.\n\n",
			c.ASICMultiplier, c.DelayMs, c.MEVProbability*100, c.NumChains))
		sb.WriteString(fmt.Sprintf("- Combined advantage: ~%.4fx (factors are not independent)\n", c.Value))
		sb.WriteString(fmt.Sprintf("- Excess over fair mining: ~%.2f%%\n\n", c.ExcessPct))
	}

	// Stored runs
	if len(r.StoredRuns) > 0 {
		sb.WriteString("## Stored Runs\n\n")
		sb.WriteString("| Kind | Count |\n")
		sb.WriteString("|------|-------|\n")
		for _, k := range r.StoredRuns {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", k.Kind, k.Count))
		}
		sb.WriteString("\n")
	}

	if len(r.Diagnostics) > 0 {
		sb.WriteString("## Diagnostics\n\n")
		for _, d := range r.Diagnostics {
			sb.WriteString(fmt.Sprintf("- %s\n", d))
		}
		sb.WriteString("\n")
	}

	if len(r.Errors) > 0 {
		sb.WriteString("## Errors\n\n")
		for _, e := range r.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
