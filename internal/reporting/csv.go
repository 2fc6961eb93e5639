package reporting

import (
	"fmt"
	"strings"
)

// RenderSweepCSV renders sweep rows as CSV string.
func RenderSweepCSV(rows []SweepRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("alpha,efficiency_no_defense,efficiency_with_defense,analytic_efficiency,")
	sb.WriteString("defense_reduction,revenue_advantage_btc,optimal\n")

	// Rows
	for _, s := range rows {
		sb.WriteString(fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%.6f,%s,%t\n",
			s.Alpha,
			s.EfficiencyNoDefense,
			s.EfficiencyWithDefense,
			s.AnalyticEfficiency,
			s.DefenseReduction,
			s.RevenueAdvantage.StringFixed(8),
			s.Optimal,
		))
	}

	return sb.String()
}

// RenderDefenseCSV renders defense rows as CSV string. Rationales are
// omitted since they contain commas.
func RenderDefenseCSV(rows []DefenseRow) string {
	var sb strings.Builder

	sb.WriteString("strategy_key,gamma_defense,efficiency,improvement_pct\n")

	for _, d := range rows {
		sb.WriteString(fmt.Sprintf("%s,%.4f,%.6f,%.4f\n",
			d.Key,
			d.GammaDefense,
			d.Efficiency,
			d.ImprovementPct,
		))
	}

	return sb.String()
}
