package reporting

import (
	"fmt"
	"strings"
)

// RenderRegistryCSV renders the pattern registry as CSV string.
func RenderRegistryCSV(rows []PatternRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("pattern_id,name,origin,win_rate,sample_size,confidence,")
	sb.WriteString("upvotes,downvotes,runs,h2h_wins,h2h_losses,")
	sb.WriteString("timeframes,last_mined_cycle,created_at\n")

	// Rows
	for _, p := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.6f,%d,%.6f,%d,%d,%d,%d,%d,%s,%d,%d\n",
			p.PatternID,
			csvField(p.Name),
			p.Origin,
			p.WinRate,
			p.SampleSize,
			p.Confidence,
			p.Upvotes,
			p.Downvotes,
			p.Runs,
			p.H2HWins,
			p.H2HLosses,
			p.Timeframes,
			p.LastMinedCycle,
			p.CreatedAt,
		))
	}

	return sb.String()
}

// RenderMatchupsCSV renders the matchup window as CSV string.
func RenderMatchupsCSV(rows []MatchupRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("matchup_id,cycle,timeframe,pattern_a,pattern_b,")
	sb.WriteString("roi_a,roi_b,bonus,winner\n")

	// Rows
	for _, m := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%s,%s,%.6f,%.6f,%.6f,%s\n",
			m.MatchupID,
			m.Cycle,
			m.Timeframe,
			m.PatternA,
			m.PatternB,
			m.ROIA,
			m.ROIB,
			m.Bonus,
			m.Winner,
		))
	}

	return sb.String()
}

// csvField quotes a free-text field when it contains a comma. Pattern
// names are built from condition tiers and normally never need it.
func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
