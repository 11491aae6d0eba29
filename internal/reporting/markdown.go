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
	sb.WriteString("# Discovery Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Cycle: %d | Patterns: %d | Trials: %d\n\n",
		r.Summary.Cycle, r.Summary.TotalPatterns, r.Summary.TotalTrials))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Cycle | %d |\n", r.Summary.Cycle))
	sb.WriteString(fmt.Sprintf("| Last Mined Cycle | %d |\n", r.Summary.LastMinedCycle))
	sb.WriteString(fmt.Sprintf("| Last Tournament Cycle | %d |\n", r.Summary.LastTournamentCycle))
	sb.WriteString(fmt.Sprintf("| Total Trials | %d |\n", r.Summary.TotalTrials))
	sb.WriteString(fmt.Sprintf("| Total Patterns | %d |\n", r.Summary.TotalPatterns))
	sb.WriteString(fmt.Sprintf("| Winning Patterns | %d |\n", r.Summary.WinningPatterns))
	sb.WriteString(fmt.Sprintf("| Total Matchups | %d |\n", r.Summary.TotalMatchups))
	sb.WriteString("\n")

	// Leaderboard
	sb.WriteString("## Leaderboard\n\n")
	if len(r.Leaderboard) > 0 {
		sb.WriteString("| Rank | Pattern | Name | WinRate | Samples | Runs | W | L | H2H | MeanROI | Votes |\n")
		sb.WriteString("|------|---------|------|---------|---------|------|---|---|-----|---------|-------|\n")
		for _, e := range r.Leaderboard {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.4f | %d | %d | %d | %d | %.4f | %.4f | %d |\n",
				e.Rank, e.PatternID, e.Name,
				e.WinRate, e.SampleSize, e.Runs,
				e.H2HWins, e.H2HLosses, e.H2HWinRatio, e.MeanROI, e.NetVotes))
		}
	} else {
		sb.WriteString("No patterns promoted yet.\n")
	}
	sb.WriteString("\n")

	// Origin comparison
	sb.WriteString("## Origin Comparison\n\n")
	if len(r.Origins) > 0 {
		sb.WriteString("| Origin | Patterns | Mean WinRate | H2H Wins | H2H Losses |\n")
		sb.WriteString("|--------|----------|--------------|----------|------------|\n")
		for _, o := range r.Origins {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %d | %d |\n",
				o.Origin, o.Patterns, o.MeanWinRate, o.H2HWins, o.H2HLosses))
		}
	} else {
		sb.WriteString("No origin data available.\n")
	}
	sb.WriteString("\n")

	// Pattern registry
	sb.WriteString("## Pattern Registry\n\n")
	if len(r.Registry) > 0 {
		sb.WriteString("| Pattern | Name | Origin | WinRate | Samples | Confidence | Up | Down | Runs | W | L | Timeframes |\n")
		sb.WriteString("|---------|------|--------|---------|---------|------------|----|------|------|---|---|-----------|\n")
		for _, p := range r.Registry {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.4f | %d | %.4f | %d | %d | %d | %d | %d | %s |\n",
				p.PatternID, p.Name, p.Origin,
				p.WinRate, p.SampleSize, p.Confidence,
				p.Upvotes, p.Downvotes, p.Runs, p.H2HWins, p.H2HLosses, p.Timeframes))
		}
	} else {
		sb.WriteString("No patterns in the registry.\n")
	}
	sb.WriteString("\n")

	// Recent matchups
	sb.WriteString("## Recent Matchups\n\n")
	if len(r.Matchups) > 0 {
		sb.WriteString("| Matchup | Cycle | Timeframe | A | B | ROI A | ROI B | Bonus | Winner |\n")
		sb.WriteString("|---------|-------|-----------|---|---|-------|-------|-------|--------|\n")
		for _, m := range r.Matchups {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %.4f | %.4f | %.2f | %s |\n",
				m.MatchupID, m.Cycle, m.Timeframe,
				m.PatternA, m.PatternB, m.ROIA, m.ROIB, m.Bonus, m.Winner))
		}
	} else {
		sb.WriteString("No matchups in the report window.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
