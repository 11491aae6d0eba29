package metrics

import (
	"sort"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
)

// h2hWinRatio is wins over runs; a never-run pattern ranks at zero.
func h2hWinRatio(p *domain.Pattern) float64 {
	if p.Runs == 0 {
		return 0
	}
	return float64(p.H2HWins) / float64(p.Runs)
}

// meanRecordedROI averages the per-timeframe recorded returns. The
// registry keeps the most recent return per timeframe, so this is a
// mean over timeframes, not over historical runs.
func meanRecordedROI(p *domain.Pattern) float64 {
	if len(p.TimeframeReturns) == 0 {
		return 0
	}
	sum := 0.0
	for _, roi := range p.TimeframeReturns {
		sum += roi
	}
	return sum / float64(len(p.TimeframeReturns))
}

// rankPatterns orders patterns by win ratio DESC, mean ROI DESC,
// pattern id ASC and keeps the top size entries, numbering ranks
// from one.
func rankPatterns(patterns []*domain.Pattern, size int) []*LeaderboardEntry {
	entries := make([]*LeaderboardEntry, 0, len(patterns))
	for _, p := range patterns {
		entries = append(entries, &LeaderboardEntry{
			PatternID:   p.PatternID,
			Name:        p.Name,
			WinRate:     p.WinRate,
			SampleSize:  p.SampleSize,
			Runs:        p.Runs,
			H2HWins:     p.H2HWins,
			H2HLosses:   p.H2HLosses,
			H2HWinRatio: h2hWinRatio(p),
			MeanROI:     meanRecordedROI(p),
			NetVotes:    p.NetVotes(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].H2HWinRatio != entries[j].H2HWinRatio {
			return entries[i].H2HWinRatio > entries[j].H2HWinRatio
		}
		if entries[i].MeanROI != entries[j].MeanROI {
			return entries[i].MeanROI > entries[j].MeanROI
		}
		return entries[i].PatternID < entries[j].PatternID
	})

	if len(entries) > size {
		entries = entries[:size]
	}
	for i, e := range entries {
		e.Rank = i + 1
	}
	return entries
}
