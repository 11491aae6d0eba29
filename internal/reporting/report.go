package reporting

import "time"

// Report is a point-in-time snapshot of the discovery system, rendered
// to Markdown and CSV for offline review.
type Report struct {
	// Metadata
	GeneratedAt time.Time

	// Headline counters
	Summary Summary

	// Top patterns (sorted by rank)
	Leaderboard []LeaderboardRow

	// Pattern performance grouped by promotion origin
	Origins []OriginRow

	// Full pattern registry (sorted by pattern_id)
	Registry []PatternRow

	// Matchups of the trailing report window (sorted by cycle, then
	// decision order within the cycle)
	Matchups []MatchupRow
}

// Summary contains the headline counters of the discovery run.
type Summary struct {
	Cycle               int64
	LastMinedCycle      int64
	LastTournamentCycle int64
	TotalTrials         int64
	TotalPatterns       int64
	WinningPatterns     int64
	TotalMatchups       int64
}

// LeaderboardRow represents one ranked row in the leaderboard table.
type LeaderboardRow struct {
	Rank        int
	PatternID   string
	Name        string
	WinRate     float64
	SampleSize  int
	Runs        int
	H2HWins     int
	H2HLosses   int
	H2HWinRatio float64
	MeanROI     float64
	NetVotes    int
}

// OriginRow compares pattern records across promotion origins.
type OriginRow struct {
	Origin      string
	Patterns    int
	MeanWinRate float64
	H2HWins     int
	H2HLosses   int
}

// PatternRow represents one row in the pattern registry table.
type PatternRow struct {
	PatternID      string
	Name           string
	Origin         string
	WinRate        float64 // mined win rate in [0,1]
	SampleSize     int
	Confidence     float64
	Upvotes        int
	Downvotes      int
	Runs           int
	H2HWins        int
	H2HLosses      int
	Timeframes     string // tested timeframes, space separated, shortest first
	LastMinedCycle int64
	CreatedAt      int64 // Unix ms
}

// MatchupRow represents one decided tournament in the matchup table.
type MatchupRow struct {
	MatchupID string
	Cycle     int64
	Timeframe string
	PatternA  string
	PatternB  string
	ROIA      float64 // bonus-free ROI of pattern A over the slice
	ROIB      float64
	Bonus     float64
	Winner    string
}
