package domain

// Matchup represents one decided head-to-head tournament between two patterns.
// Corresponds to matchups table in PostgreSQL. Rows are append-only.
type Matchup struct {
	MatchupID string    // PRIMARY KEY, deterministic hash
	Cycle     int64     // discovery cycle that ran the tournament
	PatternA  string    // first contender pattern id
	PatternB  string    // second contender pattern id
	Timeframe Timeframe // drawn timeframe both patterns competed on
	ROIA      float64   // bonus-free ROI of pattern A over the slice
	ROIB      float64   // bonus-free ROI of pattern B over the slice
	Bonus     float64   // timeframe bonus multiplier applied to both
	Winner    string    // pattern id of the winner
	SliceFrom int64     // history slice start, Unix ms
	SliceTo   int64     // history slice end, Unix ms
	CreatedAt int64     // record creation timestamp (ms)
}

// Loser returns the pattern id that lost the matchup.
func (m Matchup) Loser() string {
	if m.Winner == m.PatternA {
		return m.PatternB
	}
	return m.PatternA
}
