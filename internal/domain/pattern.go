package domain

import "sort"

// Pattern represents a promoted trading pattern and its accumulated record.
// Corresponds to patterns table in PostgreSQL.
type Pattern struct {
	PatternID string // PRIMARY KEY, base58-encoded signature prefix
	Name      string // human-readable, derived from condition tiers
	Signature string // UNIQUE, hex SHA-256 of the canonical condition
	Condition Condition

	// Mining statistics
	WinRate    float64 // observed profitable share in [0,1]
	SampleSize int     // trials behind WinRate
	Confidence float64 // 1 - binomial p-value at last mining update
	Rationale  string  // why the pattern was promoted

	// Committee votes
	Upvotes   int
	Downvotes int

	Origin Origin // CHAOS_MINER | BACKTEST | COMMITTEE | MANUAL

	// Tournament record
	Runs             int                   // tournament participations
	LastTested       *int64                // ms, nil until first tournament
	H2HWins          int                   // head-to-head wins
	H2HLosses        int                   // head-to-head losses
	TimeframeReturns map[Timeframe]float64 // most recent bonus-free ROI per timeframe

	LastMinedCycle int64 // highest mining cycle folded into the statistics
	CreatedAt      int64 // record creation timestamp (ms)
	UpdatedAt      int64 // last mutation timestamp (ms)
}

// NetVotes returns upvotes minus downvotes, clamped at zero so sampling
// weights stay positive.
func (p Pattern) NetVotes() int {
	n := p.Upvotes - p.Downvotes
	if n < 0 {
		return 0
	}
	return n
}

// TestedTimeframes returns the timeframes the pattern has competed on,
// sorted for stable output.
func (p Pattern) TestedTimeframes() []Timeframe {
	tfs := make([]Timeframe, 0, len(p.TimeframeReturns))
	for tf := range p.TimeframeReturns {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[i].Duration() < tfs[j].Duration() })
	return tfs
}

// VoteDirection represents a committee vote on a pattern.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// IsValid checks if the vote direction is a valid value.
func (v VoteDirection) IsValid() bool {
	return v == VoteUp || v == VoteDown
}
