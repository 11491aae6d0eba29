// Package metrics computes read-only aggregates over the discovery
// stores: the system status snapshot and the pattern leaderboard.
package metrics

import (
	"context"
	"fmt"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// DefaultLeaderboardSize bounds the leaderboard when no size is given.
const DefaultLeaderboardSize = 10

// Status is the aggregate state of the discovery system.
type Status struct {
	Cycle               int64
	LastMinedCycle      int64
	LastTournamentCycle int64

	TotalTrials   int64
	TotalPatterns int64

	// WinningPatterns counts patterns with more head-to-head wins than
	// losses. Never-run patterns do not count.
	WinningPatterns int64

	TotalMatchups int64
}

// LeaderboardEntry is one ranked row of the pattern leaderboard.
type LeaderboardEntry struct {
	Rank      int
	PatternID string
	Name      string

	WinRate    float64
	SampleSize int

	Runs        int
	H2HWins     int
	H2HLosses   int
	H2HWinRatio float64

	// MeanROI averages the most recent bonus-free return per tested
	// timeframe.
	MeanROI float64

	NetVotes int
}

// Aggregator computes status and leaderboard snapshots. All reads, no
// writes.
type Aggregator struct {
	trials   storage.TrialStore
	patterns storage.PatternStore
	matchups storage.MatchupStore
	state    storage.CycleStateStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(trials storage.TrialStore, patterns storage.PatternStore, matchups storage.MatchupStore, state storage.CycleStateStore) *Aggregator {
	return &Aggregator{
		trials:   trials,
		patterns: patterns,
		matchups: matchups,
		state:    state,
	}
}

// Status aggregates store totals and the durable cycle counters.
func (a *Aggregator) Status(ctx context.Context) (*Status, error) {
	st, err := a.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cycle state: %w", err)
	}
	trialCount, err := a.trials.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count trials: %w", err)
	}
	matchupCount, err := a.matchups.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count matchups: %w", err)
	}
	patterns, err := a.patterns.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}

	var winning int64
	for _, p := range patterns {
		if p.H2HWins > p.H2HLosses {
			winning++
		}
	}

	return &Status{
		Cycle:               st.Cycle,
		LastMinedCycle:      st.LastMinedCycle,
		LastTournamentCycle: st.LastTournamentCycle,
		TotalTrials:         trialCount,
		TotalPatterns:       int64(len(patterns)),
		WinningPatterns:     winning,
		TotalMatchups:       matchupCount,
	}, nil
}

// Leaderboard returns the top patterns ranked by head-to-head win
// ratio, then mean recorded ROI, then pattern id. A size of zero or
// less selects DefaultLeaderboardSize.
func (a *Aggregator) Leaderboard(ctx context.Context, size int) ([]*LeaderboardEntry, error) {
	if size <= 0 {
		size = DefaultLeaderboardSize
	}
	patterns, err := a.patterns.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	return rankPatterns(patterns, size), nil
}
