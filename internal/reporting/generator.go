package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/metrics"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// DefaultMatchupCycles is how many trailing cycles of matchups the
// report includes.
const DefaultMatchupCycles = 10

// Generator produces reports from stored discovery data.
type Generator struct {
	aggregator *metrics.Aggregator
	patterns   storage.PatternStore
	matchups   storage.MatchupStore

	leaderboardSize int
	matchupCycles   int64
	now             func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator over the discovery stores.
func NewGenerator(
	trials storage.TrialStore,
	patterns storage.PatternStore,
	matchups storage.MatchupStore,
	state storage.CycleStateStore,
) *Generator {
	return &Generator{
		aggregator:      metrics.NewAggregator(trials, patterns, matchups, state),
		patterns:        patterns,
		matchups:        matchups,
		leaderboardSize: metrics.DefaultLeaderboardSize,
		matchupCycles:   DefaultMatchupCycles,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithLeaderboardSize overrides the number of leaderboard rows.
func (g *Generator) WithLeaderboardSize(size int) *Generator {
	if size > 0 {
		g.leaderboardSize = size
	}
	return g
}

// WithMatchupCycles overrides the trailing matchup window.
func (g *Generator) WithMatchupCycles(cycles int64) *Generator {
	if cycles > 0 {
		g.matchupCycles = cycles
	}
	return g
}

// Generate produces a complete report of the current system state.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	// Headline counters
	status, err := g.aggregator.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate status: %w", err)
	}

	// Ranked leaderboard
	entries, err := g.aggregator.Leaderboard(ctx, g.leaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("build leaderboard: %w", err)
	}

	// One pattern listing feeds both the origin comparison and the registry
	patterns, err := g.patterns.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}

	matchupRows, err := g.generateMatchups(ctx, status.Cycle)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt: g.now(),
		Summary: Summary{
			Cycle:               status.Cycle,
			LastMinedCycle:      status.LastMinedCycle,
			LastTournamentCycle: status.LastTournamentCycle,
			TotalTrials:         status.TotalTrials,
			TotalPatterns:       status.TotalPatterns,
			WinningPatterns:     status.WinningPatterns,
			TotalMatchups:       status.TotalMatchups,
		},
		Leaderboard: generateLeaderboard(entries),
		Origins:     generateOrigins(patterns),
		Registry:    generateRegistry(patterns),
		Matchups:    matchupRows,
	}, nil
}

// generateLeaderboard copies ranked entries into report rows.
func generateLeaderboard(entries []*metrics.LeaderboardEntry) []LeaderboardRow {
	rows := make([]LeaderboardRow, len(entries))
	for i, e := range entries {
		rows[i] = LeaderboardRow{
			Rank:        e.Rank,
			PatternID:   e.PatternID,
			Name:        e.Name,
			WinRate:     e.WinRate,
			SampleSize:  e.SampleSize,
			Runs:        e.Runs,
			H2HWins:     e.H2HWins,
			H2HLosses:   e.H2HLosses,
			H2HWinRatio: e.H2HWinRatio,
			MeanROI:     e.MeanROI,
			NetVotes:    e.NetVotes,
		}
	}
	return rows
}

// generateOrigins groups pattern records by promotion origin.
func generateOrigins(patterns []*domain.Pattern) []OriginRow {
	type tally struct {
		count     int
		winRate   float64
		h2hWins   int
		h2hLosses int
	}
	groups := make(map[string]*tally)

	for _, p := range patterns {
		t := groups[string(p.Origin)]
		if t == nil {
			t = &tally{}
			groups[string(p.Origin)] = t
		}
		t.count++
		t.winRate += p.WinRate
		t.h2hWins += p.H2HWins
		t.h2hLosses += p.H2HLosses
	}

	rows := make([]OriginRow, 0, len(groups))
	for origin, t := range groups {
		rows = append(rows, OriginRow{
			Origin:      origin,
			Patterns:    t.count,
			MeanWinRate: t.winRate / float64(t.count),
			H2HWins:     t.h2hWins,
			H2HLosses:   t.h2hLosses,
		})
	}

	// Sort by origin
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Origin < rows[j].Origin
	})

	return rows
}

// generateRegistry builds the full pattern registry sorted by pattern_id.
func generateRegistry(patterns []*domain.Pattern) []PatternRow {
	rows := make([]PatternRow, len(patterns))
	for i, p := range patterns {
		tfs := p.TestedTimeframes()
		names := make([]string, len(tfs))
		for j, tf := range tfs {
			names[j] = string(tf)
		}

		rows[i] = PatternRow{
			PatternID:      p.PatternID,
			Name:           p.Name,
			Origin:         string(p.Origin),
			WinRate:        p.WinRate,
			SampleSize:     p.SampleSize,
			Confidence:     p.Confidence,
			Upvotes:        p.Upvotes,
			Downvotes:      p.Downvotes,
			Runs:           p.Runs,
			H2HWins:        p.H2HWins,
			H2HLosses:      p.H2HLosses,
			Timeframes:     strings.Join(names, " "),
			LastMinedCycle: p.LastMinedCycle,
			CreatedAt:      p.CreatedAt,
		}
	}

	// Sort by pattern_id
	sortRegistry(rows)
	return rows
}

// generateMatchups collects the matchups of the trailing report window,
// oldest cycle first. Within a cycle the store returns rows in decision
// order.
func (g *Generator) generateMatchups(ctx context.Context, cycle int64) ([]MatchupRow, error) {
	from := cycle - g.matchupCycles + 1
	if from < 1 {
		from = 1
	}

	var rows []MatchupRow
	for c := from; c <= cycle; c++ {
		ms, err := g.matchups.GetByCycle(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("load matchups for cycle %d: %w", c, err)
		}
		for _, m := range ms {
			rows = append(rows, MatchupRow{
				MatchupID: m.MatchupID,
				Cycle:     m.Cycle,
				Timeframe: string(m.Timeframe),
				PatternA:  m.PatternA,
				PatternB:  m.PatternB,
				ROIA:      m.ROIA,
				ROIB:      m.ROIB,
				Bonus:     m.Bonus,
				Winner:    m.Winner,
			})
		}
	}

	return rows, nil
}

// sortRegistry sorts rows by pattern_id.
func sortRegistry(rows []PatternRow) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].PatternID < rows[j].PatternID
	})
}
