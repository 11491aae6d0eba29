package metrics

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/idhash"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/memory"
)

func f64(v float64) *float64 { return &v }

// seedRegistryPattern registers a pattern with a pre-recorded
// head-to-head history. Conditions must differ per pattern so the
// signature-keyed upsert inserts rather than folds.
func seedRegistryPattern(t *testing.T, store *memory.PatternStore, id string, lo float64, wins, losses int) {
	t.Helper()
	cond := domain.Condition{Clauses: []domain.Clause{{
		Feature: domain.FeatureMomentumPct,
		Lo:      f64(lo),
	}}}
	p := &domain.Pattern{
		PatternID:  id,
		Name:       id,
		Signature:  cond.Canonical(),
		Condition:  cond,
		WinRate:    0.6,
		SampleSize: 25,
		Origin:     domain.OriginChaosMiner,
		Runs:       wins + losses,
		H2HWins:    wins,
		H2HLosses:  losses,
		CreatedAt:  1,
		UpdatedAt:  1,
	}
	if _, err := store.UpsertMined(context.Background(), p); err != nil {
		t.Fatalf("seed pattern %s: %v", id, err)
	}
}

func seedTrials(t *testing.T, store *memory.TrialStore, cycle int64, n int) {
	t.Helper()
	trials := make([]*domain.Trial, n)
	for seq := range trials {
		trials[seq] = &domain.Trial{
			TrialID: idhash.ComputeTrialID(cycle, seq, "BTC-USD"),
			Cycle:   cycle,
			Seq:     seq,
			Symbol:  "BTC-USD",
			Side:    domain.SideLong,
		}
	}
	if err := store.InsertBatch(context.Background(), trials); err != nil {
		t.Fatalf("seed trials: %v", err)
	}
}

func TestStatusAggregatesTotals(t *testing.T) {
	ctx := context.Background()
	trials := memory.NewTrialStore()
	patterns := memory.NewPatternStore()
	matchups := memory.NewMatchupStore(patterns)
	state := memory.NewCycleStateStore()

	seedTrials(t, trials, 1, 3)
	seedRegistryPattern(t, patterns, "pat-winning", 0, 2, 1)
	seedRegistryPattern(t, patterns, "pat-losing", 1, 1, 2)
	seedRegistryPattern(t, patterns, "pat-fresh", 2, 0, 0)

	if err := matchups.ApplyResult(ctx, &domain.Matchup{
		MatchupID: "m-1",
		Cycle:     6,
		PatternA:  "pat-winning",
		PatternB:  "pat-losing",
		Timeframe: domain.TimeframeH1,
		ROIA:      12,
		ROIB:      10,
		Bonus:     1.0,
		Winner:    "pat-winning",
		SliceFrom: 1,
		SliceTo:   2,
		CreatedAt: 100,
	}); err != nil {
		t.Fatalf("apply matchup: %v", err)
	}

	if err := state.CompareAndSwap(ctx, 0, &domain.CycleState{
		Cycle:               7,
		LastMinedCycle:      5,
		LastTournamentCycle: 6,
	}); err != nil {
		t.Fatalf("preset state: %v", err)
	}

	agg := NewAggregator(trials, patterns, matchups, state)
	status, err := agg.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}

	if status.Cycle != 7 || status.LastMinedCycle != 5 || status.LastTournamentCycle != 6 {
		t.Errorf("counters = %d/%d/%d, want 7/5/6",
			status.Cycle, status.LastMinedCycle, status.LastTournamentCycle)
	}
	if status.TotalTrials != 3 {
		t.Errorf("TotalTrials = %d, want 3", status.TotalTrials)
	}
	if status.TotalPatterns != 3 {
		t.Errorf("TotalPatterns = %d, want 3", status.TotalPatterns)
	}
	if status.WinningPatterns != 1 {
		t.Errorf("WinningPatterns = %d, want 1", status.WinningPatterns)
	}
	if status.TotalMatchups != 1 {
		t.Errorf("TotalMatchups = %d, want 1", status.TotalMatchups)
	}
}

func TestStatusEmptyStores(t *testing.T) {
	ctx := context.Background()
	patterns := memory.NewPatternStore()
	agg := NewAggregator(memory.NewTrialStore(), patterns,
		memory.NewMatchupStore(patterns), memory.NewCycleStateStore())

	status, err := agg.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.TotalTrials != 0 || status.TotalPatterns != 0 || status.TotalMatchups != 0 || status.Cycle != 0 {
		t.Errorf("fresh status = %+v, want all zeros", status)
	}
}

func TestLeaderboardRanksAndTrims(t *testing.T) {
	ctx := context.Background()
	trials := memory.NewTrialStore()
	patterns := memory.NewPatternStore()
	matchups := memory.NewMatchupStore(patterns)
	state := memory.NewCycleStateStore()

	seedRegistryPattern(t, patterns, "pat-strong", 0, 9, 1)
	seedRegistryPattern(t, patterns, "pat-mid", 1, 6, 4)
	seedRegistryPattern(t, patterns, "pat-weak", 2, 2, 8)

	agg := NewAggregator(trials, patterns, matchups, state)

	entries, err := agg.Leaderboard(ctx, 2)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].PatternID != "pat-strong" || entries[1].PatternID != "pat-mid" {
		t.Errorf("top = %s, %s, want pat-strong, pat-mid", entries[0].PatternID, entries[1].PatternID)
	}
	if math.Abs(entries[0].H2HWinRatio-0.9) > 1e-12 {
		t.Errorf("top ratio = %f, want 0.9", entries[0].H2HWinRatio)
	}
	if entries[0].Rank != 1 || entries[1].Rank != 2 {
		t.Errorf("ranks = %d, %d, want 1, 2", entries[0].Rank, entries[1].Rank)
	}
}

func TestLeaderboardDefaultSize(t *testing.T) {
	ctx := context.Background()
	trials := memory.NewTrialStore()
	patterns := memory.NewPatternStore()
	matchups := memory.NewMatchupStore(patterns)
	state := memory.NewCycleStateStore()

	for i := 0; i < DefaultLeaderboardSize+5; i++ {
		seedRegistryPattern(t, patterns, fmt.Sprintf("pat-%02d", i), float64(i), i, 1)
	}

	agg := NewAggregator(trials, patterns, matchups, state)
	entries, err := agg.Leaderboard(ctx, 0)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(entries) != DefaultLeaderboardSize {
		t.Errorf("entries = %d with size 0, want %d", len(entries), DefaultLeaderboardSize)
	}
}
