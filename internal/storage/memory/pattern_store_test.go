package memory

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

func f64(v float64) *float64 { return &v }

func testPattern(id, sig string) *domain.Pattern {
	return &domain.Pattern{
		PatternID: id,
		Name:      "up-momentum surge-volume",
		Signature: sig,
		Condition: domain.Condition{Clauses: []domain.Clause{
			{Feature: domain.FeatureMomentumPct, Lo: f64(0.5)},
		}},
		WinRate:        0.6,
		SampleSize:     25,
		Confidence:     0.96,
		Rationale:      "won 15 of 25 trials in its bucket",
		Origin:         domain.OriginChaosMiner,
		LastMinedCycle: 5,
		CreatedAt:      1000,
		UpdatedAt:      1000,
	}
}

func TestPatternStore_UpsertInsert(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	inserted, err := store.UpsertMined(ctx, testPattern("p1", "sig1"))
	if err != nil {
		t.Fatalf("UpsertMined failed: %v", err)
	}
	if !inserted {
		t.Error("expected insert of a new signature")
	}

	got, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.WinRate != 0.6 || got.SampleSize != 25 {
		t.Errorf("stored stats mismatch: win_rate=%f sample=%d", got.WinRate, got.SampleSize)
	}
}

func TestPatternStore_UpsertFoldsStatistics(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	first := testPattern("p1", "sig1")
	first.WinRate = 0.6
	first.SampleSize = 20
	first.LastMinedCycle = 5
	if _, err := store.UpsertMined(ctx, first); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second := testPattern("p1", "sig1")
	second.WinRate = 0.8
	second.SampleSize = 10
	second.LastMinedCycle = 10
	inserted, err := store.UpsertMined(ctx, second)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if inserted {
		t.Error("expected update of the existing signature, not an insert")
	}

	got, err := store.GetBySignature(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetBySignature failed: %v", err)
	}
	// (0.6*20 + 0.8*10) / 30
	want := 20.0 / 30.0
	if math.Abs(got.WinRate-want) > 1e-9 {
		t.Errorf("blended win rate: got %f, want %f", got.WinRate, want)
	}
	if got.SampleSize != 30 {
		t.Errorf("accumulated sample size: got %d, want 30", got.SampleSize)
	}
	if got.LastMinedCycle != 10 {
		t.Errorf("watermark: got %d, want 10", got.LastMinedCycle)
	}
}

func TestPatternStore_UpsertReplayIsNoOp(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	p := testPattern("p1", "sig1")
	p.LastMinedCycle = 5
	if _, err := store.UpsertMined(ctx, p); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// Replaying the same mining window must not double-count samples.
	replay := testPattern("p1", "sig1")
	replay.LastMinedCycle = 5
	inserted, err := store.UpsertMined(ctx, replay)
	if err != nil {
		t.Fatalf("replay upsert failed: %v", err)
	}
	if inserted {
		t.Error("replay must not insert")
	}

	got, _ := store.GetBySignature(ctx, "sig1")
	if got.SampleSize != 25 {
		t.Errorf("replay changed sample size: got %d, want 25", got.SampleSize)
	}

	n, _ := store.Count(ctx)
	if n != 1 {
		t.Errorf("replay duplicated the pattern: count %d", n)
	}
}

func TestPatternStore_ListForSamplingOrder(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	older := testPattern("pB", "sigB")
	newer := testPattern("pC", "sigC")
	never := testPattern("pA", "sigA")
	if _, err := store.UpsertMined(ctx, older); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpsertMined(ctx, newer); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpsertMined(ctx, never); err != nil {
		t.Fatal(err)
	}

	// Give pB and pC tournament history via matchups.
	matchups := NewMatchupStore(store)
	if err := matchups.ApplyResult(ctx, &domain.Matchup{
		MatchupID: "m1", Cycle: 1, PatternA: "pB", PatternB: "pC",
		Timeframe: domain.TimeframeH1, Winner: "pB", Bonus: 1.25, CreatedAt: 5000,
	}); err != nil {
		t.Fatalf("ApplyResult failed: %v", err)
	}
	if err := matchups.ApplyResult(ctx, &domain.Matchup{
		MatchupID: "m2", Cycle: 2, PatternA: "pC", PatternB: "pB",
		Timeframe: domain.TimeframeH1, Winner: "pC", Bonus: 1.25, CreatedAt: 9000,
	}); err != nil {
		t.Fatalf("ApplyResult failed: %v", err)
	}

	// m2 touched both, so order by last_tested alone cannot split pB and pC;
	// both were last tested at 9000 and fall back to id order.
	got, err := store.ListForSampling(ctx)
	if err != nil {
		t.Fatalf("ListForSampling failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 patterns, got %d", len(got))
	}
	if got[0].PatternID != "pA" {
		t.Errorf("never-tested pattern must sort first, got %s", got[0].PatternID)
	}
	if got[1].PatternID != "pB" || got[2].PatternID != "pC" {
		t.Errorf("equal last_tested must fall back to id order, got %s then %s",
			got[1].PatternID, got[2].PatternID)
	}
}

func TestPatternStore_Vote(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	if _, err := store.UpsertMined(ctx, testPattern("p1", "sig1")); err != nil {
		t.Fatal(err)
	}

	if err := store.Vote(ctx, "p1", domain.VoteUp); err != nil {
		t.Fatalf("Vote up failed: %v", err)
	}
	if err := store.Vote(ctx, "p1", domain.VoteUp); err != nil {
		t.Fatalf("Vote up failed: %v", err)
	}
	if err := store.Vote(ctx, "p1", domain.VoteDown); err != nil {
		t.Fatalf("Vote down failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "p1")
	if got.Upvotes != 2 || got.Downvotes != 1 {
		t.Errorf("votes: got %d/%d, want 2/1", got.Upvotes, got.Downvotes)
	}
}

func TestPatternStore_VoteMissingPattern(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	err := store.Vote(ctx, "nonexistent", domain.VoteUp)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPatternStore_UpsertInvalidInput(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	bad := testPattern("p1", "sig1")
	bad.WinRate = 1.5
	if _, err := store.UpsertMined(ctx, bad); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for win rate out of range, got %v", err)
	}

	noClauses := testPattern("p2", "sig2")
	noClauses.Condition = domain.Condition{}
	if _, err := store.UpsertMined(ctx, noClauses); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty condition, got %v", err)
	}
}

func TestPatternStore_StoredRowIsIsolated(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	p := testPattern("p1", "sig1")
	if _, err := store.UpsertMined(ctx, p); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's copy must not leak into the store.
	*p.Condition.Clauses[0].Lo = 99
	got, _ := store.GetByID(ctx, "p1")
	if *got.Condition.Clauses[0].Lo == 99 {
		t.Error("stored condition shares memory with the caller")
	}
}
