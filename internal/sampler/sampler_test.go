package sampler

import (
	"context"
	"math"
	"testing"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/memory"
)

func samplePattern(id string, upvotes, runs int) *domain.Pattern {
	return &domain.Pattern{
		PatternID: id,
		Name:      "pattern " + id,
		Signature: "sig-" + id,
		Upvotes:   upvotes,
		Runs:      runs,
	}
}

func TestWeight(t *testing.T) {
	cases := []struct {
		upvotes, downvotes, runs int
		want                     float64
	}{
		{0, 0, 0, 1},    // untested, unvoted
		{2, 0, 0, 3},    // votes raise
		{0, 0, 3, 0.25}, // runs lower
		{9, 0, 1, 5},
		{1, 5, 0, 1}, // net votes clamp at zero
	}
	for _, c := range cases {
		p := &domain.Pattern{Upvotes: c.upvotes, Downvotes: c.downvotes, Runs: c.runs}
		if got := weight(p); got != c.want {
			t.Errorf("weight(up=%d down=%d runs=%d) = %f, want %f",
				c.upvotes, c.downvotes, c.runs, got, c.want)
		}
	}
}

func TestSampleEmptyRegistry(t *testing.T) {
	s := New(memory.NewPatternStore(), 1)

	got, err := s.Sample(context.Background(), 4)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("sampled %d patterns from an empty registry, want 0", len(got))
	}
}

func TestSampleZeroRequest(t *testing.T) {
	s := New(memory.NewPatternStore(), 1)

	got, err := s.Sample(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("sampled %d patterns for n=0, want 0", len(got))
	}
}

func TestDrawSinglePatternAlwaysReturned(t *testing.T) {
	s := New(memory.NewPatternStore(), 1)
	pool := []*domain.Pattern{samplePattern("only", 0, 0)}

	got := s.draw(pool, 5)
	if len(got) != 1 {
		t.Fatalf("drew %d patterns from a pool of 1, want 1", len(got))
	}
	if got[0].PatternID != "only" {
		t.Errorf("drew %s, want only", got[0].PatternID)
	}
}

func TestDrawWithoutReplacement(t *testing.T) {
	s := New(memory.NewPatternStore(), 42)
	pool := []*domain.Pattern{
		samplePattern("a", 5, 0),
		samplePattern("b", 0, 2),
		samplePattern("c", 1, 1),
		samplePattern("d", 0, 0),
	}

	got := s.draw(pool, 4)
	if len(got) != 4 {
		t.Fatalf("drew %d patterns, want 4", len(got))
	}
	seen := make(map[string]bool)
	for _, p := range got {
		if seen[p.PatternID] {
			t.Fatalf("pattern %s drawn twice", p.PatternID)
		}
		seen[p.PatternID] = true
	}

	// The original pool order must survive the draw's internal removals.
	if pool[0].PatternID != "a" || pool[3].PatternID != "d" {
		t.Error("draw mutated the caller's slice")
	}
}

func TestDrawCapsAtPopulation(t *testing.T) {
	s := New(memory.NewPatternStore(), 7)
	pool := []*domain.Pattern{samplePattern("a", 0, 0), samplePattern("b", 0, 0)}

	got := s.draw(pool, 10)
	if len(got) != 2 {
		t.Fatalf("drew %d patterns from a pool of 2, want 2", len(got))
	}
}

func TestDrawReproducibleWithSeed(t *testing.T) {
	pool := []*domain.Pattern{
		samplePattern("a", 3, 0),
		samplePattern("b", 1, 4),
		samplePattern("c", 0, 0),
		samplePattern("d", 7, 2),
		samplePattern("e", 0, 9),
	}

	first := New(memory.NewPatternStore(), 99).draw(pool, 3)
	second := New(memory.NewPatternStore(), 99).draw(pool, 3)

	if len(first) != len(second) {
		t.Fatalf("draw sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].PatternID != second[i].PatternID {
			t.Errorf("draw %d differs across identical seeds: %s vs %s",
				i, first[i].PatternID, second[i].PatternID)
		}
	}
}

func TestDrawFrequencyTracksWeight(t *testing.T) {
	// weight(a) = 3, weight(b) = 1: a should take ~75% of single draws.
	pool := []*domain.Pattern{
		samplePattern("a", 2, 0),
		samplePattern("b", 0, 0),
	}

	s := New(memory.NewPatternStore(), 1234)
	const draws = 10_000
	hits := 0
	for i := 0; i < draws; i++ {
		got := s.draw(pool, 1)
		if got[0].PatternID == "a" {
			hits++
		}
	}

	freq := float64(hits) / draws
	if math.Abs(freq-0.75) > 0.02 {
		t.Errorf("selection frequency for a = %.4f, want 0.75 +/- 0.02", freq)
	}
}

func TestSampleUsesRegistryOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPatternStore()

	conds := []domain.Condition{
		rangeCondition(0, 1),
		rangeCondition(1, 2),
		rangeCondition(2, 3),
	}
	for i, c := range conds {
		p := minedFixture(c, int64(i+1))
		if _, err := store.UpsertMined(ctx, p); err != nil {
			t.Fatalf("seed pattern %d: %v", i, err)
		}
	}

	s := New(store, 5)
	got, err := s.Sample(ctx, 3)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("sampled %d patterns, want 3", len(got))
	}
	seen := make(map[string]bool)
	for _, p := range got {
		seen[p.PatternID] = true
	}
	if len(seen) != 3 {
		t.Errorf("sample contains duplicates: %v", seen)
	}
}

func rangeCondition(lo, hi float64) domain.Condition {
	return domain.Condition{Clauses: []domain.Clause{{
		Feature: domain.FeatureMomentumPct,
		Lo:      &lo,
		Hi:      &hi,
	}}}
}

func minedFixture(cond domain.Condition, cycle int64) *domain.Pattern {
	sig := cond.Canonical()
	return &domain.Pattern{
		PatternID:      "pat-" + sig,
		Name:           "fixture " + sig,
		Signature:      sig,
		Condition:      cond,
		WinRate:        0.6,
		SampleSize:     25,
		Confidence:     0.9,
		Rationale:      "fixture",
		Origin:         domain.OriginChaosMiner,
		LastMinedCycle: cycle,
		CreatedAt:      cycle,
		UpdatedAt:      cycle,
	}
}
