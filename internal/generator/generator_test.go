package generator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/idhash"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/market"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/memory"
)

const testSymbol = "BTC-USD"

// mockSnapshotProvider implements a controllable snapshot source for testing.
type mockSnapshotProvider struct {
	snap  *domain.MarketSnapshot
	err   error
	calls int
}

func (m *mockSnapshotProvider) Snapshot(_ context.Context, _ string) (*domain.MarketSnapshot, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.snap, nil
}

// failingTrialStore rejects every batch append.
type failingTrialStore struct {
	storage.TrialStore
}

func (f *failingTrialStore) InsertBatch(_ context.Context, _ []*domain.Trial) error {
	return errors.New("connection reset")
}

func testSnapshot() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Symbol:        testSymbol,
		CapturedAt:    1_700_000_300_000,
		Price:         50_000,
		MomentumPct:   2.5,
		MovingAvg:     49_500,
		Volume:        120,
		AvgVolume:     100,
		VolatilityPct: 1.5,
	}
}

func newTestGenerator(trials storage.TrialStore, snapshots market.SnapshotProvider, budget int, seed int64) *Generator {
	return New(Options{
		Trials:      trials,
		Snapshots:   snapshots,
		Symbol:      testSymbol,
		TrialBudget: budget,
		Seed:        seed,
		Logger:      zerolog.Nop(),
	})
}

func TestRunGeneratesBudget(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTrialStore()
	provider := &mockSnapshotProvider{snap: testSnapshot()}

	gen := newTestGenerator(store, provider, 50, 42)

	result, err := gen.Run(ctx, 7)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.TrialsGenerated != 50 {
		t.Errorf("TrialsGenerated = %d, want 50", result.TrialsGenerated)
	}
	if result.Replayed {
		t.Error("Replayed = true for a fresh cycle")
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 50 {
		t.Errorf("persisted %d trials, want 50", count)
	}

	trials, err := store.GetByCycleRange(ctx, 7, 7)
	if err != nil {
		t.Fatalf("GetByCycleRange failed: %v", err)
	}
	snap := testSnapshot()
	for _, tr := range trials {
		if tr.TrialID != idhash.ComputeTrialID(7, tr.Seq, testSymbol) {
			t.Errorf("trial %d has non-deterministic ID %s", tr.Seq, tr.TrialID)
		}
		if !tr.Side.IsValid() {
			t.Errorf("trial %d has invalid side %q", tr.Seq, tr.Side)
		}
		if math.Abs(tr.EntryPrice-snap.Price) > snap.Price*entryJitterFrac {
			t.Errorf("trial %d entry %f outside jitter band around %f", tr.Seq, tr.EntryPrice, snap.Price)
		}
		if tr.ExitPrice <= 0 {
			t.Errorf("trial %d exit price %f not positive", tr.Seq, tr.ExitPrice)
		}
		if tr.Profitable != (tr.PnLPct > 0) {
			t.Errorf("trial %d profitable flag %v inconsistent with pnl %f", tr.Seq, tr.Profitable, tr.PnLPct)
		}
		if tr.Rationale == "" {
			t.Errorf("trial %d has empty rationale", tr.Seq)
		}
		if tr.EntryTime != snap.CapturedAt {
			t.Errorf("trial %d entry time %d, want snapshot capture %d", tr.Seq, tr.EntryTime, snap.CapturedAt)
		}
		if tr.ExitTime <= tr.EntryTime {
			t.Errorf("trial %d exit time %d not after entry %d", tr.Seq, tr.ExitTime, tr.EntryTime)
		}
		if tr.Snapshot.MomentumPct != snap.MomentumPct {
			t.Errorf("trial %d lost snapshot features", tr.Seq)
		}
	}
}

func TestRunZeroBudgetIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTrialStore()
	provider := &mockSnapshotProvider{snap: testSnapshot()}

	gen := newTestGenerator(store, provider, 0, 42)

	result, err := gen.Run(ctx, 1)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.TrialsGenerated != 0 {
		t.Errorf("TrialsGenerated = %d, want 0", result.TrialsGenerated)
	}
	if provider.calls != 0 {
		t.Errorf("snapshot fetched %d times for a zero budget, want 0", provider.calls)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("persisted %d trials for a zero budget, want 0", count)
	}
}

func TestRunSnapshotUnavailable(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTrialStore()
	provider := &mockSnapshotProvider{err: market.ErrSnapshotUnavailable}

	gen := newTestGenerator(store, provider, 10, 42)

	_, err := gen.Run(ctx, 1)
	if !errors.Is(err, market.ErrSnapshotUnavailable) {
		t.Fatalf("expected ErrSnapshotUnavailable, got %v", err)
	}

	count, _ := store.Count(ctx)
	if count != 0 {
		t.Errorf("persisted %d trials after snapshot failure, want 0", count)
	}
}

func TestRunReplayedCycleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTrialStore()
	provider := &mockSnapshotProvider{snap: testSnapshot()}

	first := newTestGenerator(store, provider, 20, 1)
	if _, err := first.Run(ctx, 3); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// Different seed, same cycle: deterministic IDs collide.
	second := newTestGenerator(store, provider, 20, 999)
	result, err := second.Run(ctx, 3)
	if err != nil {
		t.Fatalf("replayed Run failed: %v", err)
	}
	if !result.Replayed {
		t.Error("Replayed = false for a replayed cycle")
	}
	if result.TrialsGenerated != 0 {
		t.Errorf("TrialsGenerated = %d on replay, want 0", result.TrialsGenerated)
	}

	count, _ := store.Count(ctx)
	if count != 20 {
		t.Errorf("persisted %d trials after replay, want 20", count)
	}
}

func TestRunSeedReproducesBatch(t *testing.T) {
	ctx := context.Background()
	provider := &mockSnapshotProvider{snap: testSnapshot()}

	storeA := memory.NewTrialStore()
	storeB := memory.NewTrialStore()

	if _, err := newTestGenerator(storeA, provider, 30, 77).Run(ctx, 5); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if _, err := newTestGenerator(storeB, provider, 30, 77).Run(ctx, 5); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	trialsA, _ := storeA.GetByCycleRange(ctx, 5, 5)
	trialsB, _ := storeB.GetByCycleRange(ctx, 5, 5)
	if len(trialsA) != len(trialsB) {
		t.Fatalf("batch sizes differ: %d vs %d", len(trialsA), len(trialsB))
	}
	for i := range trialsA {
		a, b := trialsA[i], trialsB[i]
		if a.Side != b.Side || a.EntryPrice != b.EntryPrice || a.ExitPrice != b.ExitPrice || a.Rationale != b.Rationale {
			t.Errorf("trial %d differs across identical seeds: %+v vs %+v", i, a, b)
		}
	}
}

func TestRunAppendFailureDiscardsBatch(t *testing.T) {
	ctx := context.Background()
	provider := &mockSnapshotProvider{snap: testSnapshot()}

	gen := newTestGenerator(&failingTrialStore{}, provider, 10, 42)

	_, err := gen.Run(ctx, 1)
	if err == nil {
		t.Fatal("expected error from failed append, got nil")
	}
}
