package market

import (
	"context"
	"errors"
	"testing"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/memory"
)

func seedCandles(t *testing.T, store *memory.CandleStore, n int) (base, step int64) {
	t.Helper()
	base = int64(1_700_000_000_000)
	step = domain.TimeframeM5.Duration().Milliseconds()

	bars := make([]*domain.Candle, n)
	price := 100.0
	for i := range bars {
		next := price + float64(i%3) - 1 // drifts -1, 0, +1
		bars[i] = testCandle(base+int64(i)*step, price, next, 10+float64(i))
		price = next
	}
	if err := store.InsertBatch(context.Background(), bars); err != nil {
		t.Fatalf("seed candles: %v", err)
	}
	return base, step
}

func TestCandleProviderSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	base, step := seedCandles(t, store, 10)

	provider := NewCandleProvider(store, domain.TimeframeM5, 5)

	snap, err := provider.Snapshot(ctx, testSymbol)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	// Stamped at the close of the newest seeded bar.
	if want := base + 10*step; snap.CapturedAt != want {
		t.Errorf("CapturedAt = %d, want %d", snap.CapturedAt, want)
	}
	if snap.Price <= 0 {
		t.Errorf("Price = %f, want positive", snap.Price)
	}
	if snap.AvgVolume <= 0 {
		t.Errorf("AvgVolume = %f, want positive", snap.AvgVolume)
	}
}

func TestCandleProviderSnapshotShortHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	seedCandles(t, store, 3)

	provider := NewCandleProvider(store, domain.TimeframeM5, 5)

	_, err := provider.Snapshot(ctx, testSymbol)
	if !errors.Is(err, ErrSnapshotUnavailable) {
		t.Fatalf("expected ErrSnapshotUnavailable, got %v", err)
	}
}

func TestCandleProviderSnapshotEmptyStore(t *testing.T) {
	ctx := context.Background()
	provider := NewCandleProvider(memory.NewCandleStore(), domain.TimeframeM5, 5)

	_, err := provider.Snapshot(ctx, testSymbol)
	if !errors.Is(err, ErrSnapshotUnavailable) {
		t.Fatalf("expected ErrSnapshotUnavailable, got %v", err)
	}
}

func TestCandleProviderSlice(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	base, step := seedCandles(t, store, 10)

	provider := NewCandleProvider(store, domain.TimeframeM5, 5)

	bars, err := provider.Slice(ctx, testSymbol, domain.TimeframeM5, base+2*step, base+6*step)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if len(bars) != 5 {
		t.Fatalf("expected 5 candles, got %d", len(bars))
	}
	for i, b := range bars {
		if want := base + int64(i+2)*step; b.OpenTime != want {
			t.Errorf("candle %d open time = %d, want %d", i, b.OpenTime, want)
		}
	}
}

func TestCandleProviderSliceEmptyWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	base, step := seedCandles(t, store, 5)

	provider := NewCandleProvider(store, domain.TimeframeM5, 5)

	_, err := provider.Slice(ctx, testSymbol, domain.TimeframeM5, base+100*step, base+200*step)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestCandleProviderSliceInvalidRange(t *testing.T) {
	ctx := context.Background()
	provider := NewCandleProvider(memory.NewCandleStore(), domain.TimeframeM5, 5)

	_, err := provider.Slice(ctx, testSymbol, domain.TimeframeM5, 200, 100)
	if err == nil {
		t.Fatal("expected error for inverted range, got nil")
	}
}

func TestNewCandleProviderLookbackFloor(t *testing.T) {
	provider := NewCandleProvider(memory.NewCandleStore(), domain.TimeframeM5, 0)
	if provider.lookback != DefaultSnapshotLookback {
		t.Errorf("lookback = %d, want %d", provider.lookback, DefaultSnapshotLookback)
	}
}
