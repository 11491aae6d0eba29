package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candle // keyed by symbol|timeframe|open_time
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]*domain.Candle),
	}
}

func candleKey(symbol string, tf domain.Timeframe, openTime int64) string {
	return fmt.Sprintf("%s|%s|%d", symbol, tf, openTime)
}

// InsertBatch adds multiple candles. Replayed bars overwrite in place,
// matching the collapsing merge semantics of the ClickHouse backend.
func (s *CandleStore) InsertBatch(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range candles {
		if c == nil || c.Symbol == "" || !c.Timeframe.IsValid() {
			return storage.ErrInvalidInput
		}
	}
	for _, c := range candles {
		copy := *c
		s.data[candleKey(c.Symbol, c.Timeframe, c.OpenTime)] = &copy
	}

	return nil
}

// GetRange retrieves candles with open_time in [from, to], ordered by open_time ASC.
func (s *CandleStore) GetRange(_ context.Context, symbol string, tf domain.Timeframe, from, to int64) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.Symbol == symbol && c.Timeframe == tf && c.OpenTime >= from && c.OpenTime <= to {
			copy := *c
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime < result[j].OpenTime
	})

	return result, nil
}

// GetLatest retrieves the most recent limit candles, ordered by open_time ASC.
func (s *CandleStore) GetLatest(_ context.Context, symbol string, tf domain.Timeframe, limit int) ([]*domain.Candle, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var series []*domain.Candle
	for _, c := range s.data {
		if c.Symbol == symbol && c.Timeframe == tf {
			copy := *c
			series = append(series, &copy)
		}
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].OpenTime < series[j].OpenTime
	})

	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	return series, nil
}

// Count returns the number of candles stored for a symbol and timeframe.
func (s *CandleStore) Count(_ context.Context, symbol string, tf domain.Timeframe) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, c := range s.data {
		if c.Symbol == symbol && c.Timeframe == tf {
			n++
		}
	}
	return n, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
