package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// TrialStore is an in-memory implementation of storage.TrialStore.
type TrialStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trial // keyed by trial_id
}

// NewTrialStore creates a new in-memory trial store.
func NewTrialStore() *TrialStore {
	return &TrialStore{
		data: make(map[string]*domain.Trial),
	}
}

// InsertBatch adds a cycle batch atomically. Fails entire batch on any duplicate.
func (s *TrialStore) InsertBatch(_ context.Context, trials []*domain.Trial) error {
	if len(trials) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(trials))

	// First pass: check for duplicates (existing + intra-batch)
	for _, tr := range trials {
		if tr == nil || tr.TrialID == "" || !tr.Side.IsValid() {
			return storage.ErrInvalidInput
		}

		if _, exists := s.data[tr.TrialID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[tr.TrialID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[tr.TrialID] = struct{}{}
	}

	// Second pass: insert all
	for _, tr := range trials {
		copy := *tr
		s.data[tr.TrialID] = &copy
	}

	return nil
}

// GetByID retrieves a trial by its ID. Returns ErrNotFound if not exists.
func (s *TrialStore) GetByID(_ context.Context, trialID string) (*domain.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tr, exists := s.data[trialID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *tr
	return &copy, nil
}

// GetByCycleRange retrieves trials with cycle in [fromCycle, toCycle], ordered by cycle ASC, seq ASC.
func (s *TrialStore) GetByCycleRange(_ context.Context, fromCycle, toCycle int64) ([]*domain.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trial
	for _, tr := range s.data {
		if tr.Cycle >= fromCycle && tr.Cycle <= toCycle {
			copy := *tr
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Cycle != result[j].Cycle {
			return result[i].Cycle < result[j].Cycle
		}
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

// Count returns the total number of recorded trials.
func (s *TrialStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

var _ storage.TrialStore = (*TrialStore)(nil)
