package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// MatchupStore is an in-memory implementation of storage.MatchupStore.
// It holds the pattern store so a decided matchup and both pattern updates
// land together, mirroring the single-transaction postgres backend.
type MatchupStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.Matchup // keyed by matchup_id
	patterns *PatternStore
}

// NewMatchupStore creates a new in-memory matchup store backed by the
// given pattern store.
func NewMatchupStore(patterns *PatternStore) *MatchupStore {
	return &MatchupStore{
		data:     make(map[string]*domain.Matchup),
		patterns: patterns,
	}
}

// ApplyResult records the matchup and updates both contenders, all or nothing.
func (s *MatchupStore) ApplyResult(_ context.Context, m *domain.Matchup) error {
	if m == nil || m.MatchupID == "" || m.PatternA == "" || m.PatternB == "" || !m.Timeframe.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.MatchupID]; exists {
		return storage.ErrDuplicateKey
	}

	// Pattern updates validate before mutating, so a failure here leaves
	// neither the matchup nor the registry changed.
	if err := s.patterns.applyMatchup(m); err != nil {
		return err
	}

	copy := *m
	s.data[m.MatchupID] = &copy
	return nil
}

// GetByID retrieves a matchup by its ID. Returns ErrNotFound if not exists.
func (s *MatchupStore) GetByID(_ context.Context, matchupID string) (*domain.Matchup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[matchupID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *m
	return &copy, nil
}

// GetByCycle retrieves all matchups of a cycle, ordered by created_at ASC.
func (s *MatchupStore) GetByCycle(_ context.Context, cycle int64) ([]*domain.Matchup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Matchup
	for _, m := range s.data {
		if m.Cycle == cycle {
			copy := *m
			result = append(result, &copy)
		}
	}

	sortMatchups(result)
	return result, nil
}

// GetByPattern retrieves all matchups a pattern took part in, ordered by created_at ASC.
func (s *MatchupStore) GetByPattern(_ context.Context, patternID string) ([]*domain.Matchup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Matchup
	for _, m := range s.data {
		if m.PatternA == patternID || m.PatternB == patternID {
			copy := *m
			result = append(result, &copy)
		}
	}

	sortMatchups(result)
	return result, nil
}

// Count returns the total number of recorded matchups.
func (s *MatchupStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

func sortMatchups(ms []*domain.Matchup) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].CreatedAt != ms[j].CreatedAt {
			return ms[i].CreatedAt < ms[j].CreatedAt
		}
		return ms[i].MatchupID < ms[j].MatchupID
	})
}

var _ storage.MatchupStore = (*MatchupStore)(nil)
