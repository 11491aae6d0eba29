package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// PatternStore is an in-memory implementation of storage.PatternStore.
type PatternStore struct {
	mu          sync.RWMutex
	data        map[string]*domain.Pattern // keyed by pattern_id
	bySignature map[string]string          // signature -> pattern_id
}

// NewPatternStore creates a new in-memory pattern store.
func NewPatternStore() *PatternStore {
	return &PatternStore{
		data:        make(map[string]*domain.Pattern),
		bySignature: make(map[string]string),
	}
}

// clonePattern deep-copies a pattern so stored rows never share the
// timeframe map, clause slice or bound pointers with callers.
func clonePattern(p *domain.Pattern) *domain.Pattern {
	c := *p
	if p.LastTested != nil {
		lt := *p.LastTested
		c.LastTested = &lt
	}
	if p.TimeframeReturns != nil {
		c.TimeframeReturns = make(map[domain.Timeframe]float64, len(p.TimeframeReturns))
		for tf, roi := range p.TimeframeReturns {
			c.TimeframeReturns[tf] = roi
		}
	}
	if p.Condition.Clauses != nil {
		c.Condition.Clauses = make([]domain.Clause, len(p.Condition.Clauses))
		for i, cl := range p.Condition.Clauses {
			cc := cl
			if cl.Lo != nil {
				lo := *cl.Lo
				cc.Lo = &lo
			}
			if cl.Hi != nil {
				hi := *cl.Hi
				cc.Hi = &hi
			}
			c.Condition.Clauses[i] = cc
		}
	}
	return &c
}

// UpsertMined inserts a new pattern or folds mined statistics into the row
// with the same signature. Replaying an already folded window is a no-op.
func (s *PatternStore) UpsertMined(_ context.Context, p *domain.Pattern) (bool, error) {
	if p == nil || p.PatternID == "" || p.Signature == "" || !p.Origin.IsValid() {
		return false, storage.ErrInvalidInput
	}
	if p.WinRate < 0 || p.WinRate > 1 || p.SampleSize <= 0 {
		return false, storage.ErrInvalidInput
	}
	if err := p.Condition.Validate(); err != nil {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.bySignature[p.Signature]
	if !exists {
		s.data[p.PatternID] = clonePattern(p)
		s.bySignature[p.Signature] = p.PatternID
		return true, nil
	}

	existing := s.data[id]
	if p.LastMinedCycle <= existing.LastMinedCycle {
		// Window already folded in; replay is a no-op.
		return false, nil
	}

	total := existing.SampleSize + p.SampleSize
	existing.WinRate = (existing.WinRate*float64(existing.SampleSize) + p.WinRate*float64(p.SampleSize)) / float64(total)
	existing.SampleSize = total
	existing.Confidence = p.Confidence
	existing.LastMinedCycle = p.LastMinedCycle
	existing.UpdatedAt = p.UpdatedAt
	return false, nil
}

// GetByID retrieves a pattern by its ID. Returns ErrNotFound if not exists.
func (s *PatternStore) GetByID(_ context.Context, patternID string) (*domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[patternID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return clonePattern(p), nil
}

// GetBySignature retrieves a pattern by its signature. Returns ErrNotFound if not exists.
func (s *PatternStore) GetBySignature(_ context.Context, signature string) (*domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.bySignature[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return clonePattern(s.data[id]), nil
}

// ListForSampling retrieves all patterns ordered by last_tested ASC
// (never-tested first), then pattern_id ASC.
func (s *PatternStore) ListForSampling(_ context.Context) ([]*domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Pattern, 0, len(s.data))
	for _, p := range s.data {
		result = append(result, clonePattern(p))
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.LastTested == nil && b.LastTested != nil:
			return true
		case a.LastTested != nil && b.LastTested == nil:
			return false
		case a.LastTested != nil && b.LastTested != nil && *a.LastTested != *b.LastTested:
			return *a.LastTested < *b.LastTested
		}
		return a.PatternID < b.PatternID
	})

	return result, nil
}

// List retrieves all patterns ordered by created_at ASC, pattern_id ASC.
func (s *PatternStore) List(_ context.Context) ([]*domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Pattern, 0, len(s.data))
	for _, p := range s.data {
		result = append(result, clonePattern(p))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].PatternID < result[j].PatternID
	})

	return result, nil
}

// Vote atomically increments the up or down vote counter.
func (s *PatternStore) Vote(_ context.Context, patternID string, dir domain.VoteDirection) error {
	if !dir.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[patternID]
	if !exists {
		return storage.ErrNotFound
	}

	if dir == domain.VoteUp {
		p.Upvotes++
	} else {
		p.Downvotes++
	}
	p.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// Count returns the total number of patterns.
func (s *PatternStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

// applyMatchup updates both contenders of a decided matchup. Validation
// happens before any mutation so a failure leaves the registry untouched.
// Called by MatchupStore.ApplyResult with the matchup lock held.
func (s *PatternStore) applyMatchup(m *domain.Matchup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, okA := s.data[m.PatternA]
	b, okB := s.data[m.PatternB]
	if !okA || !okB {
		return storage.ErrNotFound
	}
	if m.Winner != m.PatternA && m.Winner != m.PatternB {
		return storage.ErrInvalidInput
	}

	apply := func(p *domain.Pattern, roi float64, won bool) {
		p.Runs++
		if won {
			p.H2HWins++
		} else {
			p.H2HLosses++
		}
		if p.TimeframeReturns == nil {
			p.TimeframeReturns = make(map[domain.Timeframe]float64)
		}
		p.TimeframeReturns[m.Timeframe] = roi
		lt := m.CreatedAt
		p.LastTested = &lt
		p.UpdatedAt = m.CreatedAt
	}

	apply(a, m.ROIA, m.Winner == m.PatternA)
	apply(b, m.ROIB, m.Winner == m.PatternB)
	return nil
}

var _ storage.PatternStore = (*PatternStore)(nil)
