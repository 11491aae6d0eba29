package memory

import (
	"context"
	"sync"
	"time"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// CycleStateStore is an in-memory implementation of storage.CycleStateStore.
type CycleStateStore struct {
	mu    sync.RWMutex
	state domain.CycleState
}

// NewCycleStateStore creates a new in-memory cycle state store holding the
// zero state.
func NewCycleStateStore() *CycleStateStore {
	return &CycleStateStore{}
}

// Get retrieves the current state.
func (s *CycleStateStore) Get(_ context.Context) (*domain.CycleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copy := s.state
	return &copy, nil
}

// CompareAndSwap writes next if the stored version still equals
// expectedVersion, bumping the version by one.
func (s *CycleStateStore) CompareAndSwap(_ context.Context, expectedVersion int64, next *domain.CycleState) error {
	if next == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Version != expectedVersion {
		return storage.ErrVersionConflict
	}

	s.state = *next
	s.state.Version = expectedVersion + 1
	s.state.UpdatedAt = time.Now().UnixMilli()
	return nil
}

var _ storage.CycleStateStore = (*CycleStateStore)(nil)
