package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// CycleStateStore implements storage.CycleStateStore using PostgreSQL.
// The migration seeds the single row; every write is a guarded UPDATE.
type CycleStateStore struct {
	pool *Pool
}

// NewCycleStateStore creates a new CycleStateStore.
func NewCycleStateStore(pool *Pool) *CycleStateStore {
	return &CycleStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CycleStateStore = (*CycleStateStore)(nil)

// Get retrieves the current state. A missing row reads as the zero state.
func (s *CycleStateStore) Get(ctx context.Context) (*domain.CycleState, error) {
	query := `
		SELECT cycle, last_mined_cycle, last_tournament_cycle, version, updated_at
		FROM cycle_state
		WHERE id = 1
	`

	var st domain.CycleState
	err := s.pool.QueryRow(ctx, query).Scan(
		&st.Cycle, &st.LastMinedCycle, &st.LastTournamentCycle, &st.Version, &st.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return &domain.CycleState{}, nil
		}
		return nil, fmt.Errorf("get cycle state: %w", err)
	}
	return &st, nil
}

// CompareAndSwap writes next if the stored version still equals
// expectedVersion, bumping the version by one.
func (s *CycleStateStore) CompareAndSwap(ctx context.Context, expectedVersion int64, next *domain.CycleState) error {
	if next == nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE cycle_state
		SET cycle = $1,
			last_mined_cycle = $2,
			last_tournament_cycle = $3,
			version = version + 1,
			updated_at = $4
		WHERE id = 1 AND version = $5
	`

	tag, err := s.pool.Exec(ctx, query,
		next.Cycle, next.LastMinedCycle, next.LastTournamentCycle,
		time.Now().UnixMilli(), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("cas cycle state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}
