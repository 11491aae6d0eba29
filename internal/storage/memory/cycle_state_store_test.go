package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

func TestCycleStateStore_ZeroState(t *testing.T) {
	store := NewCycleStateStore()
	ctx := context.Background()

	st, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if st.Cycle != 0 || st.Version != 0 {
		t.Errorf("fresh store not at zero state: cycle=%d version=%d", st.Cycle, st.Version)
	}
}

func TestCycleStateStore_CompareAndSwap(t *testing.T) {
	store := NewCycleStateStore()
	ctx := context.Background()

	st, _ := store.Get(ctx)
	next := *st
	next.Cycle = 1
	if err := store.CompareAndSwap(ctx, st.Version, &next); err != nil {
		t.Fatalf("CAS failed: %v", err)
	}

	got, _ := store.Get(ctx)
	if got.Cycle != 1 {
		t.Errorf("cycle not advanced: got %d", got.Cycle)
	}
	if got.Version != st.Version+1 {
		t.Errorf("version not bumped: got %d, want %d", got.Version, st.Version+1)
	}
}

func TestCycleStateStore_StaleVersionConflicts(t *testing.T) {
	store := NewCycleStateStore()
	ctx := context.Background()

	st, _ := store.Get(ctx)

	// A concurrent invocation claims the cycle first.
	first := *st
	first.Cycle = 1
	if err := store.CompareAndSwap(ctx, st.Version, &first); err != nil {
		t.Fatalf("first CAS failed: %v", err)
	}

	// The loser still holds the old version and must not win.
	second := *st
	second.Cycle = 1
	err := store.CompareAndSwap(ctx, st.Version, &second)
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, _ := store.Get(ctx)
	if got.Cycle != 1 || got.Version != st.Version+1 {
		t.Errorf("losing CAS mutated state: cycle=%d version=%d", got.Cycle, got.Version)
	}
}

func TestCycleStateStore_SequentialClaims(t *testing.T) {
	store := NewCycleStateStore()
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		st, err := store.Get(ctx)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		next := domain.CycleState{
			Cycle:               st.Cycle + 1,
			LastMinedCycle:      st.LastMinedCycle,
			LastTournamentCycle: st.LastTournamentCycle,
		}
		if err := store.CompareAndSwap(ctx, st.Version, &next); err != nil {
			t.Fatalf("claim %d failed: %v", want, err)
		}
	}

	st, _ := store.Get(ctx)
	if st.Cycle != 5 {
		t.Errorf("expected cycle 5 after 5 claims, got %d", st.Cycle)
	}
}
