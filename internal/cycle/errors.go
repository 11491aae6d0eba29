package cycle

import (
	"errors"
	"fmt"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/market"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/tournament"
)

// Kind classifies a cycle failure for reporting and logging. Every
// failure an invocation can hit maps to exactly one kind.
type Kind string

const (
	// KindPersistenceFailure covers failed batch writes; the stage
	// aborts with nothing partially persisted and the next invocation
	// retries from durable state.
	KindPersistenceFailure Kind = "PersistenceFailure"

	// KindInsufficientData marks a tournament pairing whose history
	// slice was too short; the pairing is replaced, never fatal.
	KindInsufficientData Kind = "InsufficientData"

	// KindDuplicateCandidateRace marks concurrent writers colliding on
	// one pattern signature; resolved inside the storage upsert and
	// logged, never surfaced as an error.
	KindDuplicateCandidateRace Kind = "DuplicateCandidateRace"

	// KindEmptyBatch marks a zero-budget trial stage; a successful
	// no-op.
	KindEmptyBatch Kind = "EmptyBatch"

	// KindSnapshotUnavailable marks a missing market snapshot; the
	// cycle aborts and the next invocation retries.
	KindSnapshotUnavailable Kind = "SnapshotUnavailable"

	// KindCycleConflict marks a lost claim race with an overlapping
	// invocation; the cycle was already taken, nothing to redo.
	KindCycleConflict Kind = "CycleConflict"
)

// StageError attributes a failure to a cycle, stage, and taxonomy kind.
type StageError struct {
	Kind  Kind
	Stage string
	Cycle int64
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("cycle %d stage %s: %s: %v", e.Cycle, e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-triggering can succeed. A conflict means
// another invocation owns the cycle, so the next trigger simply moves
// on; data gaps are not fixed by retrying.
func (e *StageError) Retryable() bool {
	return kindRetryable(e.Kind)
}

func kindRetryable(k Kind) bool {
	switch k {
	case KindPersistenceFailure, KindSnapshotUnavailable:
		return true
	default:
		return false
	}
}

// classify wraps err in a StageError with the taxonomy kind derived
// from the underlying sentinel.
func classify(stage string, cycle int64, err error) *StageError {
	kind := KindPersistenceFailure
	switch {
	case errors.Is(err, storage.ErrVersionConflict):
		kind = KindCycleConflict
	case errors.Is(err, market.ErrSnapshotUnavailable):
		kind = KindSnapshotUnavailable
	case errors.Is(err, tournament.ErrInsufficientData):
		kind = KindInsufficientData
	}
	return &StageError{Kind: kind, Stage: stage, Cycle: cycle, Err: err}
}
