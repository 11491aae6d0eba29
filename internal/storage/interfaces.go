package storage

import (
	"context"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
)

// TrialStore provides access to trials storage. The trial log is append-only.
type TrialStore interface {
	// InsertBatch adds a cycle batch atomically. An empty batch is a no-op.
	// Fails the entire batch with ErrDuplicateKey if any trial_id exists.
	InsertBatch(ctx context.Context, trials []*domain.Trial) error

	// GetByID retrieves a trial by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, trialID string) (*domain.Trial, error)

	// GetByCycleRange retrieves trials with cycle in [fromCycle, toCycle]
	// (inclusive), ordered by cycle ASC, seq ASC.
	GetByCycleRange(ctx context.Context, fromCycle, toCycle int64) ([]*domain.Trial, error)

	// Count returns the total number of recorded trials.
	Count(ctx context.Context) (int64, error)
}

// PatternStore provides access to patterns storage.
type PatternStore interface {
	// UpsertMined inserts a freshly mined pattern or folds its statistics
	// into the existing row with the same signature, atomically: win_rate
	// becomes the sample-weighted running mean, sample_size accumulates and
	// last_mined_cycle advances. The update only applies when the incoming
	// last_mined_cycle is ahead of the stored one, so replaying a mining
	// window is a no-op. Returns true when a new row was inserted.
	UpsertMined(ctx context.Context, p *domain.Pattern) (bool, error)

	// GetByID retrieves a pattern by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, patternID string) (*domain.Pattern, error)

	// GetBySignature retrieves a pattern by its signature. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.Pattern, error)

	// ListForSampling retrieves all patterns ordered by last_tested ASC with
	// never-tested rows first, then pattern_id ASC. The ordering is the
	// sampler's deterministic oldest-first tie-break.
	ListForSampling(ctx context.Context) ([]*domain.Pattern, error)

	// List retrieves all patterns ordered by created_at ASC, pattern_id ASC.
	List(ctx context.Context) ([]*domain.Pattern, error)

	// Vote atomically increments the up or down vote counter.
	// Returns ErrNotFound if the pattern does not exist.
	Vote(ctx context.Context, patternID string, dir domain.VoteDirection) error

	// Count returns the total number of patterns.
	Count(ctx context.Context) (int64, error)
}

// MatchupStore provides access to matchups storage.
type MatchupStore interface {
	// ApplyResult records a decided tournament in a single transaction:
	// the matchup row is inserted and both contender patterns are updated
	// (runs, h2h counters, timeframe return, last_tested). Nothing is
	// written if any part fails. Returns ErrDuplicateKey if matchup_id
	// exists, meaning the result was already applied.
	ApplyResult(ctx context.Context, m *domain.Matchup) error

	// GetByID retrieves a matchup by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, matchupID string) (*domain.Matchup, error)

	// GetByCycle retrieves all matchups of a cycle, ordered by created_at ASC.
	GetByCycle(ctx context.Context, cycle int64) ([]*domain.Matchup, error)

	// GetByPattern retrieves all matchups a pattern took part in,
	// ordered by created_at ASC.
	GetByPattern(ctx context.Context, patternID string) ([]*domain.Matchup, error)

	// Count returns the total number of recorded matchups.
	Count(ctx context.Context) (int64, error)
}

// CycleStateStore provides access to the singleton cycle_state row.
type CycleStateStore interface {
	// Get retrieves the current state. A fresh store returns the zero state
	// (cycle 0, version 0) rather than ErrNotFound.
	Get(ctx context.Context) (*domain.CycleState, error)

	// CompareAndSwap writes next if and only if the stored version still
	// equals expectedVersion, bumping the version by one. Returns
	// ErrVersionConflict when another invocation won the race.
	CompareAndSwap(ctx context.Context, expectedVersion int64, next *domain.CycleState) error
}

// CandleStore provides access to candles storage.
type CandleStore interface {
	// InsertBatch adds multiple candles. The history table tolerates
	// replayed batches; duplicates are collapsed by the storage engine.
	InsertBatch(ctx context.Context, candles []*domain.Candle) error

	// GetRange retrieves candles with open_time in [from, to] (inclusive)
	// for a symbol and timeframe, ordered by open_time ASC.
	GetRange(ctx context.Context, symbol string, tf domain.Timeframe, from, to int64) ([]*domain.Candle, error)

	// GetLatest retrieves the most recent limit candles for a symbol and
	// timeframe, ordered by open_time ASC.
	GetLatest(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]*domain.Candle, error)

	// Count returns the number of candles stored for a symbol and timeframe.
	Count(ctx context.Context, symbol string, tf domain.Timeframe) (int64, error)
}
