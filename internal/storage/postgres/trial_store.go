package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// TrialStore implements storage.TrialStore using PostgreSQL.
type TrialStore struct {
	pool *Pool
}

// NewTrialStore creates a new TrialStore.
func NewTrialStore(pool *Pool) *TrialStore {
	return &TrialStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrialStore = (*TrialStore)(nil)

const trialColumns = `
	trial_id, cycle, seq, symbol, side,
	entry_price, exit_price, entry_time, exit_time,
	pnl_pct, profitable, rationale,
	snap_price, snap_momentum_pct, snap_moving_avg,
	snap_volume, snap_avg_volume, snap_volatility_pct, snap_captured_at,
	created_at`

// InsertBatch adds a cycle batch atomically. Fails entire batch on any duplicate.
func (s *TrialStore) InsertBatch(ctx context.Context, trials []*domain.Trial) error {
	if len(trials) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trials (` + trialColumns + `
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15,
			$16, $17, $18, $19,
			$20
		)
	`

	for _, t := range trials {
		_, err := tx.Exec(ctx, query,
			t.TrialID, t.Cycle, t.Seq, t.Symbol, t.Side,
			t.EntryPrice, t.ExitPrice, t.EntryTime, t.ExitTime,
			t.PnLPct, t.Profitable, t.Rationale,
			t.Snapshot.Price, t.Snapshot.MomentumPct, t.Snapshot.MovingAvg,
			t.Snapshot.Volume, t.Snapshot.AvgVolume, t.Snapshot.VolatilityPct, t.Snapshot.CapturedAt,
			t.CreatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			if isConstraintError(err) {
				return storage.ErrInvalidInput
			}
			return fmt.Errorf("insert trial in batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trial by its ID. Returns ErrNotFound if not exists.
func (s *TrialStore) GetByID(ctx context.Context, trialID string) (*domain.Trial, error) {
	query := `
		SELECT ` + trialColumns + `
		FROM trials
		WHERE trial_id = $1
	`

	row := s.pool.QueryRow(ctx, query, trialID)
	t, err := scanTrial(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trial by id: %w", err)
	}
	return t, nil
}

// GetByCycleRange retrieves trials with cycle in [fromCycle, toCycle], ordered by cycle ASC, seq ASC.
func (s *TrialStore) GetByCycleRange(ctx context.Context, fromCycle, toCycle int64) ([]*domain.Trial, error) {
	query := `
		SELECT ` + trialColumns + `
		FROM trials
		WHERE cycle >= $1 AND cycle <= $2
		ORDER BY cycle ASC, seq ASC
	`

	rows, err := s.pool.Query(ctx, query, fromCycle, toCycle)
	if err != nil {
		return nil, fmt.Errorf("get trials by cycle range: %w", err)
	}
	defer rows.Close()

	return scanTrials(rows)
}

// Count returns the total number of recorded trials.
func (s *TrialStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trials: %w", err)
	}
	return n, nil
}

// scanTrial scans a single row into a Trial.
func scanTrial(row pgx.Row) (*domain.Trial, error) {
	var t domain.Trial

	err := row.Scan(
		&t.TrialID, &t.Cycle, &t.Seq, &t.Symbol, &t.Side,
		&t.EntryPrice, &t.ExitPrice, &t.EntryTime, &t.ExitTime,
		&t.PnLPct, &t.Profitable, &t.Rationale,
		&t.Snapshot.Price, &t.Snapshot.MomentumPct, &t.Snapshot.MovingAvg,
		&t.Snapshot.Volume, &t.Snapshot.AvgVolume, &t.Snapshot.VolatilityPct, &t.Snapshot.CapturedAt,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	// The snapshot shares the trial's symbol; it is not stored twice.
	t.Snapshot.Symbol = t.Symbol
	return &t, nil
}

// scanTrials scans multiple rows into a slice of Trial.
func scanTrials(rows pgx.Rows) ([]*domain.Trial, error) {
	var trials []*domain.Trial

	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial row: %w", err)
		}
		trials = append(trials, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trial rows: %w", err)
	}

	return trials, nil
}
