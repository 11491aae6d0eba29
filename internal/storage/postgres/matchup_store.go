package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// MatchupStore implements storage.MatchupStore using PostgreSQL.
type MatchupStore struct {
	pool *Pool
}

// NewMatchupStore creates a new MatchupStore.
func NewMatchupStore(pool *Pool) *MatchupStore {
	return &MatchupStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MatchupStore = (*MatchupStore)(nil)

const matchupColumns = `
	matchup_id, cycle, pattern_a, pattern_b, timeframe,
	roi_a, roi_b, bonus, winner,
	slice_from, slice_to, created_at`

// ApplyResult records a decided tournament in a single transaction: the
// matchup row plus both contender updates land together or not at all.
func (s *MatchupStore) ApplyResult(ctx context.Context, m *domain.Matchup) error {
	if m == nil || m.MatchupID == "" || m.PatternA == "" || m.PatternB == "" || !m.Timeframe.IsValid() {
		return storage.ErrInvalidInput
	}
	if m.Winner != m.PatternA && m.Winner != m.PatternB {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO matchups (` + matchupColumns + `
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12
		)
	`
	_, err = tx.Exec(ctx, insert,
		m.MatchupID, m.Cycle, m.PatternA, m.PatternB, m.Timeframe,
		m.ROIA, m.ROIB, m.Bonus, m.Winner,
		m.SliceFrom, m.SliceTo, m.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if pgErrCode(err) == pgErrForeignKeyViolation {
			// The contender references are the only foreign keys here.
			return storage.ErrNotFound
		}
		if isConstraintError(err) {
			return storage.ErrInvalidInput
		}
		return fmt.Errorf("insert matchup: %w", err)
	}

	update := `
		UPDATE patterns
		SET runs = runs + 1,
			h2h_wins = h2h_wins + $2,
			h2h_losses = h2h_losses + $3,
			timeframe_returns = timeframe_returns || jsonb_build_object($4::text, $5::double precision),
			last_tested = $6,
			updated_at = $6
		WHERE pattern_id = $1
	`
	contenders := []struct {
		id  string
		roi float64
	}{
		{m.PatternA, m.ROIA},
		{m.PatternB, m.ROIB},
	}
	for _, c := range contenders {
		wins, losses := 0, 1
		if c.id == m.Winner {
			wins, losses = 1, 0
		}
		tag, err := tx.Exec(ctx, update,
			c.id, wins, losses,
			m.Timeframe.String(), c.roi, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("update pattern %s: %w", c.id, err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a matchup by its ID. Returns ErrNotFound if not exists.
func (s *MatchupStore) GetByID(ctx context.Context, matchupID string) (*domain.Matchup, error) {
	query := `
		SELECT ` + matchupColumns + `
		FROM matchups
		WHERE matchup_id = $1
	`

	row := s.pool.QueryRow(ctx, query, matchupID)
	m, err := scanMatchup(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get matchup by id: %w", err)
	}
	return m, nil
}

// GetByCycle retrieves all matchups of a cycle, ordered by created_at ASC.
func (s *MatchupStore) GetByCycle(ctx context.Context, cycle int64) ([]*domain.Matchup, error) {
	query := `
		SELECT ` + matchupColumns + `
		FROM matchups
		WHERE cycle = $1
		ORDER BY created_at ASC, matchup_id ASC
	`

	rows, err := s.pool.Query(ctx, query, cycle)
	if err != nil {
		return nil, fmt.Errorf("get matchups by cycle: %w", err)
	}
	defer rows.Close()

	return scanMatchups(rows)
}

// GetByPattern retrieves all matchups a pattern took part in, ordered by created_at ASC.
func (s *MatchupStore) GetByPattern(ctx context.Context, patternID string) ([]*domain.Matchup, error) {
	query := `
		SELECT ` + matchupColumns + `
		FROM matchups
		WHERE pattern_a = $1 OR pattern_b = $1
		ORDER BY created_at ASC, matchup_id ASC
	`

	rows, err := s.pool.Query(ctx, query, patternID)
	if err != nil {
		return nil, fmt.Errorf("get matchups by pattern: %w", err)
	}
	defer rows.Close()

	return scanMatchups(rows)
}

// Count returns the total number of recorded matchups.
func (s *MatchupStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM matchups`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count matchups: %w", err)
	}
	return n, nil
}

// scanMatchup scans a single row into a Matchup.
func scanMatchup(row pgx.Row) (*domain.Matchup, error) {
	var m domain.Matchup

	err := row.Scan(
		&m.MatchupID, &m.Cycle, &m.PatternA, &m.PatternB, &m.Timeframe,
		&m.ROIA, &m.ROIB, &m.Bonus, &m.Winner,
		&m.SliceFrom, &m.SliceTo, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// scanMatchups scans multiple rows into a slice of Matchup.
func scanMatchups(rows pgx.Rows) ([]*domain.Matchup, error) {
	var matchups []*domain.Matchup

	for rows.Next() {
		m, err := scanMatchup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan matchup row: %w", err)
		}
		matchups = append(matchups, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matchup rows: %w", err)
	}

	return matchups, nil
}
