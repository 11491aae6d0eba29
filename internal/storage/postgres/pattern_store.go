package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// PatternStore implements storage.PatternStore using PostgreSQL.
type PatternStore struct {
	pool *Pool
}

// NewPatternStore creates a new PatternStore.
func NewPatternStore(pool *Pool) *PatternStore {
	return &PatternStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PatternStore = (*PatternStore)(nil)

const patternColumns = `
	pattern_id, name, signature, condition,
	win_rate, sample_size, confidence, rationale,
	upvotes, downvotes, origin,
	runs, last_tested, h2h_wins, h2h_losses, timeframe_returns,
	last_mined_cycle, created_at, updated_at`

// UpsertMined inserts a new pattern or folds mined statistics into the row
// with the same signature. The single statement resolves concurrent miners
// racing on one signature; the watermark guard makes window replays no-ops.
func (s *PatternStore) UpsertMined(ctx context.Context, p *domain.Pattern) (bool, error) {
	if p == nil || p.PatternID == "" || p.Signature == "" {
		return false, storage.ErrInvalidInput
	}
	if err := p.Condition.Validate(); err != nil {
		return false, storage.ErrInvalidInput
	}

	condJSON, err := json.Marshal(p.Condition)
	if err != nil {
		return false, fmt.Errorf("marshal condition: %w", err)
	}
	tfJSON, err := json.Marshal(timeframeReturnsOrEmpty(p.TimeframeReturns))
	if err != nil {
		return false, fmt.Errorf("marshal timeframe returns: %w", err)
	}

	// xmax = 0 only holds for a freshly inserted row version. When the
	// watermark guard rejects the update no row comes back at all.
	query := `
		INSERT INTO patterns (` + patternColumns + `
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19
		)
		ON CONFLICT (signature) DO UPDATE SET
			win_rate = (patterns.win_rate * patterns.sample_size + EXCLUDED.win_rate * EXCLUDED.sample_size)
				/ (patterns.sample_size + EXCLUDED.sample_size),
			sample_size = patterns.sample_size + EXCLUDED.sample_size,
			confidence = EXCLUDED.confidence,
			last_mined_cycle = EXCLUDED.last_mined_cycle,
			updated_at = EXCLUDED.updated_at
		WHERE patterns.last_mined_cycle < EXCLUDED.last_mined_cycle
		RETURNING (xmax = 0)
	`

	var inserted bool
	err = s.pool.QueryRow(ctx, query,
		p.PatternID, p.Name, p.Signature, condJSON,
		p.WinRate, p.SampleSize, p.Confidence, p.Rationale,
		p.Upvotes, p.Downvotes, p.Origin,
		p.Runs, p.LastTested, p.H2HWins, p.H2HLosses, tfJSON,
		p.LastMinedCycle, p.CreatedAt, p.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		if isNotFoundError(err) {
			// Watermark guard fired: the window was already folded in.
			return false, nil
		}
		if isConstraintError(err) {
			return false, storage.ErrInvalidInput
		}
		return false, fmt.Errorf("upsert pattern: %w", err)
	}
	return inserted, nil
}

// GetByID retrieves a pattern by its ID. Returns ErrNotFound if not exists.
func (s *PatternStore) GetByID(ctx context.Context, patternID string) (*domain.Pattern, error) {
	query := `
		SELECT ` + patternColumns + `
		FROM patterns
		WHERE pattern_id = $1
	`

	row := s.pool.QueryRow(ctx, query, patternID)
	p, err := scanPattern(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pattern by id: %w", err)
	}
	return p, nil
}

// GetBySignature retrieves a pattern by its signature. Returns ErrNotFound if not exists.
func (s *PatternStore) GetBySignature(ctx context.Context, signature string) (*domain.Pattern, error) {
	query := `
		SELECT ` + patternColumns + `
		FROM patterns
		WHERE signature = $1
	`

	row := s.pool.QueryRow(ctx, query, signature)
	p, err := scanPattern(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pattern by signature: %w", err)
	}
	return p, nil
}

// ListForSampling retrieves all patterns ordered by last_tested ASC
// (never-tested first), then pattern_id ASC.
func (s *PatternStore) ListForSampling(ctx context.Context) ([]*domain.Pattern, error) {
	query := `
		SELECT ` + patternColumns + `
		FROM patterns
		ORDER BY last_tested ASC NULLS FIRST, pattern_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list patterns for sampling: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// List retrieves all patterns ordered by created_at ASC, pattern_id ASC.
func (s *PatternStore) List(ctx context.Context) ([]*domain.Pattern, error) {
	query := `
		SELECT ` + patternColumns + `
		FROM patterns
		ORDER BY created_at ASC, pattern_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// Vote atomically increments the up or down vote counter.
func (s *PatternStore) Vote(ctx context.Context, patternID string, dir domain.VoteDirection) error {
	var column string
	switch dir {
	case domain.VoteUp:
		column = "upvotes"
	case domain.VoteDown:
		column = "downvotes"
	default:
		return storage.ErrInvalidInput
	}

	query := fmt.Sprintf(`
		UPDATE patterns
		SET %s = %s + 1, updated_at = $2
		WHERE pattern_id = $1
	`, column, column)

	tag, err := s.pool.Exec(ctx, query, patternID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("vote on pattern: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Count returns the total number of patterns.
func (s *PatternStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patterns`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count patterns: %w", err)
	}
	return n, nil
}

func timeframeReturnsOrEmpty(m map[domain.Timeframe]float64) map[domain.Timeframe]float64 {
	if m == nil {
		return map[domain.Timeframe]float64{}
	}
	return m
}

// scanPattern scans a single row into a Pattern.
func scanPattern(row pgx.Row) (*domain.Pattern, error) {
	var (
		p        domain.Pattern
		condJSON []byte
		tfJSON   []byte
	)

	err := row.Scan(
		&p.PatternID, &p.Name, &p.Signature, &condJSON,
		&p.WinRate, &p.SampleSize, &p.Confidence, &p.Rationale,
		&p.Upvotes, &p.Downvotes, &p.Origin,
		&p.Runs, &p.LastTested, &p.H2HWins, &p.H2HLosses, &tfJSON,
		&p.LastMinedCycle, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(condJSON, &p.Condition); err != nil {
		return nil, fmt.Errorf("unmarshal condition: %w", err)
	}
	if err := json.Unmarshal(tfJSON, &p.TimeframeReturns); err != nil {
		return nil, fmt.Errorf("unmarshal timeframe returns: %w", err)
	}

	return &p, nil
}

// scanPatterns scans multiple rows into a slice of Pattern.
func scanPatterns(rows pgx.Rows) ([]*domain.Pattern, error) {
	var patterns []*domain.Pattern

	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pattern row: %w", err)
		}
		patterns = append(patterns, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pattern rows: %w", err)
	}

	return patterns, nil
}
