package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
// The candles table is a ReplacingMergeTree keyed on
// (symbol, timeframe, open_time); replayed bars collapse on merge and
// reads go through FINAL so unmerged duplicates never surface.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBatch adds multiple candles. Replayed bars are collapsed by the engine.
func (s *CandleStore) InsertBatch(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	for _, c := range candles {
		if c == nil || c.Symbol == "" || !c.Timeframe.IsValid() {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, timeframe, open_time, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Symbol, string(c.Timeframe), uint64(c.OpenTime),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRange retrieves candles with open_time in [from, to], ordered by open_time ASC.
func (s *CandleStore) GetRange(ctx context.Context, symbol string, tf domain.Timeframe, from, to int64) ([]*domain.Candle, error) {
	query := `
		SELECT symbol, timeframe, open_time, open, high, low, close, volume
		FROM candles FINAL
		WHERE symbol = ? AND timeframe = ? AND open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, string(tf), uint64(from), uint64(to))
	if err != nil {
		return nil, fmt.Errorf("query candle range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetLatest retrieves the most recent limit candles, ordered by open_time ASC.
func (s *CandleStore) GetLatest(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]*domain.Candle, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT symbol, timeframe, open_time, open, high, low, close, volume
		FROM candles FINAL
		WHERE symbol = ? AND timeframe = ?
		ORDER BY open_time DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, symbol, string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("query latest candles: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}

	// Flip the DESC read back to chronological order.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// Count returns the number of candles stored for a symbol and timeframe.
func (s *CandleStore) Count(ctx context.Context, symbol string, tf domain.Timeframe) (int64, error) {
	query := `
		SELECT count() FROM candles FINAL
		WHERE symbol = ? AND timeframe = ?
	`

	var n uint64
	if err := s.conn.QueryRow(ctx, query, symbol, string(tf)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count candles: %w", err)
	}
	return int64(n), nil
}

// scanCandles scans rows into a slice of Candle.
func scanCandles(rows driver.Rows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var (
			c        domain.Candle
			tf       string
			openTime uint64
		)
		err := rows.Scan(
			&c.Symbol, &tf, &openTime,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}
		c.Timeframe = domain.Timeframe(tf)
		c.OpenTime = int64(openTime)
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
