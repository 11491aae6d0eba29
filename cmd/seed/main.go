// Package main backfills the candle history with a synthetic random
// walk so the engine can run without a live market feed. One walk per
// timeframe, volatility scaled to the bar length, batched inserts.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/config"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
	chstore "github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/clickhouse"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/memory"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/migrations"
)

const insertChunk = 2000

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Write to an in-memory store and only print counts")
	symbol := flag.String("symbol", "", "Instrument symbol (overrides config)")
	days := flag.Int("days", 30, "Days of history to generate")
	basePrice := flag.Float64("base-price", 50_000, "Starting price of the walk")
	volatility := flag.Float64("volatility", 0.01, "Per-bar volatility at the base timeframe")
	seed := flag.Int64("seed", 0, "Random seed, 0 seeds from the wall clock")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling...\n", sig)
		cancel()
	}()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *symbol == "" {
		*symbol = cfg.Engine.Symbol
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickHouseDSN = *clickhouseDSN
	}
	if *days <= 0 {
		fmt.Fprintln(os.Stderr, "-days must be positive")
		os.Exit(1)
	}

	candles, cleanup, err := openCandleStore(ctx, cfg, *useMemory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening candle store: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	seedVal := *seed
	if seedVal == 0 {
		seedVal = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seedVal))

	now := time.Now().UnixMilli()
	from := now - int64(*days)*24*time.Hour.Milliseconds()

	fmt.Printf("Seeding %d days of %s history (seed %d)...\n", *days, *symbol, seedVal)

	total := 0
	for _, tf := range domain.AllTimeframes() {
		bars := buildWalk(rng, *symbol, tf, from, now, *basePrice, *volatility)
		if err := insertChunked(ctx, candles, bars); err != nil {
			fmt.Fprintf(os.Stderr, "Error inserting %s bars: %v\n", tf, err)
			os.Exit(1)
		}
		fmt.Printf("  %-4s %6d bars\n", tf, len(bars))
		total += len(bars)
	}

	fmt.Printf("Done: %d bars for %s.\n", total, *symbol)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// openCandleStore connects the ClickHouse candle store, or an in-memory
// one for dry runs.
func openCandleStore(ctx context.Context, cfg *config.Config, useMemory bool) (storage.CandleStore, func(), error) {
	if useMemory {
		return memory.NewCandleStore(), func() {}, nil
	}
	if cfg.Storage.ClickHouseDSN == "" {
		return nil, nil, fmt.Errorf("clickhouse dsn is required (or pass -use-memory)")
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare clickhouse: %w", err)
	}
	return chstore.NewCandleStore(conn), func() { conn.Close() }, nil
}

// buildWalk generates one random-walk series for a timeframe. Bar
// volatility scales with the square root of the bar length so the walks
// stay mutually plausible across timeframes.
func buildWalk(rng *rand.Rand, symbol string, tf domain.Timeframe, from, to int64, base, vol float64) []*domain.Candle {
	step := tf.Duration().Milliseconds()
	sigma := vol * math.Sqrt(float64(tf.Duration())/float64(domain.TimeframeM5.Duration()))

	// Align the first bar to the step grid so replays land on the same
	// open times.
	start := from - from%step

	bars := make([]*domain.Candle, 0, int((to-start)/step)+1)
	price := base
	for openTime := start; openTime+step <= to; openTime += step {
		open := price
		move := rng.NormFloat64() * sigma
		close := open * (1 + move)
		if close <= 0 {
			close = open * 0.99
		}

		hi := math.Max(open, close)
		lo := math.Min(open, close)
		wick := math.Abs(rng.NormFloat64()) * sigma * 0.5

		bars = append(bars, &domain.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  openTime,
			Open:      open,
			High:      hi * (1 + wick),
			Low:       lo * (1 - wick),
			Close:     close,
			Volume:    50 + rng.Float64()*150,
		})
		price = close
	}
	return bars
}

func insertChunked(ctx context.Context, candles storage.CandleStore, bars []*domain.Candle) error {
	for len(bars) > 0 {
		n := insertChunk
		if n > len(bars) {
			n = len(bars)
		}
		if err := candles.InsertBatch(ctx, bars[:n]); err != nil {
			return err
		}
		bars = bars[n:]
	}
	return nil
}
