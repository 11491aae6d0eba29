// Package main provides a one-shot cycle trigger: claim the next cycle,
// run its stages, print the report, exit. A lost claim race exits
// cleanly, so the binary is safe to run from cron next to a live server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/config"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/cycle"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/generator"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/market"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/miner"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/sampler"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
	chstore "github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/clickhouse"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/memory"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/migrations"
	pgstore "github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/postgres"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/tournament"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	cycles := flag.Int("cycles", 1, "Number of consecutive cycles to run")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
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
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickHouseDSN = *clickhouseDSN
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating stores: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	orch, err := buildOrchestrator(cfg, stores, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building components: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *cycles; i++ {
		report, err := orch.RunCycle(ctx)
		if err != nil {
			var stageErr *cycle.StageError
			if errors.As(err, &stageErr) && stageErr.Kind == cycle.KindCycleConflict {
				fmt.Println("Cycle already claimed by another invocation, nothing to do.")
				return
			}
			fmt.Fprintf(os.Stderr, "Cycle error: %v\n", err)
			os.Exit(1)
		}
		printReport(report)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func printReport(report *cycle.Report) {
	fmt.Printf("Cycle %d completed (invocation %s):\n", report.Cycle, report.InvocationID)
	fmt.Printf("  Trials generated: %d\n", report.TrialsGenerated)
	if report.Replayed {
		fmt.Println("  Trial batch was already persisted (replayed cycle)")
	}
	if report.Mined {
		fmt.Printf("  Patterns promoted: %d, refreshed: %d\n",
			report.PatternsPromoted, report.PatternsRefreshed)
	}
	if report.TournamentsHeld {
		fmt.Printf("  Tournaments run: %d, skipped: %d\n",
			report.TournamentsRun, report.TournamentsSkipped)
		for _, id := range report.Matchups {
			fmt.Printf("    - %s\n", id)
		}
	}
	if len(report.Failures) > 0 {
		fmt.Printf("  Failures: %d\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Printf("    - [%s] %s: %s\n", f.Kind, f.Stage, f.Message)
		}
	}
}

// engineStores holds the storage implementations behind the engine.
type engineStores struct {
	trials   storage.TrialStore
	patterns storage.PatternStore
	matchups storage.MatchupStore
	state    storage.CycleStateStore
	candles  storage.CandleStore
}

func createStores(ctx context.Context, cfg *config.Config) (*engineStores, func(), error) {
	if cfg.Storage.UseMemory {
		patterns := memory.NewPatternStore()
		stores := &engineStores{
			trials:   memory.NewTrialStore(),
			patterns: patterns,
			matchups: memory.NewMatchupStore(patterns),
			state:    memory.NewCycleStateStore(),
			candles:  memory.NewCandleStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("prepare clickhouse: %w", err)
	}

	stores := &engineStores{
		trials:   pgstore.NewTrialStore(pool),
		patterns: pgstore.NewPatternStore(pool),
		matchups: pgstore.NewMatchupStore(pool),
		state:    pgstore.NewCycleStateStore(pool),
		candles:  chstore.NewCandleStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

func buildOrchestrator(cfg *config.Config, stores *engineStores, logger zerolog.Logger) (*cycle.Orchestrator, error) {
	provider := market.NewCandleProvider(stores.candles, cfg.SnapshotTimeframe(), cfg.SnapshotLookback())

	gen := generator.New(generator.Options{
		Trials:      stores.trials,
		Snapshots:   provider,
		Symbol:      cfg.Engine.Symbol,
		TrialBudget: cfg.Generator.TrialBudget,
		HoldHorizon: cfg.HoldHorizon(),
		Seed:        cfg.Generator.Seed,
		Logger:      logger,
	})

	mnr, err := miner.New(miner.Options{
		Trials:        stores.trials,
		Patterns:      stores.patterns,
		WindowCycles:  int64(cfg.Miner.WindowCycles),
		MinSampleSize: cfg.Miner.MinSampleSize,
		PValueMax:     cfg.Miner.PValueMax,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create miner: %w", err)
	}

	eng := tournament.New(tournament.Options{
		Matchups:        stores.matchups,
		History:         provider,
		Symbol:          cfg.Engine.Symbol,
		SliceCandles:    cfg.Tournament.SliceCandles,
		MinSliceCandles: cfg.Tournament.MinSliceCandles,
		Lookback:        cfg.Tournament.Lookback,
		Timeframes:      cfg.TournamentTimeframes(),
		Bonuses:         cfg.TournamentBonuses(),
		Seed:            cfg.Tournament.Seed,
		Logger:          logger,
	})

	return cycle.New(cycle.Options{
		State:                 stores.state,
		Generator:             gen,
		Miner:                 mnr,
		Sampler:               sampler.New(stores.patterns, cfg.Sampler.Seed),
		Tournaments:           eng,
		MineEveryCycles:       cfg.Engine.MineEveryCycles,
		TournamentEveryCycles: cfg.Engine.TournamentEveryCycles,
		TournamentsPerCycle:   cfg.Engine.TournamentsPerCycle,
		Logger:                logger,
	}), nil
}
