// Package main runs the unified discovery service:
// - Cycle scheduler (periodic): trial generation → mining → tournaments
// - HTTP API: manual trigger, status, pattern votes, websocket event feed
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/api"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/config"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/cycle"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/generator"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/market"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/metrics"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/miner"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/sampler"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
	chstore "github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/clickhouse"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/memory"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/migrations"
	pgstore "github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/postgres"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/tournament"
)

// Server holds the running components of the discovery service.
type Server struct {
	cfg    *config.Config
	api    *api.Server
	logger zerolog.Logger
}

// allStores holds the storage implementations behind the engine.
type allStores struct {
	trials   storage.TrialStore
	patterns storage.PatternStore
	matchups storage.MatchupStore
	state    storage.CycleStateStore
	candles  storage.CandleStore
}

func main() {
	loadEnvFile()

	configPath := flag.String("config", "", "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	interval := flag.Duration("cycle-interval", 0, "Cycle trigger interval (overrides config)")
	flag.Parse()

	logger := newLogger("info")

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
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
	if *addr != "" {
		cfg.Web.Addr = *addr
	}
	if *interval > 0 {
		cfg.Engine.Interval = interval.String()
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger = newLogger(cfg.LogLevel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	apiServer, err := buildAPIServer(cfg, stores, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build components")
	}

	server := &Server{
		cfg:    cfg,
		api:    apiServer,
		logger: logger,
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(cfg.Web.Addr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("server error")
	}

	logger.Info().Msg("shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().
		Timestamp().
		Str("service", "coinswarm").
		Logger()
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg *config.Config) (*allStores, func(), error) {
	if cfg.Storage.UseMemory {
		patterns := memory.NewPatternStore()
		stores := &allStores{
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

	stores := &allStores{
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

// buildAPIServer wires the engine components behind the HTTP surface.
func buildAPIServer(cfg *config.Config, stores *allStores, logger zerolog.Logger) (*api.Server, error) {
	provider := market.NewCandleProvider(stores.candles, cfg.SnapshotTimeframe(), cfg.SnapshotLookback())

	gen := generator.New(generator.Options{
		Trials:      stores.trials,
		Snapshots:   provider,
		Symbol:      cfg.Engine.Symbol,
		TrialBudget: cfg.Generator.TrialBudget,
		HoldHorizon: cfg.HoldHorizon(),
		Seed:        cfg.Generator.Seed,
		Logger:      logger.With().Str("component", "generator").Logger(),
	})

	mnr, err := miner.New(miner.Options{
		Trials:        stores.trials,
		Patterns:      stores.patterns,
		WindowCycles:  int64(cfg.Miner.WindowCycles),
		MinSampleSize: cfg.Miner.MinSampleSize,
		PValueMax:     cfg.Miner.PValueMax,
		Logger:        logger.With().Str("component", "miner").Logger(),
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
		Logger:          logger.With().Str("component", "tournament").Logger(),
	})

	orch := cycle.New(cycle.Options{
		State:                 stores.state,
		Generator:             gen,
		Miner:                 mnr,
		Sampler:               sampler.New(stores.patterns, cfg.Sampler.Seed),
		Tournaments:           eng,
		MineEveryCycles:       cfg.Engine.MineEveryCycles,
		TournamentEveryCycles: cfg.Engine.TournamentEveryCycles,
		TournamentsPerCycle:   cfg.Engine.TournamentsPerCycle,
		Logger:                logger.With().Str("component", "cycle").Logger(),
	})

	return api.NewServer(api.Options{
		Orchestrator: orch,
		Aggregator:   metrics.NewAggregator(stores.trials, stores.patterns, stores.matchups, stores.state),
		Patterns:     stores.patterns,
		Logger:       logger.With().Str("component", "api").Logger(),
	}), nil
}

// Run drives the cycle scheduler until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().
		Str("symbol", s.cfg.Engine.Symbol).
		Str("interval", s.cfg.Engine.Interval).
		Msg("starting cycle scheduler")

	// Run immediately on start.
	s.runCycle(ctx)

	ticker := time.NewTicker(s.cfg.EngineInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle triggers one cycle. A lost claim means another invocation owns
// the cycle and is skipped without noise.
func (s *Server) runCycle(ctx context.Context) {
	report, err := s.api.TriggerCycle(ctx)
	if err != nil {
		var stageErr *cycle.StageError
		if errors.As(err, &stageErr) && stageErr.Kind == cycle.KindCycleConflict {
			s.logger.Info().Msg("cycle already claimed by another invocation, skipping")
			return
		}
		s.logger.Error().Err(err).Msg("cycle failed")
		return
	}

	s.logger.Info().
		Int64("cycle", report.Cycle).
		Int("trials", report.TrialsGenerated).
		Bool("mined", report.Mined).
		Int("tournaments", report.TournamentsRun).
		Msg("scheduled cycle completed")
}

// startHTTPServer serves the API until the process exits.
func (s *Server) startHTTPServer(addr string) {
	s.logger.Info().Str("addr", addr).Msg("starting HTTP server")
	if err := http.ListenAndServe(addr, s.api.Router()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error().Err(err).Msg("HTTP server error")
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
