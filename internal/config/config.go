// Package config loads and validates the engine configuration from a
// YAML file. Every knob has a default; an empty file is a valid
// configuration for in-memory operation.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/cycle"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/market"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/metrics"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/miner"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/tournament"
)

type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Miner      MinerConfig      `yaml:"miner"`
	Sampler    SamplerConfig    `yaml:"sampler"`
	Tournament TournamentConfig `yaml:"tournament"`
	Storage    StorageConfig    `yaml:"storage"`
	Web        WebConfig        `yaml:"web"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type EngineConfig struct {
	Symbol                string `yaml:"symbol"`
	Interval              string `yaml:"interval"`
	MineEveryCycles       int    `yaml:"mine_every_cycles"`
	TournamentEveryCycles int    `yaml:"tournament_every_cycles"`
	TournamentsPerCycle   int    `yaml:"tournaments_per_cycle"`
}

type GeneratorConfig struct {
	TrialBudget        int   `yaml:"trial_budget"`
	HoldHorizonMinutes int   `yaml:"hold_horizon_minutes"`
	Seed               int64 `yaml:"seed"`
}

type MinerConfig struct {
	WindowCycles  int     `yaml:"window_cycles"`
	MinSampleSize int     `yaml:"min_sample_size"`
	PValueMax     float64 `yaml:"p_value_max"`
}

type SamplerConfig struct {
	Seed int64 `yaml:"seed"`
}

type TournamentConfig struct {
	SliceCandles    int                `yaml:"slice_candles"`
	MinSliceCandles int                `yaml:"min_slice_candles"`
	Lookback        int                `yaml:"lookback"`
	Seed            int64              `yaml:"seed"`
	Bonuses         map[string]float64 `yaml:"bonuses"`
}

type StorageConfig struct {
	UseMemory     bool   `yaml:"use_memory"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

type WebConfig struct {
	Addr            string `yaml:"addr"`
	LeaderboardSize int    `yaml:"leaderboard_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads, defaults, and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from raw YAML.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration an empty file produces.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Engine.Symbol == "" {
		cfg.Engine.Symbol = "BTC-USD"
	}
	if cfg.Engine.Interval == "" {
		cfg.Engine.Interval = "1m"
	}
	if cfg.Engine.MineEveryCycles == 0 {
		cfg.Engine.MineEveryCycles = int(cycle.DefaultMineEveryCycles)
	}
	if cfg.Engine.TournamentEveryCycles == 0 {
		cfg.Engine.TournamentEveryCycles = int(cycle.DefaultTournamentEveryCycles)
	}
	if cfg.Engine.TournamentsPerCycle == 0 {
		cfg.Engine.TournamentsPerCycle = cycle.DefaultTournamentsPerCycle
	}
	if cfg.Generator.TrialBudget == 0 {
		cfg.Generator.TrialBudget = 50
	}
	if cfg.Miner.WindowCycles == 0 {
		cfg.Miner.WindowCycles = int(miner.DefaultWindowCycles)
	}
	if cfg.Miner.MinSampleSize == 0 {
		cfg.Miner.MinSampleSize = miner.DefaultMinSampleSize
	}
	if cfg.Miner.PValueMax == 0 {
		cfg.Miner.PValueMax = miner.DefaultPValueMax
	}
	if cfg.Tournament.SliceCandles == 0 {
		cfg.Tournament.SliceCandles = tournament.DefaultSliceCandles
	}
	if cfg.Tournament.MinSliceCandles == 0 {
		cfg.Tournament.MinSliceCandles = tournament.DefaultMinSliceCandles
	}
	if cfg.Tournament.Lookback == 0 {
		cfg.Tournament.Lookback = tournament.DefaultLookback
	}
	if cfg.Web.Addr == "" {
		cfg.Web.Addr = ":8080"
	}
	if cfg.Web.LeaderboardSize == 0 {
		cfg.Web.LeaderboardSize = metrics.DefaultLeaderboardSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.Engine.Symbol == "" {
		return fmt.Errorf("engine.symbol is required")
	}
	if _, err := time.ParseDuration(c.Engine.Interval); err != nil {
		return fmt.Errorf("invalid engine.interval %q: %w", c.Engine.Interval, err)
	}
	if c.Engine.MineEveryCycles < 0 || c.Engine.TournamentEveryCycles < 0 {
		return fmt.Errorf("engine cadences must be positive")
	}
	if c.Miner.WindowCycles > 0 && c.Engine.MineEveryCycles > 0 &&
		c.Miner.WindowCycles > c.Engine.MineEveryCycles {
		return fmt.Errorf("miner.window_cycles %d exceeds engine.mine_every_cycles %d: passes would double-count trials",
			c.Miner.WindowCycles, c.Engine.MineEveryCycles)
	}
	if c.Miner.PValueMax < 0 || c.Miner.PValueMax > 1 {
		return fmt.Errorf("miner.p_value_max %v out of [0, 1]", c.Miner.PValueMax)
	}
	if c.Tournament.MinSliceCandles > c.Tournament.SliceCandles {
		return fmt.Errorf("tournament.min_slice_candles %d exceeds tournament.slice_candles %d",
			c.Tournament.MinSliceCandles, c.Tournament.SliceCandles)
	}
	for tf := range c.Tournament.Bonuses {
		if !domain.Timeframe(tf).IsValid() {
			return fmt.Errorf("tournament.bonuses: unknown timeframe %q", tf)
		}
	}
	if !c.Storage.UseMemory {
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required (or set storage.use_memory)")
		}
		if c.Storage.ClickHouseDSN == "" {
			return fmt.Errorf("storage.clickhouse_dsn is required (or set storage.use_memory)")
		}
	}
	return nil
}

// EngineInterval returns the scheduler trigger interval.
func (c *Config) EngineInterval() time.Duration {
	d, _ := time.ParseDuration(c.Engine.Interval)
	return d
}

// HoldHorizon returns the generator's synthetic holding period. Zero
// lets the generator pick its own default.
func (c *Config) HoldHorizon() time.Duration {
	return time.Duration(c.Generator.HoldHorizonMinutes) * time.Minute
}

// TournamentTimeframes returns the configured draw set, nil when the
// engine should use its default.
func (c *Config) TournamentTimeframes() []domain.Timeframe {
	if len(c.Tournament.Bonuses) == 0 {
		return nil
	}
	tfs := make([]domain.Timeframe, 0, len(c.Tournament.Bonuses))
	for _, tf := range domain.AllTimeframes() {
		if _, ok := c.Tournament.Bonuses[string(tf)]; ok {
			tfs = append(tfs, tf)
		}
	}
	return tfs
}

// TournamentBonuses returns the configured bonus table, nil when the
// engine should use its default.
func (c *Config) TournamentBonuses() map[domain.Timeframe]float64 {
	if len(c.Tournament.Bonuses) == 0 {
		return nil
	}
	out := make(map[domain.Timeframe]float64, len(c.Tournament.Bonuses))
	for tf, bonus := range c.Tournament.Bonuses {
		out[domain.Timeframe(tf)] = bonus
	}
	return out
}

// SnapshotTimeframe is the base timeframe snapshots are derived from.
func (c *Config) SnapshotTimeframe() domain.Timeframe {
	return domain.TimeframeM5
}

// SnapshotLookback is the candle window behind each snapshot.
func (c *Config) SnapshotLookback() int {
	return market.DefaultSnapshotLookback
}

// LogLevel parses the configured level, defaulting to info.
func (c *Config) LogLevel() string {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return c.Logging.Level
	}
	return "info"
}
