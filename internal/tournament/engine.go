package tournament

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/idhash"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/market"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

const (
	// DefaultSliceCandles is the history window requested per matchup.
	DefaultSliceCandles = 64

	// DefaultMinSliceCandles is the shortest slice a matchup runs on.
	DefaultMinSliceCandles = 24

	// DefaultLookback is the trailing feature window inside the slice.
	DefaultLookback = 20
)

// Engine runs head-to-head tournaments: both patterns are backtested
// over the identical history slice and the result is applied to the
// registry in one transaction. Not safe for concurrent use; each
// invocation runs a single engine.
type Engine struct {
	matchups   storage.MatchupStore
	history    market.HistoryProvider
	symbol     string
	slice      int
	minSlice   int
	lookback   int
	timeframes []domain.Timeframe
	bonuses    map[domain.Timeframe]float64
	rng        *rand.Rand
	logger     zerolog.Logger
}

// Options contains configuration for creating an Engine.
type Options struct {
	Matchups storage.MatchupStore
	History  market.HistoryProvider

	// Symbol is the instrument tournaments are backtested on.
	Symbol string

	// SliceCandles is the history window requested per matchup. Zero
	// or negative selects DefaultSliceCandles.
	SliceCandles int

	// MinSliceCandles is the shortest usable slice. Zero or negative
	// selects DefaultMinSliceCandles.
	MinSliceCandles int

	// Lookback is the feature window inside the slice. Zero or
	// negative selects DefaultLookback.
	Lookback int

	// Timeframes is the draw set. Nil selects domain.AllTimeframes.
	Timeframes []domain.Timeframe

	// Bonuses maps each timeframe to its return multiplier. Nil
	// selects DefaultBonuses.
	Bonuses map[domain.Timeframe]float64

	// Seed fixes the timeframe draw stream. Zero seeds from the wall
	// clock.
	Seed int64

	Logger zerolog.Logger
}

// New creates a tournament engine.
func New(opts Options) *Engine {
	slice := opts.SliceCandles
	if slice <= 0 {
		slice = DefaultSliceCandles
	}
	minSlice := opts.MinSliceCandles
	if minSlice <= 0 {
		minSlice = DefaultMinSliceCandles
	}
	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	timeframes := opts.Timeframes
	if timeframes == nil {
		timeframes = domain.AllTimeframes()
	}
	bonuses := opts.Bonuses
	if bonuses == nil {
		bonuses = DefaultBonuses()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{
		matchups:   opts.Matchups,
		history:    opts.History,
		symbol:     opts.Symbol,
		slice:      slice,
		minSlice:   minSlice,
		lookback:   lookback,
		timeframes: timeframes,
		bonuses:    bonuses,
		rng:        rand.New(rand.NewSource(seed)),
		logger:     opts.Logger,
	}
}

// RunOne executes a single tournament between two patterns.
// Steps:
//  1. Draw a timeframe and fetch the history slice for it
//  2. Backtest both patterns independently over the identical slice
//  3. Decide the winner on bonus-adjusted ROI, then volatility, then
//     pattern id
//  4. Apply the result atomically: matchup row plus both pattern
//     updates in one transaction; a duplicate matchup means a replay
//     and is skipped silently
//
// Returns ErrInsufficientData when the slice cannot support a matchup;
// nothing is recorded and the caller substitutes a replacement pair.
func (e *Engine) RunOne(ctx context.Context, cycle int64, a, b *domain.Pattern) (*domain.Matchup, error) {
	tf := e.timeframes[e.rng.Intn(len(e.timeframes))]

	to := time.Now().UnixMilli()
	from := to - int64(e.slice)*tf.Duration().Milliseconds()

	bars, err := e.history.Slice(ctx, e.symbol, tf, from, to)
	if err != nil {
		if errors.Is(err, market.ErrInsufficientHistory) {
			return nil, fmt.Errorf("%w: %s %s has no candles in window", ErrInsufficientData, e.symbol, tf)
		}
		return nil, fmt.Errorf("fetch history slice: %w", err)
	}
	if len(bars) < e.minSlice {
		return nil, fmt.Errorf("%w: %s %s slice has %d candles, need %d",
			ErrInsufficientData, e.symbol, tf, len(bars), e.minSlice)
	}

	legA, err := simulateLeg(e.symbol, a.Condition, bars, e.lookback)
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", a.PatternID, err)
	}
	legB, err := simulateLeg(e.symbol, b.Condition, bars, e.lookback)
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", b.PatternID, err)
	}

	bonus := e.bonuses[tf]
	if bonus == 0 {
		bonus = 1
	}
	winner := decideWinner(a.PatternID, b.PatternID, legA, legB, bonus)

	m := &domain.Matchup{
		MatchupID: idhash.ComputeMatchupID(cycle, tf, a.PatternID, b.PatternID),
		Cycle:     cycle,
		PatternA:  a.PatternID,
		PatternB:  b.PatternID,
		Timeframe: tf,
		ROIA:      legA.ROI,
		ROIB:      legB.ROI,
		Bonus:     bonus,
		Winner:    winner,
		SliceFrom: from,
		SliceTo:   to,
		CreatedAt: time.Now().UnixMilli(),
	}

	if err := e.matchups.ApplyResult(ctx, m); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			e.logger.Info().
				Str("matchup_id", m.MatchupID).
				Int64("cycle", cycle).
				Msg("matchup already applied, skipping replay")
			return m, nil
		}
		return nil, fmt.Errorf("apply matchup result: %w", err)
	}

	e.logger.Debug().
		Str("matchup_id", m.MatchupID).
		Str("timeframe", tf.String()).
		Str("winner", winner).
		Float64("roi_a", legA.ROI).
		Float64("roi_b", legB.ROI).
		Int("trades_a", legA.Trades).
		Int("trades_b", legB.Trades).
		Msg("tournament decided")

	return m, nil
}

// decideWinner ranks the two legs: higher bonus-adjusted ROI first,
// lower volatility on a tie, lexicographically smaller pattern id when
// both are equal. The bonus is shared within a matchup, so it never
// flips the ROI comparison; it is recorded for cross-timeframe
// comparability.
func decideWinner(idA, idB string, legA, legB legResult, bonus float64) string {
	adjA := legA.ROI * bonus
	adjB := legB.ROI * bonus
	switch {
	case adjA > adjB:
		return idA
	case adjB > adjA:
		return idB
	case legA.Volatility < legB.Volatility:
		return idA
	case legB.Volatility < legA.Volatility:
		return idB
	case idA < idB:
		return idA
	default:
		return idB
	}
}
