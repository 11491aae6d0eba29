package generator

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
	// entryJitterFrac bounds the random offset of the entry fill
	// around the snapshot price.
	entryJitterFrac = 0.001

	// momentumCarryFrac is the share of observed momentum carried into
	// the synthetic exit move.
	momentumCarryFrac = 0.1

	// floorVolatilityFrac keeps exits dispersed when the snapshot
	// reports near-zero volatility.
	floorVolatilityFrac = 0.001

	// maxLossFrac bounds a synthetic move so exits stay positive.
	maxLossFrac = -0.95

	// defaultHoldHorizon is the synthetic holding period when none is
	// configured.
	defaultHoldHorizon = 5 * time.Minute
)

// rationales is the fixed justification template set. The chosen string
// is a mining feature only and carries no signal.
var rationales = []string{
	"momentum continuation entry",
	"mean reversion fade",
	"volume spike follow-through",
	"volatility breakout bet",
	"moving average pullback",
	"random exploration probe",
}

// Generator produces one batch of randomized trials per cycle against a
// market snapshot. Not safe for concurrent use; each invocation runs a
// single generator.
type Generator struct {
	trials    storage.TrialStore
	snapshots market.SnapshotProvider
	symbol    string
	budget    int
	hold      time.Duration
	rng       *rand.Rand
	logger    zerolog.Logger
}

// Options contains configuration for creating a Generator.
type Options struct {
	Trials    storage.TrialStore
	Snapshots market.SnapshotProvider

	// Symbol is the instrument trials are generated against.
	Symbol string

	// TrialBudget is the batch size per cycle. Zero or negative makes
	// every run a no-op.
	TrialBudget int

	// HoldHorizon is the synthetic holding period. Zero selects
	// defaultHoldHorizon.
	HoldHorizon time.Duration

	// Seed fixes the random stream for reproducible batches. Zero
	// seeds from the wall clock.
	Seed int64

	Logger zerolog.Logger
}

// New creates a trial generator.
func New(opts Options) *Generator {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	hold := opts.HoldHorizon
	if hold <= 0 {
		hold = defaultHoldHorizon
	}
	return &Generator{
		trials:    opts.Trials,
		snapshots: opts.Snapshots,
		symbol:    opts.Symbol,
		budget:    opts.TrialBudget,
		hold:      hold,
		rng:       rand.New(rand.NewSource(seed)),
		logger:    opts.Logger,
	}
}

// Result contains counts from one generator run.
type Result struct {
	TrialsGenerated int

	// Replayed is set when the cycle's batch was already persisted by
	// an earlier invocation.
	Replayed bool
}

// Run generates one trial batch for the given cycle.
// Steps:
//  1. Zero budget short-circuits as a successful no-op
//  2. Fetch the current market snapshot
//  3. Build the randomized batch with deterministic trial IDs
//  4. Append the batch atomically; a duplicate key means a replayed
//     cycle and the batch is treated as already generated
func (g *Generator) Run(ctx context.Context, cycle int64) (*Result, error) {
	if g.budget <= 0 {
		return &Result{}, nil
	}

	snap, err := g.snapshots.Snapshot(ctx, g.symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	now := time.Now().UnixMilli()
	trials := make([]*domain.Trial, g.budget)
	for seq := range trials {
		trials[seq] = g.buildTrial(cycle, seq, snap, now)
	}

	if err := g.trials.InsertBatch(ctx, trials); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			g.logger.Info().
				Int64("cycle", cycle).
				Str("symbol", g.symbol).
				Msg("trial batch already persisted, treating cycle as generated")
			return &Result{Replayed: true}, nil
		}
		return nil, fmt.Errorf("append trial batch: %w", err)
	}

	g.logger.Debug().
		Int64("cycle", cycle).
		Int("trials", g.budget).
		Msg("trial batch appended")

	return &Result{TrialsGenerated: g.budget}, nil
}

// buildTrial draws one randomized trial against the snapshot.
// The entry jitters around the snapshot price; the exit is a
// volatility-scaled Gaussian move with a small momentum drift over a
// fixed synthetic holding horizon.
func (g *Generator) buildTrial(cycle int64, seq int, snap *domain.MarketSnapshot, now int64) *domain.Trial {
	side := domain.SideLong
	if g.rng.Intn(2) == 1 {
		side = domain.SideShort
	}

	entry := snap.Price * (1 + (g.rng.Float64()*2-1)*entryJitterFrac)

	volFrac := snap.VolatilityPct / 100
	if volFrac < floorVolatilityFrac {
		volFrac = floorVolatilityFrac
	}
	move := snap.MomentumPct/100*momentumCarryFrac + g.rng.NormFloat64()*volFrac
	if move < maxLossFrac {
		move = maxLossFrac
	}
	exit := entry * (1 + move)

	pnl := (exit - entry) / entry * 100
	if side == domain.SideShort {
		pnl = -pnl
	}

	entryTime := snap.CapturedAt
	return &domain.Trial{
		TrialID:    idhash.ComputeTrialID(cycle, seq, g.symbol),
		Cycle:      cycle,
		Seq:        seq,
		Symbol:     g.symbol,
		Side:       side,
		EntryPrice: entry,
		ExitPrice:  exit,
		EntryTime:  entryTime,
		ExitTime:   entryTime + g.hold.Milliseconds(),
		PnLPct:     pnl,
		Profitable: pnl > 0,
		Rationale:  rationales[g.rng.Intn(len(rationales))],
		Snapshot:   *snap,
		CreatedAt:  now,
	}
}
