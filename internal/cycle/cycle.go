// Package cycle drives the discovery loop state machine.
// One trigger invocation advances it a single cycle:
// GeneratingTrades → MiningPatterns → RunningTournaments → Idle.
package cycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/generator"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/miner"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/sampler"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/tournament"
)

// Stage labels for failure attribution.
const (
	StageClaimingCycle      = "ClaimingCycle"
	StageGeneratingTrades   = "GeneratingTrades"
	StageMiningPatterns     = "MiningPatterns"
	StageRunningTournaments = "RunningTournaments"
)

const (
	// DefaultMineEveryCycles is the mining cadence. It must stay equal
	// to the miner's window so that consecutive mining passes fold
	// disjoint trial windows.
	DefaultMineEveryCycles = miner.DefaultWindowCycles

	// DefaultTournamentEveryCycles is the tournament cadence.
	DefaultTournamentEveryCycles = 10

	// DefaultTournamentsPerCycle is the number of tournament slots per
	// tournament cycle.
	DefaultTournamentsPerCycle = 3
)

// Orchestrator coordinates the discovery loop.
// All resume state lives in the stores; nothing survives in process
// between invocations, and overlapping invocations coordinate through
// the compare-and-swap claim on the cycle counter.
type Orchestrator struct {
	state       storage.CycleStateStore
	generator   *generator.Generator
	miner       *miner.Miner
	sampler     *sampler.Sampler
	tournaments *tournament.Engine

	mineEvery       int64
	tournamentEvery int64
	slots           int

	logger zerolog.Logger
}

// Options contains configuration for creating an Orchestrator.
type Options struct {
	// Required collaborators
	State       storage.CycleStateStore
	Generator   *generator.Generator
	Miner       *miner.Miner
	Sampler     *sampler.Sampler
	Tournaments *tournament.Engine

	// MineEveryCycles is the mining cadence K. Zero selects
	// DefaultMineEveryCycles. Keep it equal to the miner's window;
	// a cadence longer than the window leaves trials unmined, a
	// shorter one re-folds windows that were already mined.
	MineEveryCycles int

	// TournamentEveryCycles is the tournament cadence M. Zero selects
	// DefaultTournamentEveryCycles.
	TournamentEveryCycles int

	// TournamentsPerCycle is the slot count per tournament cycle. Zero
	// selects DefaultTournamentsPerCycle.
	TournamentsPerCycle int

	Logger zerolog.Logger
}

// New creates a cycle orchestrator.
func New(opts Options) *Orchestrator {
	mineEvery := opts.MineEveryCycles
	if mineEvery <= 0 {
		mineEvery = DefaultMineEveryCycles
	}
	tournamentEvery := opts.TournamentEveryCycles
	if tournamentEvery <= 0 {
		tournamentEvery = DefaultTournamentEveryCycles
	}
	slots := opts.TournamentsPerCycle
	if slots <= 0 {
		slots = DefaultTournamentsPerCycle
	}
	return &Orchestrator{
		state:           opts.State,
		generator:       opts.Generator,
		miner:           opts.Miner,
		sampler:         opts.Sampler,
		tournaments:     opts.Tournaments,
		mineEvery:       int64(mineEvery),
		tournamentEvery: int64(tournamentEvery),
		slots:           slots,
		logger:          opts.Logger,
	}
}

// Failure is one non-fatal taxonomy event encountered during a cycle.
type Failure struct {
	Kind      Kind
	Stage     string
	Message   string
	Retryable bool
}

// Report contains the outcome of one cycle invocation.
type Report struct {
	Cycle        int64
	InvocationID string

	TrialsGenerated int

	// Replayed is set when the trial batch was already persisted by an
	// earlier invocation of the same cycle.
	Replayed bool

	Mined             bool
	PatternsPromoted  int
	PatternsRefreshed int
	PromotedPatterns  []string

	TournamentsHeld    bool
	TournamentsRun     int
	TournamentsSkipped int
	Matchups           []string

	Failures []Failure
}

// RunCycle advances the discovery loop by exactly one cycle.
// Steps:
//  1. Claim the next cycle number via compare-and-swap; losing the race
//     means an overlapping invocation owns the cycle and nothing runs
//  2. Generate the cycle's trial batch
//  3. Every MineEveryCycles cycles, mine the recent trial window into
//     the pattern registry
//  4. Every TournamentEveryCycles cycles, fill the tournament slots
//     from sampled pairs, substituting pairs whose history slice is too
//     short
//  5. Write mining/tournament bookkeeping back to the state row
//     best-effort; the claim in step 1 stays the only coordination
//     point
//
// A fatal stage failure returns a *StageError attributing it to
// (cycle, stage, kind); durable state is never left partially written,
// so the next trigger proceeds from the following cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) (*Report, error) {
	invocation := uuid.NewString()
	logger := o.logger.With().Str("invocation_id", invocation).Logger()

	next, err := o.claim(ctx)
	if err != nil {
		stageErr := classify(StageClaimingCycle, next, err)
		if stageErr.Kind == KindCycleConflict {
			logger.Info().
				Int64("cycle", next).
				Msg("cycle already claimed by an overlapping invocation")
		}
		return nil, stageErr
	}
	logger = logger.With().Int64("cycle", next).Logger()
	logger.Debug().Msg("cycle claimed")

	report := &Report{Cycle: next, InvocationID: invocation}

	if err := o.generate(ctx, next, report, logger); err != nil {
		return nil, err
	}

	if next%o.mineEvery == 0 {
		if err := o.mine(ctx, next, report, logger); err != nil {
			return nil, err
		}
	}

	if next%o.tournamentEvery == 0 {
		if err := o.runTournaments(ctx, next, report, logger); err != nil {
			return nil, err
		}
	}

	o.recordBookkeeping(ctx, next, report, logger)

	logger.Info().
		Int("trials", report.TrialsGenerated).
		Int("promoted", report.PatternsPromoted).
		Int("refreshed", report.PatternsRefreshed).
		Int("tournaments", report.TournamentsRun).
		Int("skipped", report.TournamentsSkipped).
		Msg("cycle completed")

	return report, nil
}

// claim advances the durable cycle counter by one. Returns the claimed
// cycle number, or the number it tried to claim alongside the error.
func (o *Orchestrator) claim(ctx context.Context) (int64, error) {
	st, err := o.state.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("read cycle state: %w", err)
	}

	next := st.Cycle + 1
	claimed := *st
	claimed.Cycle = next
	if err := o.state.CompareAndSwap(ctx, st.Version, &claimed); err != nil {
		return next, fmt.Errorf("claim cycle %d: %w", next, err)
	}
	return next, nil
}

func (o *Orchestrator) generate(ctx context.Context, cycle int64, report *Report, logger zerolog.Logger) error {
	res, err := o.generator.Run(ctx, cycle)
	if err != nil {
		return classify(StageGeneratingTrades, cycle, err)
	}
	report.TrialsGenerated = res.TrialsGenerated
	report.Replayed = res.Replayed

	switch {
	case res.Replayed:
		logger.Info().
			Str("kind", string(KindDuplicateCandidateRace)).
			Msg("trial batch already persisted, no duplicate work")
	case res.TrialsGenerated == 0:
		logger.Debug().
			Str("kind", string(KindEmptyBatch)).
			Msg("zero trial budget, stage is a no-op")
	}
	return nil
}

func (o *Orchestrator) mine(ctx context.Context, cycle int64, report *Report, logger zerolog.Logger) error {
	res, err := o.miner.Run(ctx, cycle)
	if err != nil {
		return classify(StageMiningPatterns, cycle, err)
	}
	report.Mined = true
	report.PatternsPromoted = res.PatternsPromoted
	report.PatternsRefreshed = res.PatternsRefreshed
	report.PromotedPatterns = res.PromotedIDs

	logger.Debug().
		Int("scanned", res.TrialsScanned).
		Int("buckets", res.BucketsExamined).
		Int("promoted", res.PatternsPromoted).
		Int("refreshed", res.PatternsRefreshed).
		Msg("mining pass completed")
	return nil
}

// runTournaments fills the configured slot count from freshly sampled
// pairs. A pairing without enough history is skipped and the slot draws
// a substitute; attempts are bounded so a data-starved registry cannot
// spin forever.
func (o *Orchestrator) runTournaments(ctx context.Context, cycle int64, report *Report, logger zerolog.Logger) error {
	report.TournamentsHeld = true

	maxAttempts := 2 * o.slots
	for attempts := 0; report.TournamentsRun < o.slots && attempts < maxAttempts; attempts++ {
		pair, err := o.sampler.Sample(ctx, 2)
		if err != nil {
			return classify(StageRunningTournaments, cycle, fmt.Errorf("sample pairing: %w", err))
		}
		if len(pair) < 2 {
			logger.Info().
				Int("patterns", len(pair)).
				Msg("registry too small for a tournament pairing")
			return nil
		}

		m, err := o.tournaments.RunOne(ctx, cycle, pair[0], pair[1])
		if err != nil {
			if errors.Is(err, tournament.ErrInsufficientData) {
				report.TournamentsSkipped++
				report.Failures = append(report.Failures, Failure{
					Kind:      KindInsufficientData,
					Stage:     StageRunningTournaments,
					Message:   fmt.Sprintf("pairing %s vs %s skipped: %v", pair[0].PatternID, pair[1].PatternID, err),
					Retryable: kindRetryable(KindInsufficientData),
				})
				logger.Info().
					Str("kind", string(KindInsufficientData)).
					Str("pattern_a", pair[0].PatternID).
					Str("pattern_b", pair[1].PatternID).
					Msg("pairing skipped, drawing substitute")
				continue
			}
			return classify(StageRunningTournaments, cycle, err)
		}
		report.TournamentsRun++
		report.Matchups = append(report.Matchups, m.MatchupID)
	}

	if report.TournamentsRun < o.slots {
		logger.Warn().
			Int("run", report.TournamentsRun).
			Int("slots", o.slots).
			Msg("tournament slots unfilled after bounded attempts")
	}
	return nil
}

// recordBookkeeping writes LastMinedCycle/LastTournamentCycle back to
// the state row. The write is informational; a conflict with a later
// invocation is tolerated and never rewinds the counter, so it is
// logged and dropped rather than retried.
func (o *Orchestrator) recordBookkeeping(ctx context.Context, cycle int64, report *Report, logger zerolog.Logger) {
	if !report.Mined && !report.TournamentsHeld {
		return
	}

	st, err := o.state.Get(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("bookkeeping read failed, skipping")
		return
	}

	updated := *st
	if report.Mined && cycle > updated.LastMinedCycle {
		updated.LastMinedCycle = cycle
	}
	if report.TournamentsHeld && cycle > updated.LastTournamentCycle {
		updated.LastTournamentCycle = cycle
	}
	if updated == *st {
		return
	}

	if err := o.state.CompareAndSwap(ctx, st.Version, &updated); err != nil {
		logger.Debug().Err(err).Msg("bookkeeping write lost a race, dropping")
	}
}
