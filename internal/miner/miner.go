package miner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/idhash"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

const (
	// DefaultWindowCycles bounds the recent trial window a mining pass
	// scans, keeping per-invocation cost flat as history grows. It
	// matches the default mining cadence so consecutive passes fold
	// disjoint windows into the registry.
	DefaultWindowCycles = 5

	// DefaultMinSampleSize is the smallest bucket eligible for promotion.
	DefaultMinSampleSize = 20

	// DefaultPValueMax is the one-sided binomial significance level a
	// bucket must beat to be promoted.
	DefaultPValueMax = 0.05
)

// Miner scans a bounded window of recent trials, buckets them by
// discretized snapshot features, and promotes statistically winning
// buckets into the pattern registry.
type Miner struct {
	trials   storage.TrialStore
	patterns storage.PatternStore
	schemes  []TierScheme
	window   int64
	minSize  int
	pMax     float64
	logger   zerolog.Logger
}

// Options contains configuration for creating a Miner.
type Options struct {
	Trials   storage.TrialStore
	Patterns storage.PatternStore

	// Schemes discretize snapshot features into buckets. Nil selects
	// DefaultSchemes.
	Schemes []TierScheme

	// WindowCycles is how many recent cycles a pass scans. Zero or
	// negative selects DefaultWindowCycles. Must not exceed the mining
	// cadence: the registry watermark blocks replayed passes, not
	// overlapping windows from later cycles.
	WindowCycles int64

	// MinSampleSize gates promotion on bucket population. Zero or
	// negative selects DefaultMinSampleSize.
	MinSampleSize int

	// PValueMax gates promotion on binomial significance. Zero or
	// negative selects DefaultPValueMax.
	PValueMax float64

	Logger zerolog.Logger
}

// New creates a pattern miner.
func New(opts Options) (*Miner, error) {
	schemes := opts.Schemes
	if len(schemes) == 0 {
		schemes = DefaultSchemes()
	}
	for _, s := range schemes {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("tier scheme: %w", err)
		}
	}
	window := opts.WindowCycles
	if window <= 0 {
		window = DefaultWindowCycles
	}
	minSize := opts.MinSampleSize
	if minSize <= 0 {
		minSize = DefaultMinSampleSize
	}
	pMax := opts.PValueMax
	if pMax <= 0 {
		pMax = DefaultPValueMax
	}
	return &Miner{
		trials:   opts.Trials,
		patterns: opts.Patterns,
		schemes:  schemes,
		window:   window,
		minSize:  minSize,
		pMax:     pMax,
		logger:   opts.Logger,
	}, nil
}

// Result contains counts from one mining pass.
type Result struct {
	TrialsScanned     int
	BucketsExamined   int
	PatternsPromoted  int
	PatternsRefreshed int

	// PromotedIDs holds the pattern IDs inserted by this pass, in
	// promotion order.
	PromotedIDs []string
}

// bucket accumulates trial outcomes for one tier combination.
type bucket struct {
	tiers []int
	wins  int
	total int
}

// Run executes one mining pass as of the given cycle.
// Steps:
//  1. Load trials from the bounded recent window
//  2. Bucket them by discretized snapshot features
//  3. Promote buckets that clear the sample and significance gates via
//     an atomic signature-keyed upsert; the registry watermark makes a
//     replayed pass a no-op
func (m *Miner) Run(ctx context.Context, cycle int64) (*Result, error) {
	from := cycle - m.window + 1
	if from < 0 {
		from = 0
	}
	trials, err := m.trials.GetByCycleRange(ctx, from, cycle)
	if err != nil {
		return nil, fmt.Errorf("load trial window: %w", err)
	}

	buckets := m.bucketTrials(trials)
	result := &Result{
		TrialsScanned:   len(trials),
		BucketsExamined: len(buckets),
	}

	// Deterministic promotion order.
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now().UnixMilli()
	for _, k := range keys {
		b := buckets[k]
		if b.total < m.minSize {
			continue
		}
		winRate := float64(b.wins) / float64(b.total)
		if winRate <= 0.5 {
			continue
		}
		pValue := binomialPValue(b.wins, b.total)
		if pValue >= m.pMax {
			continue
		}

		pattern, err := m.buildPattern(b, winRate, pValue, cycle, from, now)
		if err != nil {
			return result, err
		}
		inserted, err := m.patterns.UpsertMined(ctx, pattern)
		if err != nil {
			return result, fmt.Errorf("promote pattern %s: %w", pattern.Name, err)
		}
		if inserted {
			result.PatternsPromoted++
			result.PromotedIDs = append(result.PromotedIDs, pattern.PatternID)
			m.logger.Info().
				Str("pattern_id", pattern.PatternID).
				Str("name", pattern.Name).
				Float64("win_rate", winRate).
				Int("sample_size", b.total).
				Float64("p_value", pValue).
				Msg("pattern promoted")
		} else {
			result.PatternsRefreshed++
		}
	}

	m.logger.Debug().
		Int64("cycle", cycle).
		Int("trials", result.TrialsScanned).
		Int("buckets", result.BucketsExamined).
		Int("promoted", result.PatternsPromoted).
		Int("refreshed", result.PatternsRefreshed).
		Msg("mining pass complete")

	return result, nil
}

// bucketTrials aggregates win counts per tier combination.
func (m *Miner) bucketTrials(trials []*domain.Trial) map[string]*bucket {
	buckets := make(map[string]*bucket)
	for _, t := range trials {
		features := t.Snapshot.Features()
		tiers := make([]int, len(m.schemes))
		for i, s := range m.schemes {
			v, ok := features.Value(s.Feature)
			if !ok {
				tiers = nil
				break
			}
			tiers[i] = s.TierOf(v)
		}
		if tiers == nil {
			continue
		}
		key := bucketKey(tiers)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{tiers: tiers}
			buckets[key] = b
		}
		b.total++
		if t.Profitable {
			b.wins++
		}
	}
	return buckets
}

// buildPattern assembles the registry record for a promoted bucket.
func (m *Miner) buildPattern(b *bucket, winRate, pValue float64, cycle, from int64, now int64) (*domain.Pattern, error) {
	cond := bucketCondition(m.schemes, b.tiers)
	signature := idhash.ComputeSignature(cond)
	id, err := idhash.ComputePatternID(signature)
	if err != nil {
		return nil, fmt.Errorf("derive pattern id: %w", err)
	}
	return &domain.Pattern{
		PatternID:  id,
		Name:       bucketName(m.schemes, b.tiers),
		Signature:  signature,
		Condition:  cond,
		WinRate:    winRate,
		SampleSize: b.total,
		Confidence: 1 - pValue,
		Rationale: fmt.Sprintf("mined from %d trials over cycles %d-%d at %.1f%% win rate",
			b.total, from, cycle, winRate*100),
		Origin:         domain.OriginChaosMiner,
		LastMinedCycle: cycle,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
