package sampler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// Sampler selects patterns for tournament slots, balancing exploration
// of rarely-tested patterns against exploitation of well-voted ones.
// Not safe for concurrent use; each invocation runs a single sampler.
type Sampler struct {
	patterns storage.PatternStore
	rng      *rand.Rand
}

// New creates a weighted sampler. A zero seed seeds from the wall
// clock; tests pass a fixed seed for reproducible draws.
func New(patterns storage.PatternStore, seed int64) *Sampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sampler{
		patterns: patterns,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Sample returns up to n distinct patterns drawn without replacement,
// proportionally to weight. An empty registry yields an empty result.
// Candidates are walked in registry sampling order (least recently
// tested first), so boundary draws resolve toward rarely-tested
// patterns and a fixed seed reproduces the selection exactly.
func (s *Sampler) Sample(ctx context.Context, n int) ([]*domain.Pattern, error) {
	if n <= 0 {
		return nil, nil
	}
	candidates, err := s.patterns.ListForSampling(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sampling candidates: %w", err)
	}
	return s.draw(candidates, n), nil
}

// draw runs the without-replacement weighted selection over an already
// ordered candidate list.
func (s *Sampler) draw(candidates []*domain.Pattern, n int) []*domain.Pattern {
	if n > len(candidates) {
		n = len(candidates)
	}
	pool := make([]*domain.Pattern, len(candidates))
	copy(pool, candidates)

	selected := make([]*domain.Pattern, 0, n)
	for len(selected) < n {
		total := 0.0
		for _, p := range pool {
			total += weight(p)
		}

		x := s.rng.Float64() * total
		// Rounding can push the walk past every interval; the last
		// candidate absorbs that edge.
		idx := len(pool) - 1
		cum := 0.0
		for i, p := range pool {
			cum += weight(p)
			if x < cum {
				idx = i
				break
			}
		}

		selected = append(selected, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return selected
}

// weight scores a pattern for selection: more net votes raise it, more
// completed runs lower it. Every pattern keeps a positive floor so none
// starves.
func weight(p *domain.Pattern) float64 {
	return float64(p.NetVotes()+1) / float64(p.Runs+1)
}
