package miner

import "gonum.org/v1/gonum/stat/distuv"

// binomialPValue returns the one-sided p-value for observing at least
// wins successes in n fair coin flips, i.e. P(X >= wins | n, 0.5).
// This is the probability that a no-edge bucket produces a win count
// this extreme by chance.
func binomialPValue(wins, n int) float64 {
	if n <= 0 {
		return 1
	}
	if wins <= 0 {
		return 1
	}
	dist := distuv.Binomial{N: float64(n), P: 0.5}
	// Survival(x) = P(X > x); with integer support P(X >= wins) = P(X > wins-1).
	return dist.Survival(float64(wins - 1))
}
