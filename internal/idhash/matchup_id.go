package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
)

// ComputeMatchupID computes a deterministic matchup_id using SHA256.
// Formula: SHA256(cycle|timeframe|patternA|patternB) with the pattern ids
// ordered lexicographically first, so the id does not depend on which
// contender was drawn first.
// Returns hex-encoded hash (64 characters).
func ComputeMatchupID(cycle int64, timeframe domain.Timeframe, patternA, patternB string) string {
	if patternB < patternA {
		patternA, patternB = patternB, patternA
	}
	data := fmt.Sprintf("%d|%s|%s|%s", cycle, timeframe, patternA, patternB)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
