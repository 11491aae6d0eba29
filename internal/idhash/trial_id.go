package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTrialID computes a deterministic trial_id using SHA256.
// Formula: SHA256(cycle|seq|symbol)
// Returns hex-encoded hash (64 characters). A replayed cycle batch
// produces the same ids, so a retry collides on the primary key instead
// of duplicating trials.
func ComputeTrialID(cycle int64, seq int, symbol string) string {
	data := fmt.Sprintf("%d|%d|%s", cycle, seq, symbol)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
