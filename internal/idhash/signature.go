package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
)

// ComputeSignature computes the deterministic identity of a condition.
// Formula: SHA256(canonical condition string)
// Returns hex-encoded hash (64 characters). Clause order does not matter:
// the canonical form sorts clauses before hashing.
func ComputeSignature(cond domain.Condition) string {
	hash := sha256.Sum256([]byte(cond.Canonical()))
	return hex.EncodeToString(hash[:])
}

// ComputePatternID derives the short public pattern id from a signature.
// Formula: base58(first 20 bytes of the signature hash)
// Returns an error for a malformed signature.
func ComputePatternID(signature string) (string, error) {
	raw, err := hex.DecodeString(signature)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(raw) < 20 {
		return "", fmt.Errorf("signature too short: %d bytes", len(raw))
	}
	return base58.Encode(raw[:20]), nil
}
