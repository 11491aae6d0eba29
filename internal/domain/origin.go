package domain

// Origin represents the provenance of a pattern in the registry.
// Corresponds to the seeded origins table in PostgreSQL.
type Origin string

const (
	OriginChaosMiner Origin = "CHAOS_MINER" // promoted by the statistical miner
	OriginBacktest   Origin = "BACKTEST"    // imported from an offline backtest
	OriginCommittee  Origin = "COMMITTEE"   // proposed by the voting committee
	OriginManual     Origin = "MANUAL"      // operator-entered
)

// String returns the string representation of Origin.
func (o Origin) String() string {
	return string(o)
}

// IsValid checks if the origin is a valid value.
func (o Origin) IsValid() bool {
	switch o {
	case OriginChaosMiner, OriginBacktest, OriginCommittee, OriginManual:
		return true
	}
	return false
}

// AllOrigins returns every registered origin.
func AllOrigins() []Origin {
	return []Origin{OriginChaosMiner, OriginBacktest, OriginCommittee, OriginManual}
}
