package domain

// Side represents the direction of a simulated trade.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// String returns the string representation of Side.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is a valid value.
func (s Side) IsValid() bool {
	return s == SideLong || s == SideShort
}

// Trial represents one randomized simulated trade produced by the generator.
// Corresponds to trials table in PostgreSQL. Rows are append-only.
type Trial struct {
	TrialID string // PRIMARY KEY, deterministic hash
	Cycle   int64  // discovery cycle that produced the trial
	Seq     int    // position within the cycle batch
	Symbol  string // traded instrument

	// Execution
	Side       Side    // LONG | SHORT
	EntryPrice float64 // fill price at entry
	ExitPrice  float64 // fill price at exit
	EntryTime  int64   // Unix timestamp in milliseconds
	ExitTime   int64   // Unix timestamp in milliseconds

	// Outcome
	PnLPct     float64 // signed return in percent
	Profitable bool    // PnLPct > 0

	// Context
	Rationale string         // template-drawn justification text
	Snapshot  MarketSnapshot // market features at entry

	CreatedAt int64 // record creation timestamp (ms)
}
