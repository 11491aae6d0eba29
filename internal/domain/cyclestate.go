package domain

// CycleState is the singleton progress record of the discovery loop.
// Corresponds to the single-row cycle_state table in PostgreSQL. Every
// mutation is a compare-and-swap on Version; there is no in-process copy
// that survives between trigger invocations.
type CycleState struct {
	Cycle               int64 // last claimed cycle number
	LastMinedCycle      int64 // upper bound of the last mined trial window
	LastTournamentCycle int64 // last cycle that ran tournaments
	Version             int64 // CAS token, incremented on every write
	UpdatedAt           int64 // last mutation timestamp (ms)
}
