package tournament

import "errors"

// ErrInsufficientData is returned when the history slice for a matchup
// is missing or shorter than the minimum window. The pairing is skipped
// and the caller substitutes a replacement pair; nothing is recorded.
var ErrInsufficientData = errors.New("insufficient data for tournament slice")
