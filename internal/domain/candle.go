package domain

import "time"

// Timeframe represents a candle aggregation interval.
type Timeframe string

const (
	TimeframeM5  Timeframe = "M5"
	TimeframeM15 Timeframe = "M15"
	TimeframeH1  Timeframe = "H1"
	TimeframeH4  Timeframe = "H4"
	TimeframeD1  Timeframe = "D1"
)

// String returns the string representation of Timeframe.
func (t Timeframe) String() string {
	return string(t)
}

// IsValid checks if the timeframe is a valid value.
func (t Timeframe) IsValid() bool {
	switch t {
	case TimeframeM5, TimeframeM15, TimeframeH1, TimeframeH4, TimeframeD1:
		return true
	}
	return false
}

// Duration returns the bar length of the timeframe.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case TimeframeM5:
		return 5 * time.Minute
	case TimeframeM15:
		return 15 * time.Minute
	case TimeframeH1:
		return time.Hour
	case TimeframeH4:
		return 4 * time.Hour
	case TimeframeD1:
		return 24 * time.Hour
	}
	return 0
}

// AllTimeframes returns the fixed enumerated set tournaments draw from,
// shortest first.
func AllTimeframes() []Timeframe {
	return []Timeframe{TimeframeM5, TimeframeM15, TimeframeH1, TimeframeH4, TimeframeD1}
}

// Candle represents one OHLCV bar.
// Corresponds to candles table in ClickHouse.
type Candle struct {
	Symbol    string    // traded instrument
	Timeframe Timeframe // aggregation interval
	OpenTime  int64     // bar open, Unix timestamp in milliseconds
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// CloseTime returns the bar close timestamp (ms).
func (c Candle) CloseTime() int64 {
	return c.OpenTime + c.Timeframe.Duration().Milliseconds()
}

// Return is the intra-bar return (close vs open), 0 for a zero open.
func (c Candle) Return() float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open
}
