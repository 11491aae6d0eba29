package domain

// MarketSnapshot represents a point-in-time view of the traded market.
// Providers must return either a fully populated snapshot or an error,
// never a partial one.
type MarketSnapshot struct {
	Symbol        string  // traded instrument
	CapturedAt    int64   // Unix timestamp in milliseconds
	Price         float64 // last close
	MomentumPct   float64 // percent change over the lookback window
	MovingAvg     float64 // simple moving average over the lookback window
	Volume        float64 // latest bar volume
	AvgVolume     float64 // mean bar volume over the lookback window
	VolatilityPct float64 // stddev of bar returns over the lookback, in percent
}

// Features derives the feature vector conditions are evaluated against.
func (s MarketSnapshot) Features() FeatureVector {
	fv := FeatureVector{
		MomentumPct:   s.MomentumPct,
		VolatilityPct: s.VolatilityPct,
	}
	if s.AvgVolume > 0 {
		fv.VolumeRatio = s.Volume / s.AvgVolume
	}
	if s.MovingAvg > 0 {
		fv.PriceMAPct = (s.Price - s.MovingAvg) / s.MovingAvg * 100
	}
	return fv
}
