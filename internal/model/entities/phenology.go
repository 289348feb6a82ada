package entities

// BloomProfile describes the expected seasonal NDVI curve of a region.
// The feed simulator shapes its synthetic signal with it; real feeds
// ignore it.
type BloomProfile struct {
	PeakDay   int     `json:"peak_day" yaml:"peak_day"`     // day of year of the bloom peak
	Baseline  float64 `json:"baseline" yaml:"baseline"`     // off-season NDVI
	Amplitude float64 `json:"amplitude" yaml:"amplitude"`   // peak rise above baseline
	WidthDays float64 `json:"width_days" yaml:"width_days"` // bloom bell width (stddev, days)
}

// DefaultBloomProfile is used when a region declares no phenology.
// Roughly a post-monsoon bloom: peak late September, moderate amplitude.
func DefaultBloomProfile() BloomProfile {
	return BloomProfile{PeakDay: 270, Baseline: 0.35, Amplitude: 0.45, WidthDays: 40}
}
