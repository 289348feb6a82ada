package entities

// DetectionPolicy holds the peak-detection thresholds for a region.
// Zero values fall back to the platform defaults, which mirror the
// MODIS 16-day cadence: a bloom is an NDVI peak of at least 0.6 with
// at least 8 composites (~128 days) between neighbouring peaks.
type DetectionPolicy struct {
	MinHeight   float64 `json:"min_height" yaml:"min_height"`     // smoothed NDVI threshold
	MinDistance int     `json:"min_distance" yaml:"min_distance"` // samples between peaks
	Window      int     `json:"window" yaml:"window"`             // rolling-mean window
}

const (
	DefaultMinHeight   = 0.6
	DefaultMinDistance = 8
	DefaultWindow      = 3
)

// Resolve fills unset fields with the platform defaults.
func (p DetectionPolicy) Resolve() DetectionPolicy {
	if p.MinHeight <= 0 {
		p.MinHeight = DefaultMinHeight
	}
	if p.MinDistance <= 0 {
		p.MinDistance = DefaultMinDistance
	}
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	return p
}
