package entities

import "time"

// SeriesPoint is one row of a processed NDVI series: the raw composite
// value, its smoothed counterpart and whether it is a detected peak.
// This is exactly the shape of the exported CSV.
type SeriesPoint struct {
	Date     time.Time `json:"date"`
	NDVI     float64   `json:"ndvi"`
	Smoothed float64   `json:"ndvi_smooth"`
	Peak     bool      `json:"is_peak"`
}
