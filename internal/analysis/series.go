package analysis

import (
	"time"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
)

// Process runs the full detection pass over a dated NDVI series: smooth,
// find peaks, assemble the processed rows served by the dashboard and the
// CSV export. dates and values are parallel slices sorted ascending by
// date; the returned peak indices point into the returned rows.
func Process(dates []time.Time, values []float64, pol entities.DetectionPolicy) ([]entities.SeriesPoint, []int) {
	pol = pol.Resolve()
	n := len(values)
	if len(dates) < n {
		n = len(dates)
	}
	smoothed := Smooth(values[:n], pol.Window)
	peaks := FindPeaks(smoothed, pol.MinHeight, pol.MinDistance)

	rows := make([]entities.SeriesPoint, n)
	for i := 0; i < n; i++ {
		rows[i] = entities.SeriesPoint{
			Date:     dates[i],
			NDVI:     values[i],
			Smoothed: smoothed[i],
		}
	}
	for _, p := range peaks {
		rows[p].Peak = true
	}
	return rows, peaks
}
