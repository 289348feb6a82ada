package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
)

func compositeDates(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, StepDays*i)
	}
	return out
}

func TestProcessFlagsBloomPeak(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	values := []float64{0.30, 0.40, 0.55, 0.70, 0.85, 0.70, 0.55, 0.40, 0.30, 0.28, 0.26, 0.24}
	dates := compositeDates(start, len(values))

	rows, peaks := Process(dates, values, entities.DetectionPolicy{})

	require.Len(t, rows, len(values))
	require.Equal(t, []int{4}, peaks)

	assert.True(t, rows[4].Peak)
	assert.InDelta(t, 0.85, rows[4].NDVI, 1e-12)
	assert.InDelta(t, 0.75, rows[4].Smoothed, 1e-9) // (0.70+0.85+0.70)/3
	assert.Equal(t, dates[4], rows[4].Date)

	for i, r := range rows {
		if i == 4 {
			continue
		}
		assert.False(t, r.Peak, "index %d must not be a peak", i)
	}
}

func TestProcessBelowThresholdSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	values := []float64{0.2, 0.3, 0.5, 0.3, 0.2} // local max but under 0.6
	dates := compositeDates(start, len(values))

	rows, peaks := Process(dates, values, entities.DetectionPolicy{})

	assert.Empty(t, peaks)
	for _, r := range rows {
		assert.False(t, r.Peak)
	}
}

func TestProcessCustomPolicy(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	values := []float64{0.2, 0.3, 0.5, 0.3, 0.2}
	dates := compositeDates(start, len(values))

	// lowering the height threshold picks up the 0.5 maximum
	pol := entities.DetectionPolicy{MinHeight: 0.3, MinDistance: 2, Window: 1}
	rows, peaks := Process(dates, values, pol)

	require.Equal(t, []int{2}, peaks)
	assert.True(t, rows[2].Peak)
	assert.InDelta(t, 0.5, rows[2].Smoothed, 1e-12, "window 1 keeps the raw value")
}
