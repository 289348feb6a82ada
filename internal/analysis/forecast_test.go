package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
)

// seasonal builds a series the model family can represent exactly:
// linear trend plus one yearly harmonic.
func seasonal(t float64) float64 {
	return 0.5 + 0.0001*t + 0.2*math.Sin(2*math.Pi*t/365.25)
}

func TestFitForecastRecoversSeasonalSeries(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 69 // three years of 16-day composites
	dates := compositeDates(start, n)
	values := make([]float64, n)
	for i := range values {
		values[i] = seasonal(float64(StepDays * i))
	}

	res, err := FitForecast(dates, values, DefaultPeriods, entities.DetectionPolicy{})
	require.NoError(t, err)

	assert.Equal(t, n, res.TrainedOn)
	assert.Equal(t, dates[n-1], res.SeriesEnd)
	require.Len(t, res.Dates, n+DefaultPeriods)
	require.Len(t, res.Yhat, n+DefaultPeriods)

	// the generating function lies in the model span, so the fit is exact
	assert.Less(t, res.Sigma, 1e-6)
	for i := 0; i < n; i++ {
		assert.InDelta(t, values[i], res.Yhat[i], 1e-5, "training index %d", i)
	}

	// horizon continues at the 16-day cadence
	assert.Equal(t, res.SeriesEnd.AddDate(0, 0, StepDays), res.Dates[n])
	assert.Equal(t, res.SeriesEnd.AddDate(0, 0, StepDays*DefaultPeriods), res.Dates[n+DefaultPeriods-1])

	// extrapolation stays on the generating function
	for i := n; i < len(res.Dates); i++ {
		ti := res.Dates[i].Sub(start).Hours() / 24
		assert.InDelta(t, seasonal(ti), res.Yhat[i], 1e-4, "future index %d", i)
	}
}

func TestFitForecastPredictsNextSeasonPeak(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 69
	dates := compositeDates(start, n)
	values := make([]float64, n)
	for i := range values {
		values[i] = seasonal(float64(StepDays * i))
	}

	res, err := FitForecast(dates, values, DefaultPeriods, entities.DetectionPolicy{})
	require.NoError(t, err)

	// the yearly maximum after the series end falls ~1187 days in,
	// closest to the sample at day 1184
	require.Len(t, res.FuturePeaks, 1)
	peak := res.FuturePeaks[0]
	assert.True(t, res.Dates[peak].After(res.SeriesEnd), "predicted peaks must be strictly in the future")
	assert.Equal(t, start.AddDate(0, 0, 1184), res.Dates[peak])
	assert.Greater(t, res.Yhat[peak], 0.6)

	// confidence band brackets the point forecast
	assert.Less(t, res.Lower[peak], res.Yhat[peak])
	assert.Greater(t, res.Upper[peak], res.Yhat[peak])
}

func TestFitForecastShortSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := MinObservations - 1
	dates := compositeDates(start, n)
	values := make([]float64, n)

	_, err := FitForecast(dates, values, DefaultPeriods, entities.DetectionPolicy{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least")
}

func TestFitForecastMismatchedInput(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := compositeDates(start, 20)

	_, err := FitForecast(dates, make([]float64, 19), DefaultPeriods, entities.DetectionPolicy{})
	require.Error(t, err)
}
