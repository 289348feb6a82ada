package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
)

func testRegion() *entities.Region {
	return &entities.Region{
		ID:        "bhopal",
		Name:      "Bhopal",
		Latitude:  23.2599,
		Longitude: 77.4126,
		Phenology: &entities.BloomProfile{PeakDay: 270, Baseline: 0.35, Amplitude: 0.45, WidthDays: 40},
	}
}

func TestGeneratorDeterministicUnderSeed(t *testing.T) {
	a := NewGenerator(testRegion(), 0.02, 7)
	b := NewGenerator(testRegion(), 0.02, 7)

	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		sa := a.At(at.Add(time.Duration(i) * 6 * time.Hour))
		sb := b.At(at.Add(time.Duration(i) * 6 * time.Hour))
		assert.Equal(t, sa, sb, "sample %d must replay identically", i)
	}

	c := NewGenerator(testRegion(), 0.02, 8)
	sc := c.At(at)
	sa := NewGenerator(testRegion(), 0.02, 7).At(at)
	assert.NotEqual(t, sa.NDVI, sc.NDVI, "different seeds must diverge")
}

func TestGeneratorSeasonalShape(t *testing.T) {
	g := NewGenerator(testRegion(), 0.001, 1)

	// day-of-year 270 in 2024 is September 26
	peakDate := time.Date(2024, 9, 26, 10, 30, 0, 0, time.UTC)
	offDate := time.Date(2024, 3, 30, 10, 30, 0, 0, time.UTC)

	var peakClear, offClear []float64
	for i := 0; i < 60; i++ {
		if s := g.At(peakDate); s.CloudCover <= cloudContamination {
			peakClear = append(peakClear, s.NDVI)
		}
		if s := g.At(offDate); s.CloudCover <= cloudContamination {
			offClear = append(offClear, s.NDVI)
		}
	}
	require.NotEmpty(t, peakClear)
	require.NotEmpty(t, offClear)

	for _, v := range peakClear {
		assert.InDelta(t, 0.80, v, 0.02, "clear-sky peak reading tracks baseline+amplitude")
	}
	for _, v := range offClear {
		assert.InDelta(t, 0.35, v, 0.02, "clear-sky off-season reading tracks the baseline")
	}
}

func TestGeneratorSampleEnvelope(t *testing.T) {
	g := NewGenerator(testRegion(), 0.3, 99) // deliberately noisy

	at := time.Date(2024, 9, 26, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		s := g.At(at)
		assert.GreaterOrEqual(t, s.NDVI, -0.2)
		assert.LessOrEqual(t, s.NDVI, 1.0)
		assert.GreaterOrEqual(t, s.CloudCover, 0.0)
		assert.Less(t, s.CloudCover, 1.0)
		assert.Equal(t, "bhopal", s.RegionID)
		assert.Equal(t, "sim", s.Source)
		assert.False(t, s.Composite)
	}
}
