package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindPeaks(t *testing.T) {
	tests := []struct {
		name     string
		x        []float64
		height   float64
		distance int
		want     []int
	}{
		{
			name:     "single triangle peak",
			x:        []float64{0, 1, 0},
			height:   0.6,
			distance: 8,
			want:     []int{1},
		},
		{
			name:     "plateau reports middle sample",
			x:        []float64{0, 1, 1, 1, 0, 0},
			height:   0.6,
			distance: 8,
			want:     []int{2},
		},
		{
			name:     "two-sample plateau reports left of middle",
			x:        []float64{0, 1, 1, 0},
			height:   0.6,
			distance: 8,
			want:     []int{1},
		},
		{
			name:     "height filters low maxima",
			x:        []float64{0.1, 0.5, 0.1, 0.9, 0.1},
			height:   0.6,
			distance: 1,
			want:     []int{3},
		},
		{
			name:     "distance keeps only the tallest of a cluster",
			x:        []float64{0.0, 0.3, 0.7, 0.3, 0.0, 0.5, 0.9, 0.5, 0.0, 0.4, 0.65, 0.4, 0.0},
			height:   0.6,
			distance: 8,
			want:     []int{6},
		},
		{
			name:     "peaks exactly distance apart both survive",
			x:        []float64{0.0, 0.3, 0.7, 0.3, 0.0, 0.5, 0.9, 0.5, 0.0, 0.4, 0.65, 0.4, 0.0},
			height:   0.6,
			distance: 4,
			want:     []int{2, 6, 10},
		},
		{
			name:     "equal heights keep the earlier peak",
			x:        []float64{0, 0.8, 0, 0, 0, 0.8, 0},
			height:   0.6,
			distance: 8,
			want:     []int{1},
		},
		{
			name:     "first sample is never a peak",
			x:        []float64{1.0, 0.5, 0.9},
			height:   0.6,
			distance: 8,
			want:     nil,
		},
		{
			name:     "rising end is never a peak",
			x:        []float64{0, 0.5, 1.0},
			height:   0.6,
			distance: 8,
			want:     nil,
		},
		{
			name:     "plateau running to the end is never a peak",
			x:        []float64{0, 1, 1},
			height:   0.6,
			distance: 8,
			want:     nil,
		},
		{
			name:     "empty series",
			x:        nil,
			height:   0.6,
			distance: 8,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindPeaks(tt.x, tt.height, tt.distance)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindPeaksAppendStable(t *testing.T) {
	// A peak must not appear until its right neighbour confirms the
	// descent; once confirmed, appending more data keeps it.
	base := []float64{0.2, 0.4, 0.7, 0.65}
	assert.Equal(t, []int{2}, FindPeaks(base, 0.6, 8))

	grown := append(append([]float64{}, base...), 0.5, 0.4)
	assert.Equal(t, []int{2}, FindPeaks(grown, 0.6, 8))

	openEnded := []float64{0.2, 0.4, 0.7}
	assert.Nil(t, FindPeaks(openEnded, 0.6, 8), "series-final sample must not be a peak")
}
