package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmoothCenteredWindow3(t *testing.T) {
	in := []float64{0.2, 0.4, 0.6, 0.8, 1.0}
	want := []float64{0.3, 0.4, 0.6, 0.8, 0.9} // edges average two points

	got := Smooth(in, 3)
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "index %d", i)
	}
}

func TestSmoothEvenWindowLeansLeft(t *testing.T) {
	in := []float64{1, 2, 3, 4, 5, 6}
	want := []float64{1.5, 2, 2.5, 3.5, 4.5, 5}

	got := Smooth(in, 4)
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "index %d", i)
	}
}

func TestSmoothDegenerateInputs(t *testing.T) {
	assert.Empty(t, Smooth(nil, 3))

	single := Smooth([]float64{0.5}, 3)
	require.Len(t, single, 1)
	assert.InDelta(t, 0.5, single[0], 1e-12)

	in := []float64{0.1, 0.9, 0.4}
	got := Smooth(in, 1)
	assert.Equal(t, in, got, "window 1 must return the series unchanged")
}

func TestSmoothDoesNotMutateInput(t *testing.T) {
	in := []float64{0.2, 0.8, 0.2}
	Smooth(in, 3)
	assert.Equal(t, []float64{0.2, 0.8, 0.2}, in)
}
