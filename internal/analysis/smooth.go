package analysis

// Smooth applies a centered rolling mean over the series. Windows are
// clipped at the edges, so the first and last points average whatever
// neighbours exist (never fewer than one value).
func Smooth(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if window <= 1 {
		copy(out, values)
		return out
	}
	// A centered window of width w labels the trailing window shifted
	// back by (w-1)/2, which for even w leans one sample to the left.
	offset := (window - 1) / 2
	for i := 0; i < n; i++ {
		lo := i + offset - window + 1
		if lo < 0 {
			lo = 0
		}
		hi := i + offset + 1
		if hi > n {
			hi = n
		}
		sum := 0.0
		for j := lo; j < hi; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}
