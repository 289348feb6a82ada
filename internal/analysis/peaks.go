package analysis

import "sort"

// FindPeaks returns the indices of local maxima in x that reach height
// and sit at least distance samples apart. Plateaus count as one peak at
// their middle sample. The height filter runs before the distance filter,
// so a rejected low peak never shadows a taller neighbour; distance
// pruning drops the smaller of two close peaks, keeping the earlier one
// on equal values. The first and last samples are never peaks.
func FindPeaks(x []float64, height float64, distance int) []int {
	var cand []int
	for _, p := range localMaxima(x) {
		if x[p] >= height {
			cand = append(cand, p)
		}
	}
	if distance > 1 && len(cand) > 1 {
		keep := selectByPeakDistance(cand, x, distance)
		kept := cand[:0]
		for i, p := range cand {
			if keep[i] {
				kept = append(kept, p)
			}
		}
		cand = kept
	}
	return cand
}

// localMaxima scans for strict local maxima. A run of equal values
// bounded by smaller neighbours on both sides reports the middle index
// of the run. Runs touching either end of the series are not maxima.
func localMaxima(x []float64) []int {
	var peaks []int
	i := 1
	iMax := len(x) - 1
	for i < iMax {
		if x[i-1] < x[i] {
			iAhead := i + 1
			for iAhead < iMax && x[iAhead] == x[i] {
				iAhead++
			}
			if x[iAhead] < x[i] {
				leftEdge := i
				rightEdge := iAhead - 1
				peaks = append(peaks, (leftEdge+rightEdge)/2)
				i = iAhead
			}
		}
		i++
	}
	return peaks
}

// selectByPeakDistance keeps the subset of peaks that are at least
// distance samples apart, visiting peaks from highest to lowest so every
// survivor suppresses its smaller neighbours.
func selectByPeakDistance(peaks []int, x []float64, distance int) []bool {
	n := len(peaks)
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	// ascending by value; equal values ordered so the earlier peak is
	// visited first below
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if x[peaks[ia]] != x[peaks[ib]] {
			return x[peaks[ia]] < x[peaks[ib]]
		}
		return ia > ib
	})

	for k := n - 1; k >= 0; k-- {
		j := order[k]
		if !keep[j] {
			continue
		}
		for m := j - 1; m >= 0 && peaks[j]-peaks[m] < distance; m-- {
			keep[m] = false
		}
		for m := j + 1; m < n && peaks[m]-peaks[j] < distance; m++ {
			keep[m] = false
		}
	}
	return keep
}
