package veiss

import (
	"math"
	"sort"
)

// PeakOptions constrain FindPeaks. Zero values disable a constraint, except
// Height which is only applied when HasHeight is set, since a height of 0
// is meaningful for negated series.
type PeakOptions struct {
	Distance   int     // (samples) minimum spacing, enforced by height
	Prominence float64 // minimum prominence
	Height     float64 // minimum peak value
	HasHeight  bool
	WindowLen  int // (samples) prominence search window, whole series if 0
}

// FindPeaks returns the indices of the local maxima of x that satisfy opts,
// in ascending order.
func FindPeaks(x []float64, opts PeakOptions) []int {
	peaks := localMaxima(x)

	if opts.HasHeight {
		kept := peaks[:0]
		for _, p := range peaks {
			if x[p] >= opts.Height {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}

	if opts.Distance > 1 {
		peaks = filterByDistance(x, peaks, opts.Distance)
	}

	if opts.Prominence > 0 {
		kept := peaks[:0]
		for _, p := range peaks {
			if prominence(x, p, opts.WindowLen) >= opts.Prominence {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}

	return peaks
}

// FindTroughs finds the local minima of x by searching peaks of -x.
func FindTroughs(x []float64, opts PeakOptions) []int {
	negated := make([]float64, len(x))
	for i, v := range x {
		negated[i] = -v
	}
	opts.Height = -opts.Height
	return FindPeaks(negated, opts)
}

// localMaxima finds samples strictly higher than their left neighbour whose
// plateau is followed by a lower sample. Plateaus report their midpoint.
func localMaxima(x []float64) []int {
	var peaks []int
	if len(x) < 3 {
		return peaks
	}
	for i := 1; i < len(x)-1; i++ {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < len(x)-1 && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
			}
		}
	}
	return peaks
}

// filterByDistance keeps the highest peaks first and suppresses every other
// peak within distance samples of a kept one.
func filterByDistance(x []float64, peaks []int, distance int) []int {
	order := make([]int, len(peaks))
	copy(order, peaks)
	sort.SliceStable(order, func(i, j int) bool {
		return x[order[i]] > x[order[j]]
	})

	suppressed := make(map[int]bool, len(peaks))
	for _, p := range order {
		if suppressed[p] {
			continue
		}
		for _, q := range peaks {
			if q != p && q >= p-distance && q <= p+distance {
				suppressed[q] = true
			}
		}
	}

	var kept []int
	for _, p := range peaks {
		if !suppressed[p] {
			kept = append(kept, p)
		}
	}
	return kept
}

// prominence walks both ways from the peak until a higher sample or the
// window edge and measures the peak against the higher of the two minima.
func prominence(x []float64, peak, wlen int) float64 {
	if wlen <= 0 {
		wlen = len(x)
	}
	height := x[peak]
	lo := max(0, peak-wlen)
	hi := min(len(x)-1, peak+wlen)

	leftMin := height
	for i := peak; i >= lo && x[i] <= height; i-- {
		leftMin = math.Min(leftMin, x[i])
	}
	rightMin := height
	for i := peak; i <= hi && x[i] <= height; i++ {
		rightMin = math.Min(rightMin, x[i])
	}
	return height - math.Max(leftMin, rightMin)
}
