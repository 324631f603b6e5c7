package veiss

import (
	"math"
	"sort"

	"github.com/pconstantinou/savitzkygolay"
	"gonum.org/v1/gonum/stat"
)

type Signal struct {
	Samples     []float64 `codec:","` // (mm) one denoised distance per frame
	Timestamps  []float64 `codec:","` // (ms)
	ActiveZones []int     `codec:","`
	Smoothed    bool      `codec:","`
}

// Preprocess reduces the zone matrix of a set to a single distance signal.
// The output always has one sample per buffered frame.
func Preprocess(buf *SetBuffer, tuning Tuning) (*Signal, error) {
	if buf == nil || len(buf.Frames) == 0 {
		return nil, ErrEmptyInput
	}
	t := tuning.withDefaults()

	columns := zoneColumns(buf)
	for i := range columns {
		columns[i] = medianFilter(columns[i], t.MedianKernel)
	}
	active := activeZones(columns, t.ActiveZones)

	var sig Signal
	sig.ActiveZones = active
	sig.Timestamps = buf.Timestamps()
	sig.Samples = averageZones(columns, active, len(buf.Frames))

	if len(sig.Samples) >= t.SavgolWindow {
		if smoothed, ok := smooth(sig.Samples, t.SavgolWindow, t.SavgolOrder); ok {
			sig.Samples = smoothed
			sig.Smoothed = true
		}
	}
	fillEdges(sig.Samples)

	return &sig, nil
}

// zoneColumns transposes the frames into one column per zone. Zones a frame
// did not report are NaN.
func zoneColumns(buf *SetBuffer) [][]float64 {
	zoneCount := 0
	for _, f := range buf.Frames {
		zoneCount = max(zoneCount, len(f.Zones))
	}
	columns := make([][]float64, zoneCount)
	for z := range columns {
		columns[z] = make([]float64, len(buf.Frames))
	}
	for i, f := range buf.Frames {
		row := toFloats(f.Zones)
		for z := range columns {
			if z < len(row) {
				columns[z][i] = row[z]
			} else {
				columns[z][i] = math.NaN()
			}
		}
	}
	return columns
}

// medianFilter replaces every finite reading by the median of the finite
// readings within the kernel centered on it. Missing readings stay missing.
func medianFilter(data []float64, kernel int) []float64 {
	half := kernel / 2
	result := make([]float64, len(data))
	window := make([]float64, 0, kernel)
	for i := range data {
		if !isFinite(data[i]) {
			result[i] = math.NaN()
			continue
		}
		window = window[:0]
		for j := max(0, i-half); j < min(len(data), i+half+1); j++ {
			if isFinite(data[j]) {
				window = append(window, data[j])
			}
		}
		sort.Float64s(window)
		result[i] = window[len(window)/2]
	}
	return result
}

// activeZones returns the indices of the count zones with the highest
// variance, in ascending index order.
func activeZones(columns [][]float64, count int) []int {
	type zoneVariance struct {
		index    int
		variance float64
	}
	variances := make([]zoneVariance, 0, len(columns))
	for z, col := range columns {
		finite := make([]float64, 0, len(col))
		for _, v := range col {
			if isFinite(v) {
				finite = append(finite, v)
			}
		}
		if len(finite) == 0 {
			continue
		}
		v := 0.0
		if len(finite) > 1 {
			v = stat.Variance(finite, nil)
		}
		variances = append(variances, zoneVariance{z, v})
	}
	sort.SliceStable(variances, func(i, j int) bool {
		return variances[i].variance > variances[j].variance
	})
	if len(variances) > count {
		variances = variances[:count]
	}

	active := make([]int, len(variances))
	for i, zv := range variances {
		active[i] = zv.index
	}
	sort.Ints(active)
	return active
}

func averageZones(columns [][]float64, active []int, frames int) []float64 {
	means := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum, n := 0.0, 0
		for _, z := range active {
			if v := columns[z][i]; isFinite(v) {
				sum += v
				n++
			}
		}
		switch {
		case n > 0:
			means[i] = sum / float64(n)
		case i > 0:
			means[i] = means[i-1]
		default:
			means[i] = 0
		}
	}
	return means
}

// smooth applies a Savitzky-Golay filter. Output of a different length is
// centered on the input and padded with NaN, which fillEdges repairs.
func smooth(samples []float64, window, order int) ([]float64, bool) {
	filter, err := savitzkygolay.NewFilter(window, 0, order)
	if err != nil {
		return nil, false
	}
	xs := make([]float64, len(samples))
	for i := range xs {
		xs[i] = float64(i)
	}
	ys, err := filter.Process(samples, xs)
	if err != nil || len(ys) == 0 {
		return nil, false
	}
	if len(ys) == len(samples) {
		return ys, true
	}

	out := make([]float64, len(samples))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(ys) < len(samples) {
		copy(out[(len(samples)-len(ys))/2:], ys)
	} else {
		offset := (len(ys) - len(samples)) / 2
		copy(out, ys[offset:offset+len(samples)])
	}
	return out, true
}

// fillEdges replaces non-finite samples with the nearest finite sample.
// Leading gaps take the first finite value, every later gap carries the
// previous value forward. A series without any finite value becomes zeros.
func fillEdges(samples []float64) {
	first := -1
	for i, v := range samples {
		if isFinite(v) {
			first = i
			break
		}
	}
	if first < 0 {
		for i := range samples {
			samples[i] = 0
		}
		return
	}
	for i := 0; i < first; i++ {
		samples[i] = samples[first]
	}
	for i := first + 1; i < len(samples); i++ {
		if !isFinite(samples[i]) {
			samples[i] = samples[i-1]
		}
	}
}
