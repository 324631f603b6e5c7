package veiss

import (
	"math"
	"sort"
)

// EstimateRate derives the sampling rate (Hz) from device timestamps (ms).
// Only the last RATE_WINDOW deltas are used, pauses and non-increasing
// timestamps are ignored. The result is smoothed against previous; when
// previous is not positive the new estimate is returned as is. With fewer
// than 4 timestamps or no usable delta previous is returned unchanged.
func EstimateRate(timestamps []float64, previous float64) float64 {
	if len(timestamps) < 4 {
		return previous
	}

	start := len(timestamps) - RATE_WINDOW - 1
	if start < 0 {
		start = 0
	}
	deltas := make([]float64, 0, RATE_WINDOW)
	for i := start + 1; i < len(timestamps); i++ {
		d := timestamps[i] - timestamps[i-1]
		if d > 0 && d < RATE_PAUSE_THRESHOLD && isFinite(d) {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return previous
	}

	hz := 1000.0 / median(deltas)
	hz = math.Max(MIN_SAMPLE_RATE, math.Min(MAX_SAMPLE_RATE, hz))
	if previous <= 0 || !isFinite(previous) {
		return hz
	}
	return RATE_SMOOTHING*hz + (1-RATE_SMOOTHING)*previous
}

// median sorts values in place.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// sampleRate picks the rate used by one correction run.
func sampleRate(timestamps []float64, hint float64) float64 {
	if hz := EstimateRate(timestamps, 0); hz > 0 {
		return hz
	}
	if hint > 0 && isFinite(hint) {
		return hint
	}
	return DEFAULT_SAMPLE_RATE
}
