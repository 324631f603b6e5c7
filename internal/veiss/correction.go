package veiss

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Corrector validates the reps of a finished set from its distance signal.
type Corrector struct {
	Tuning Tuning
	Logger *slog.Logger
}

// Correct runs a Corrector with the default tuning.
func Correct(timestamps, distances []float64, hzHint float64) []ValidatedRep {
	c := Corrector{Tuning: DefaultTuning()}
	return c.Correct(timestamps, distances, hzHint)
}

type thresholds struct {
	hz          float64
	minDistance int
	prominence  float64
	minRom      float64
}

// Correct turns the peaks and troughs of distances into validated reps.
// Timestamps are in ms and paired index by index with distances; when the
// lengths differ the most recent samples of both are kept.
func (this *Corrector) Correct(timestamps, distances []float64, hzHint float64) []ValidatedRep {
	logger := this.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := this.Tuning.withDefaults()

	if len(timestamps) != len(distances) {
		n := min(len(timestamps), len(distances))
		logger.Warn("timestamp and distance counts differ, truncating",
			"timestamps", len(timestamps), "distances", len(distances), "kept", n)
		timestamps = timestamps[len(timestamps)-n:]
		distances = distances[len(distances)-n:]
	}
	if len(distances) == 0 {
		return nil
	}
	if floats.HasNaN(distances) {
		logger.Warn("distance signal contains NaN, skipping correction", "samples", len(distances))
		return nil
	}

	th := thresholds{hz: sampleRate(timestamps, hzHint)}
	th.minDistance = int(math.Floor(REP_SPACING * th.hz))
	sd := 0.0
	if len(distances) > 1 {
		sd = stat.StdDev(distances, nil)
	}
	th.prominence = math.Max(t.MinRomMm, ROM_STD_RATIO*sd)
	th.minRom = th.prominence

	peaks := detectPeaks(distances, th)
	troughs := FindTroughs(distances, PeakOptions{
		Distance:   th.minDistance,
		Prominence: th.prominence / 2,
	})
	logger.Debug("extrema detected", "hz", th.hz, "std", sd, "prominence", th.prominence,
		"peaks", len(peaks), "troughs", len(troughs))
	if len(peaks) == 0 {
		return nil
	}

	c := candidates{
		ts:      timestamps,
		x:       distances,
		troughs: troughs,
		minRom:  th.minRom,
		minDur:  t.MinRepDurationMs,
		maxDur:  t.MaxRepDurationMs,
		used:    make(map[int]bool),
	}

	var reps []ValidatedRep
	next := 0
	if rep, ok := c.first(peaks[0], th.hz); ok {
		rep.RepNum = 1
		reps = append(reps, rep)
		next = 1
	} else {
		logger.Debug("first peak rejected", "peak", peaks[0])
	}
	for _, p := range peaks[next:] {
		rep, ok := c.following(p)
		if !ok {
			logger.Debug("peak rejected", "peak", p, "value", distances[p])
			continue
		}
		rep.RepNum = len(reps) + 1
		reps = append(reps, rep)
	}

	logger.Debug("correction finished", "reps", len(reps))
	return reps
}

// detectPeaks runs the peak search with a height gate derived from the
// resting baseline, relaxing the gate when nothing is found.
func detectPeaks(x []float64, th thresholds) []int {
	opts := PeakOptions{
		Distance:   th.minDistance,
		Prominence: th.prominence,
	}

	baselineEnd := min(int(math.Floor(BASELINE_DURATION*th.hz)), len(x)/4)
	baseline := x[:max(0, baselineEnd)]
	hasBaseline := len(baseline) > BASELINE_MIN_SAMPLES
	var bMean, bStd float64
	if hasBaseline {
		bMean, bStd = stat.MeanStdDev(baseline, nil)
		h := bMean + math.Max(HEIGHT_MARGIN_MIN, HEIGHT_STD_RATIO*bStd)
		opts.Height = clamp(h, bMean+HEIGHT_MARGIN_MIN, bMean+HEIGHT_MARGIN_MAX)
		opts.HasHeight = true
	}

	peaks := FindPeaks(x, opts)
	if len(peaks) == 0 && hasBaseline {
		opts.Height = bMean + SOFT_HEIGHT_MARGIN
		peaks = FindPeaks(x, opts)
	}
	if len(peaks) == 0 {
		opts.HasHeight = false
		peaks = FindPeaks(x, opts)
	}
	return peaks
}

type candidates struct {
	ts      []float64
	x       []float64
	troughs []int
	minRom  float64
	minDur  float64
	maxDur  float64
	used    map[int]bool
}

// first anchors the first rep on the liftoff from the resting baseline,
// since no trough precedes it.
func (this *candidates) first(peak int, hz float64) (ValidatedRep, bool) {
	end := max(10, peak-int(math.Floor(LIFTOFF_GAP*hz)))
	baseline := this.x[:min(end, len(this.x))]
	if len(baseline) <= BASELINE_MIN_SAMPLES {
		return ValidatedRep{}, false
	}
	bMean, bStd := stat.MeanStdDev(baseline, nil)
	liftoff := math.Min(bMean+math.Max(HEIGHT_MARGIN_MIN, LIFTOFF_STD_RATIO*bStd), bMean+LIFTOFF_MARGIN_MAX)

	start := -1
	for i := 0; i < peak; i++ {
		if this.x[i] > liftoff {
			start = i
			break
		}
	}
	if start < 0 {
		return ValidatedRep{}, false
	}
	return this.accept(start, peak, this.x[peak]-bMean)
}

// following anchors a rep on the last trough before its peak. A trough
// anchors at most one rep.
func (this *candidates) following(peak int) (ValidatedRep, bool) {
	trough := -1
	for _, t := range this.troughs {
		if t >= peak {
			break
		}
		trough = t
	}
	if trough < 0 || this.used[trough] {
		return ValidatedRep{}, false
	}
	rep, ok := this.accept(trough, peak, this.x[peak]-this.x[trough])
	if ok {
		this.used[trough] = true
	}
	return rep, ok
}

func (this *candidates) accept(start, peak int, rom float64) (ValidatedRep, bool) {
	end := this.endOf(peak)
	duration := this.ts[end] - this.ts[start]
	if rom < this.minRom || duration < this.minDur || duration > this.maxDur {
		return ValidatedRep{}, false
	}
	if !(this.ts[start] < this.ts[peak] && this.ts[peak] < this.ts[end]) {
		return ValidatedRep{}, false
	}
	return ValidatedRep{
		ConcentricStart: this.ts[start],
		EccentricStart:  this.ts[peak],
		RepEnd:          this.ts[end],
		RomMm:           rom,
		PeakIndex:       peak,
	}, true
}

// endOf is the first trough after the peak, or the lowest sample after it.
func (this *candidates) endOf(peak int) int {
	for _, t := range this.troughs {
		if t > peak {
			return t
		}
	}
	return peak + floats.MinIdx(this.x[peak:])
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
