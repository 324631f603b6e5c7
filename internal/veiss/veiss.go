package veiss

import (
	"errors"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"golang.org/x/exp/constraints"

	"goveiss/internal/formats/tof"
)

const (
	DEFAULT_SAMPLE_RATE   = 30.0  // (Hz) used when neither timestamps nor a hint yield a rate
	MIN_SAMPLE_RATE       = 5.0   // (Hz) lower clamp of the rate estimate
	MAX_SAMPLE_RATE       = 120.0 // (Hz) upper clamp of the rate estimate
	RATE_WINDOW           = 50    // number of most recent deltas considered by the rate estimator
	RATE_PAUSE_THRESHOLD  = 1000  // (ms) deltas at or above this are pauses, not samples
	RATE_SMOOTHING        = 0.2   // weight of the new rate estimate
	MEDIAN_KERNEL         = 13    // median filter kernel size per zone
	ACTIVE_ZONES          = 8     // number of highest-variance zones averaged into the signal
	SAVGOL_WINDOW         = 15    // Savitzky-Golay window length
	SAVGOL_ORDER          = 3     // Savitzky-Golay polynomial order
	MIN_REP_DURATION      = 500   // (ms) shorter candidates are detector artifacts
	MAX_REP_DURATION      = 10000 // (ms) longer candidates are stalls
	MIN_ROM               = 30.0  // (mm) floor of the dynamic ROM and prominence thresholds
	ROM_STD_RATIO         = 0.5   // dynamic ROM and prominence scale with the signal std
	REP_SPACING           = 0.8   // (s) minimum time between two peaks
	BASELINE_DURATION     = 1.5   // (s) length of the height baseline window
	BASELINE_MIN_SAMPLES  = 10    // baseline windows need more samples than this
	HEIGHT_MARGIN_MIN     = 15.0  // (mm) minimum peak height above baseline
	HEIGHT_MARGIN_MAX     = 180.0 // (mm) cap of the minimum peak height above baseline
	HEIGHT_STD_RATIO      = 5.0   // peak height margin in baseline standard deviations
	SOFT_HEIGHT_MARGIN    = 80.0  // (mm) relaxed height of the second detection pass
	LIFTOFF_GAP           = 0.5   // (s) first-rep baseline ends this long before the first peak
	LIFTOFF_MARGIN_MAX    = 160.0 // (mm) cap of the liftoff threshold above baseline
	LIFTOFF_STD_RATIO     = 4.0   // liftoff margin in baseline standard deviations
	MIN_CORRECTION_FRAMES = 6     // sets with fewer frames keep their live reps
)

type Number interface {
	constraints.Float | constraints.Integer
}

var ErrEmptyInput = errors.New("input data cannot be empty")

type ValidatedRep struct {
	RepNum          int     `codec:"," json:"rep_num"`
	ConcentricStart float64 `codec:"," json:"concentric_start"` // (ms)
	EccentricStart  float64 `codec:"," json:"eccentric_start"`  // (ms) time of the peak
	RepEnd          float64 `codec:"," json:"rep_end"`          // (ms)
	RomMm           float64 `codec:"," json:"rom_mm"`
	PeakIndex       int     `codec:"-" json:"-"`
}

type RepMetrics struct {
	RepNum                int     `codec:"," json:"rep_num"`
	RomMm                 float64 `codec:"," json:"rom_mm"`
	TotalDurationMs       float64 `codec:"," json:"total_duration_ms"`
	ConcentricDurationMs  float64 `codec:"," json:"concentric_duration_ms"`
	EccentricDurationMs   float64 `codec:"," json:"eccentric_duration_ms"`
	ConcentricVelocityMps float64 `codec:"," json:"concentric_velocity_mps"`
}

// SetBuffer holds the raw frames of one set. Frames must be appended in
// timestamp order.
type SetBuffer struct {
	SessionId uuid.UUID
	Frames    []tof.Frame
}

func NewSetBuffer() *SetBuffer {
	return &SetBuffer{SessionId: uuid.New()}
}

type OutOfOrderFrameError struct{}

func (e *OutOfOrderFrameError) Error() string {
	return "Frame is older than the last buffered frame"
}

type DuplicateFrameError struct{}

func (e *DuplicateFrameError) Error() string {
	return "Frame is already buffered"
}

func (this *SetBuffer) Append(frame tof.Frame) error {
	if n := len(this.Frames); n > 0 {
		last := this.Frames[n-1]
		if frame.Timestamp < last.Timestamp {
			return &OutOfOrderFrameError{}
		}
		if frame.Timestamp == last.Timestamp && frame.FrameId == last.FrameId {
			return &DuplicateFrameError{}
		}
	}
	this.Frames = append(this.Frames, frame)
	return nil
}

func (this *SetBuffer) Len() int {
	return len(this.Frames)
}

func (this *SetBuffer) Timestamps() []float64 {
	ts := make([]float64, len(this.Frames))
	for i, f := range this.Frames {
		ts[i] = float64(f.Timestamp)
	}
	return ts
}

// Tuning collects the knobs of the preprocessing and correction pipeline.
type Tuning struct {
	MedianKernel     int     `yaml:"median_kernel"`
	ActiveZones      int     `yaml:"active_zones"`
	SavgolWindow     int     `yaml:"savgol_window"`
	SavgolOrder      int     `yaml:"savgol_order"`
	MinRepDurationMs float64 `yaml:"min_rep_duration_ms"`
	MaxRepDurationMs float64 `yaml:"max_rep_duration_ms"`
	MinRomMm         float64 `yaml:"min_rom_mm"`
}

func DefaultTuning() Tuning {
	return Tuning{
		MedianKernel:     MEDIAN_KERNEL,
		ActiveZones:      ACTIVE_ZONES,
		SavgolWindow:     SAVGOL_WINDOW,
		SavgolOrder:      SAVGOL_ORDER,
		MinRepDurationMs: MIN_REP_DURATION,
		MaxRepDurationMs: MAX_REP_DURATION,
		MinRomMm:         MIN_ROM,
	}
}

// withDefaults fills zero fields so a partially configured Tuning is usable.
func (this Tuning) withDefaults() Tuning {
	d := DefaultTuning()
	if this.MedianKernel <= 0 {
		this.MedianKernel = d.MedianKernel
	}
	if this.MedianKernel%2 == 0 {
		this.MedianKernel++
	}
	if this.ActiveZones <= 0 {
		this.ActiveZones = d.ActiveZones
	}
	if this.SavgolWindow <= 0 {
		this.SavgolWindow = d.SavgolWindow
	}
	if this.SavgolOrder <= 0 {
		this.SavgolOrder = d.SavgolOrder
	}
	if this.MinRepDurationMs <= 0 {
		this.MinRepDurationMs = d.MinRepDurationMs
	}
	if this.MaxRepDurationMs <= 0 {
		this.MaxRepDurationMs = d.MaxRepDurationMs
	}
	if this.MinRomMm <= 0 {
		this.MinRomMm = d.MinRomMm
	}
	return this
}

type Result struct {
	Signal  *Signal
	Reps    []ValidatedRep
	Metrics []RepMetrics
}

// Run preprocesses a set buffer, corrects its reps and derives their
// metrics. hzHint is only used when the frame timestamps do not yield a
// rate, which is always the case for legacy frames stamped at receive time
// in bursts.
func Run(buf *SetBuffer, hzHint float64, tuning Tuning, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sig, err := Preprocess(buf, tuning)
	if err != nil {
		return nil, err
	}
	c := Corrector{Tuning: tuning, Logger: logger}
	reps := c.Correct(sig.Timestamps, sig.Samples, hzHint)
	return &Result{
		Signal:  sig,
		Reps:    reps,
		Metrics: Metrics(reps),
	}, nil
}

func toFloats[T Number](values []T) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
