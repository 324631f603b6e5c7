package session

import (
	"log/slog"
	"math"
	"time"

	"goveiss/internal/formats/tof"
	"goveiss/internal/veiss"
)

const (
	BASELINE_HOLD = 200 * time.Millisecond // a set counter value must persist this long to become the baseline
	RATE_HISTORY  = veiss.RATE_WINDOW + 1  // frame timestamps kept for the running rate estimate
)

type State uint8

const (
	STATE_IDLE State = iota
	STATE_AWAITING_BASELINE
	STATE_TRACKING
	STATE_FINISHED
)

func (this State) String() string {
	switch this {
	case STATE_AWAITING_BASELINE:
		return "awaiting-baseline"
	case STATE_TRACKING:
		return "tracking"
	case STATE_FINISHED:
		return "finished"
	}
	return "idle"
}

// correction is a completed set handed off for validation. It owns the
// buffer, the session keeps appending to a fresh one.
type correction struct {
	ExerciseId string
	SetNumber  int
	Buffer     *veiss.SetBuffer
	Live       []veiss.RepSample
	Weight     float64
	DeviceReps int
	RateHint   float64
}

// step is one effect of an event, either an output ready to publish or a
// correction whose result is published in its place.
type step struct {
	output     Output
	correction *correction
}

// SessionState is the live segmentation state of one device. It is owned
// by a single goroutine.
type SessionState struct {
	State      State
	ExerciseId string
	SetNumber  int // 1-based number of the set in progress
	Buffer     *veiss.SetBuffer
	Live       []veiss.RepSample
	Weight     float64
	DeviceReps int
	Rate       float64 // (Hz) running estimate over the frames of the set in progress
	SetsDone   int

	current *veiss.RepSample

	gateOpen     bool
	preStartReps float64
	hasPreStart  bool
	lastReps     float64
	hasLastReps  bool

	provisional   int
	provisionalAt time.Time
	hasBaseline   bool
	setCounter    int

	recent []float64

	logger *slog.Logger
}

func NewSessionState(logger *slog.Logger) *SessionState {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionState{logger: logger}
}

func (this *SessionState) active() bool {
	return this.State == STATE_AWAITING_BASELINE || this.State == STATE_TRACKING
}

// handle applies one event and returns its effects in publication order.
func (this *SessionState) handle(ev Event, now time.Time) []step {
	if _, starting := ev.(*ExerciseStart); !starting && this.State == STATE_AWAITING_BASELINE {
		this.confirmBaseline(now)
	}

	switch e := ev.(type) {
	case *ExerciseStart:
		return this.start(e.ExerciseId, now)
	case *ExerciseEnd:
		return this.finish()
	case *FrameEvent:
		this.frame(e.Format, e.Payload, now)
	case *MetricEvent:
		this.metric(e.Kind, e.Value)
	case *CounterEvent:
		return this.counter(e.Counter, e.Raw, now)
	case *WeightEvent:
		if this.active() {
			this.Weight = e.Weight
		}
	}
	return nil
}

func (this *SessionState) start(exerciseId string, now time.Time) []step {
	var steps []step
	if this.active() {
		this.logger.Info("exercise started while another is running, finishing it",
			"running", this.ExerciseId, "starting", exerciseId)
		steps = this.finish()
	}

	this.State = STATE_AWAITING_BASELINE
	this.ExerciseId = exerciseId
	this.SetNumber = 1
	this.SetsDone = 0
	this.openSet()
	this.Weight = 0

	// the device keeps counting from the previous exercise until it resets
	this.gateOpen = false
	this.preStartReps, this.hasPreStart = this.lastReps, this.hasLastReps
	this.hasBaseline = false
	this.provisionalAt = time.Time{}

	this.logger.Info("exercise started", "exercise", exerciseId, "at", now)
	return steps
}

func (this *SessionState) openSet() {
	this.Buffer = veiss.NewSetBuffer()
	this.Live = nil
	this.current = nil
	this.DeviceReps = 0
	this.Rate = 0
	this.recent = this.recent[:0]
}

func (this *SessionState) frame(format tof.Format, payload []byte, now time.Time) {
	if !this.active() {
		return
	}
	f, err := tof.DecodeFrame(format, payload)
	if err != nil {
		this.logger.Debug("dropping malformed frame", "error", err, "bytes", len(payload))
		return
	}
	if f.Legacy {
		f.Timestamp = uint64(now.UnixMilli())
	}
	if err := this.Buffer.Append(f); err != nil {
		this.logger.Debug("dropping frame", "error", err, "frame", f.FrameId, "timestamp", f.Timestamp)
		return
	}

	if len(this.recent) == RATE_HISTORY {
		copy(this.recent, this.recent[1:])
		this.recent = this.recent[:RATE_HISTORY-1]
	}
	this.recent = append(this.recent, float64(f.Timestamp))
	this.Rate = veiss.EstimateRate(this.recent, this.Rate)
}

// metric merges a per-rep notification into the rep in progress. Velocity
// is the last value the firmware sends for a rep, so a second velocity
// starts the next rep.
func (this *SessionState) metric(kind MetricKind, value float64) {
	if !this.active() || math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	if this.current == nil {
		this.current = &veiss.RepSample{}
	} else if kind == METRIC_VELOCITY && this.current.Velocity != nil {
		this.finalizeRep()
		this.current = &veiss.RepSample{}
	}

	v := value
	switch kind {
	case METRIC_VELOCITY:
		this.current.Velocity = &v
	case METRIC_ROM:
		this.current.ROM = &v
	case METRIC_CONCENTRIC:
		this.current.Concentric = &v
	case METRIC_ECCENTRIC:
		this.current.Eccentric = &v
	}
}

func (this *SessionState) finalizeRep() {
	if this.current != nil && !this.current.Empty() {
		this.Live = append(this.Live, *this.current)
	}
	this.current = nil
}

func (this *SessionState) counter(kind CounterKind, raw []byte, now time.Time) []step {
	v, err := ParseValue(raw)
	if err != nil {
		this.logger.Debug("ignoring counter value", "counter", kind, "error", err)
		return nil
	}

	if kind == COUNTER_REPS {
		this.reps(v)
		return nil
	}
	if !this.active() {
		return nil
	}

	key := setKey(v)
	if !this.hasBaseline {
		this.captureBaseline(key, now)
		return nil
	}
	if key == this.setCounter {
		return nil
	}
	this.logger.Debug("set counter changed", "from", this.setCounter, "to", key)
	this.setCounter = key
	return this.boundary()
}

func (this *SessionState) reps(v float64) {
	if this.active() && !this.gateOpen {
		if !(v == 0 || v == 1 || (this.hasPreStart && v < this.preStartReps)) {
			return
		}
		this.gateOpen = true
		this.logger.Debug("rep counter reset observed", "value", v)
	}
	this.lastReps, this.hasLastReps = v, true
	if this.active() {
		this.DeviceReps = int(v)
	}
}

// captureBaseline records a set counter value seen before the baseline is
// confirmed. A different value restarts the wait.
func (this *SessionState) captureBaseline(key int, now time.Time) {
	if this.provisionalAt.IsZero() || key != this.provisional {
		this.provisional = key
		this.provisionalAt = now
	}
}

// confirmBaseline makes the provisional set counter value the baseline once
// it has been held for BASELINE_HOLD. Devices notify the counter only when
// it changes, so every event re-checks the hold, and a change arriving after
// the hold is a set boundary.
func (this *SessionState) confirmBaseline(now time.Time) {
	if this.provisionalAt.IsZero() || now.Sub(this.provisionalAt) < BASELINE_HOLD {
		return
	}
	this.hasBaseline = true
	this.setCounter = this.provisional
	this.State = STATE_TRACKING
	this.logger.Debug("set counter baseline confirmed", "value", this.provisional)
}

// boundary closes the set in progress and opens the next one. A set without
// live reps and without enough frames is a counter glitch and is dropped
// without using up a set number.
func (this *SessionState) boundary() []step {
	this.finalizeRep()
	if len(this.Live) == 0 && this.Buffer.Len() < veiss.MIN_CORRECTION_FRAMES {
		this.logger.Info("discarding empty set", "exercise", this.ExerciseId, "set", this.SetNumber, "frames", this.Buffer.Len())
		this.openSet()
		return nil
	}

	c := &correction{
		ExerciseId: this.ExerciseId,
		SetNumber:  this.SetNumber,
		Buffer:     this.Buffer,
		Live:       this.Live,
		Weight:     this.Weight,
		DeviceReps: this.DeviceReps,
		RateHint:   this.Rate,
	}
	steps := []step{
		{output: &SetCompleted{
			ExerciseId: c.ExerciseId,
			SetNumber:  c.SetNumber,
			Live:       c.Live,
			Weight:     c.Weight,
		}},
		{correction: c},
	}

	this.SetsDone++
	this.SetNumber++
	this.openSet()
	return steps
}

func (this *SessionState) finish() []step {
	if !this.active() {
		return nil
	}
	steps := this.boundary()
	steps = append(steps, step{output: &ExerciseFinished{
		ExerciseId: this.ExerciseId,
		Sets:       this.SetsDone,
	}})
	this.State = STATE_FINISHED
	this.logger.Info("exercise finished", "exercise", this.ExerciseId, "sets", this.SetsDone)
	return steps
}
