package session

import (
	"time"

	"github.com/google/uuid"

	"goveiss/internal/formats/tof"
	"goveiss/internal/veiss"
)

type MetricKind uint8

const (
	METRIC_VELOCITY MetricKind = iota
	METRIC_ROM
	METRIC_CONCENTRIC
	METRIC_ECCENTRIC
)

func (this MetricKind) String() string {
	switch this {
	case METRIC_VELOCITY:
		return "velocity"
	case METRIC_ROM:
		return "rom"
	case METRIC_CONCENTRIC:
		return "concentric"
	case METRIC_ECCENTRIC:
		return "eccentric"
	}
	return "unknown"
}

type CounterKind uint8

const (
	COUNTER_REPS CounterKind = iota
	COUNTER_SET
)

func (this CounterKind) String() string {
	if this == COUNTER_SET {
		return "set"
	}
	return "reps"
}

type Source uint8

const (
	SOURCE_CORRECTION Source = iota // reps validated from the raw distance signal
	SOURCE_LIVE                     // too few frames, reps as reported by the device
)

func (this Source) String() string {
	if this == SOURCE_LIVE {
		return "live"
	}
	return "correction"
}

// Event is an input of the session state machine. A zero ReceivedAt is
// replaced by the time the engine accepts the event.
type Event interface {
	receivedAt() time.Time
}

type FrameEvent struct {
	ReceivedAt time.Time
	Format     tof.Format
	Payload    []byte
}

type MetricEvent struct {
	ReceivedAt time.Time
	Kind       MetricKind
	Value      float64
}

type CounterEvent struct {
	ReceivedAt time.Time
	Counter    CounterKind
	Raw        []byte
}

type ExerciseStart struct {
	ReceivedAt time.Time
	ExerciseId string
}

type ExerciseEnd struct {
	ReceivedAt time.Time
}

type WeightEvent struct {
	ReceivedAt time.Time
	Weight     float64 // (kg) load of the set in progress
}

func (this *FrameEvent) receivedAt() time.Time    { return this.ReceivedAt }
func (this *MetricEvent) receivedAt() time.Time   { return this.ReceivedAt }
func (this *CounterEvent) receivedAt() time.Time  { return this.ReceivedAt }
func (this *ExerciseStart) receivedAt() time.Time { return this.ReceivedAt }
func (this *ExerciseEnd) receivedAt() time.Time   { return this.ReceivedAt }
func (this *WeightEvent) receivedAt() time.Time   { return this.ReceivedAt }

// Output is produced by the engine, in the order the sets were completed.
type Output interface {
	Exercise() string
}

type SetCompleted struct {
	ExerciseId string            `codec:"," json:"exercise_id"`
	SetNumber  int               `codec:"," json:"set_number"`
	Live       []veiss.RepSample `codec:"," json:"reps"`
	Weight     float64           `codec:"," json:"weight"`
}

type ValidatedReps struct {
	ExerciseId string               `codec:"," json:"exercise_id"`
	SetNumber  int                  `codec:"," json:"set_number"`
	BufferId   uuid.UUID            `codec:"-" json:"buffer_id"`
	Count      int                  `codec:"," json:"count"`
	Source     Source               `codec:"," json:"source"`
	DeviceReps int                  `codec:"," json:"device_reps"`
	Frames     int                  `codec:"," json:"frames"`
	Reps       []veiss.ValidatedRep `codec:"," json:"reps"`
	Metrics    []veiss.RepMetrics   `codec:"," json:"metrics"`
	Samples    []veiss.RepSample    `codec:"," json:"samples"`
	Summary    veiss.Summary        `codec:"," json:"summary"`
	Notes      []veiss.CoachNote    `codec:"," json:"notes"`
}

type ExerciseFinished struct {
	ExerciseId string `codec:"," json:"exercise_id"`
	Sets       int    `codec:"," json:"sets"`
}

func (this *SetCompleted) Exercise() string     { return this.ExerciseId }
func (this *ValidatedReps) Exercise() string    { return this.ExerciseId }
func (this *ExerciseFinished) Exercise() string { return this.ExerciseId }
