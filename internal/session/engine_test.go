package session

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goveiss/internal/formats/tof"
	"goveiss/internal/veiss"
)

// humpFrames encodes a set of three Gaussian reps sampled at 30 Hz.
func humpFrames(start uint64) [][]byte {
	var payloads [][]byte
	for i := 0; i < 360; i++ {
		t := float64(i) / 30
		d := 500.0
		for _, c := range []float64{3, 6, 9} {
			d += 200 * math.Exp(-(t-c)*(t-c)/(2*0.25*0.25))
		}
		zones := make([]uint16, 8)
		for z := range zones {
			zones[z] = uint16(math.Round(d))
		}
		payloads = append(payloads, encode(tof.Frame{
			Timestamp: start + uint64(math.Round(t*1000)),
			FrameId:   uint16(i),
			Zones:     zones,
		}))
	}
	return payloads
}

func submitAll(t *testing.T, e *Engine, events ...Event) {
	for _, ev := range events {
		require.NoError(t, e.Submit(context.Background(), ev))
	}
}

func collect(ch <-chan Output) []Output {
	var outs []Output
	for out := range ch {
		outs = append(outs, out)
	}
	return outs
}

func TestEngineValidatesSetsInOrder(t *testing.T) {
	e := NewEngine(Options{Tuning: veiss.DefaultTuning()})
	_, ch := e.Subscribe()
	_, other := e.Subscribe()

	submitAll(t, e,
		&CounterEvent{ReceivedAt: ms(-1000), Counter: COUNTER_REPS, Raw: []byte("6")},
		&ExerciseStart{ReceivedAt: ms(0), ExerciseId: "squat"},
		&CounterEvent{ReceivedAt: ms(10), Counter: COUNTER_SET, Raw: []byte("2")},
		&CounterEvent{ReceivedAt: ms(300), Counter: COUNTER_SET, Raw: []byte("2")},
		&WeightEvent{ReceivedAt: ms(400), Weight: 80},
	)
	for _, p := range humpFrames(100000) {
		submitAll(t, e, &FrameEvent{Format: tof.FORMAT_A, Payload: p})
	}
	submitAll(t, e,
		&CounterEvent{Counter: COUNTER_REPS, Raw: []byte("0")},
		&CounterEvent{Counter: COUNTER_REPS, Raw: []byte("3")},
		&CounterEvent{ReceivedAt: ms(13000), Counter: COUNTER_SET, Raw: []byte("3")},
		// second set has live reps but too few frames to correct
		&MetricEvent{Kind: METRIC_ROM, Value: 380},
		&MetricEvent{Kind: METRIC_VELOCITY, Value: 0.6},
		&MetricEvent{Kind: METRIC_ROM, Value: 370},
		&MetricEvent{Kind: METRIC_VELOCITY, Value: 0.5},
		&ExerciseEnd{ReceivedAt: ms(30000)},
	)
	require.NoError(t, e.Close())
	assert.Equal(t, STATE_FINISHED, e.State())

	outs := collect(ch)
	require.Len(t, outs, 5)
	assert.Equal(t, outs, collect(other))

	sc1 := outs[0].(*SetCompleted)
	assert.Equal(t, 1, sc1.SetNumber)
	assert.Equal(t, 80.0, sc1.Weight)

	vr1 := outs[1].(*ValidatedReps)
	assert.Equal(t, 1, vr1.SetNumber)
	assert.Equal(t, SOURCE_CORRECTION, vr1.Source)
	assert.Equal(t, 3, vr1.Count)
	assert.Equal(t, 3, vr1.DeviceReps)
	assert.Len(t, vr1.Metrics, 3)
	assert.Equal(t, 360, vr1.Frames)
	assert.Equal(t, 80.0, vr1.Summary.Weight)

	sc2 := outs[2].(*SetCompleted)
	assert.Equal(t, 2, sc2.SetNumber)
	assert.Len(t, sc2.Live, 2)

	vr2 := outs[3].(*ValidatedReps)
	assert.Equal(t, 2, vr2.SetNumber)
	assert.Equal(t, SOURCE_LIVE, vr2.Source)
	assert.Equal(t, 2, vr2.Count)
	assert.NotEqual(t, vr1.BufferId, vr2.BufferId)
	assert.Equal(t, 2, vr2.Summary.Reps)

	ef := outs[4].(*ExerciseFinished)
	assert.Equal(t, "squat", ef.ExerciseId)
	assert.Equal(t, 2, ef.Sets)
}

func TestEngineCloseFlushes(t *testing.T) {
	e := NewEngine(Options{})
	_, ch := e.Subscribe()
	submitAll(t, e,
		&ExerciseStart{ExerciseId: "press"},
		&MetricEvent{Kind: METRIC_VELOCITY, Value: 0.4},
	)
	require.NoError(t, e.Close())

	outs := collect(ch)
	require.Len(t, outs, 3)
	assert.IsType(t, &SetCompleted{}, outs[0])
	assert.IsType(t, &ValidatedReps{}, outs[1])
	assert.IsType(t, &ExerciseFinished{}, outs[2])

	assert.ErrorIs(t, e.Submit(context.Background(), &ExerciseEnd{}), ErrClosed)
	assert.NoError(t, e.Close())
}

func TestEngineSubmitRacingClose(t *testing.T) {
	e := NewEngine(Options{Clock: func() time.Time { return t0 }})
	_, ch := e.Subscribe()

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if err := e.Submit(context.Background(), &ExerciseStart{ExerciseId: "curl"}); err == nil {
					accepted.Add(1)
				} else {
					assert.ErrorIs(t, err, ErrClosed)
				}
			}
		}()
	}
	require.NoError(t, e.Close())
	wg.Wait()

	// every accepted start finishes exactly one exercise
	var finished int32
	for _, out := range collect(ch) {
		if _, ok := out.(*ExerciseFinished); ok {
			finished++
		}
	}
	assert.Equal(t, accepted.Load(), finished)
}

func TestEngineUnsubscribe(t *testing.T) {
	e := NewEngine(Options{Clock: func() time.Time { return t0 }})
	id, ch := e.Subscribe()
	e.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
	e.Unsubscribe(id)
	require.NoError(t, e.Close())
}

func TestEngineSubmitHonoursContext(t *testing.T) {
	e := NewEngine(Options{})
	defer e.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// a cancelled context may still win against a free buffer slot
	err := e.Submit(ctx, &ExerciseEnd{})
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestValidateSet(t *testing.T) {
	buf := veiss.NewSetBuffer()
	for _, p := range humpFrames(5000) {
		f, err := tof.DecodeFrame(tof.FORMAT_A, p)
		require.NoError(t, err)
		require.NoError(t, buf.Append(f))
	}
	vr := ValidateSet("squat", 4, buf, 100, 0, veiss.DefaultTuning(), nil)
	assert.Equal(t, SOURCE_CORRECTION, vr.Source)
	assert.Equal(t, 3, vr.Count)
	assert.Equal(t, 4, vr.SetNumber)
	assert.Equal(t, buf.SessionId, vr.BufferId)
	assert.Equal(t, 100.0, vr.Summary.Weight)

	short := ValidateSet("squat", 1, veiss.NewSetBuffer(), 0, 0, veiss.DefaultTuning(), nil)
	assert.Equal(t, SOURCE_LIVE, short.Source)
	assert.Zero(t, short.Count)
}
