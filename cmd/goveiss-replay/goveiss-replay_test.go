package main

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goveiss/internal/bridge"
	"goveiss/internal/capture"
	"goveiss/internal/formats/tof"
	"goveiss/internal/session"
	"goveiss/internal/veiss"
)

func humps(t *testing.T, start uint64) *veiss.SetBuffer {
	buf := veiss.NewSetBuffer()
	for i := 0; i < 360; i++ {
		ts := float64(i) / 30
		d := 500.0
		for _, c := range []float64{3, 6, 9} {
			d += 200 * math.Exp(-(ts-c)*(ts-c)/(2*0.25*0.25))
		}
		zones := make([]uint16, 8)
		for z := range zones {
			zones[z] = uint16(math.Round(d))
		}
		require.NoError(t, buf.Append(tof.Frame{Timestamp: start + uint64(math.Round(ts*1000)), FrameId: uint16(i), Zones: zones}))
	}
	return buf
}

func TestReplayedCapturesBecomeSets(t *testing.T) {
	captures := []capture.Capture{
		{SessionId: "1", Buffer: humps(t, 1000)},
		{SessionId: "2", Buffer: humps(t, 90000)},
	}
	start := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	evs, err := events(captures, "squat", 80, start)
	require.NoError(t, err)

	e := session.NewEngine(session.Options{Tuning: veiss.DefaultTuning()})
	_, ch := e.Subscribe()
	for _, ev := range evs {
		// every event survives the trip through the bridge codec
		m, err := bridge.FromEvent(ev)
		require.NoError(t, err)
		decoded, err := m.Event()
		require.NoError(t, err)
		require.NoError(t, e.Submit(context.Background(), decoded))
	}
	require.NoError(t, e.Close())

	var outs []session.Output
	for out := range ch {
		outs = append(outs, out)
	}
	require.Len(t, outs, 5)
	for _, i := range []int{1, 3} {
		vr := outs[i].(*session.ValidatedReps)
		assert.Equal(t, session.SOURCE_CORRECTION, vr.Source)
		assert.Equal(t, 3, vr.Count)
		assert.Equal(t, 360, vr.Frames)
		assert.Equal(t, 80.0, vr.Summary.Weight)
	}
	assert.Equal(t, 2, outs[4].(*session.ExerciseFinished).Sets)
}

func TestEventsTiming(t *testing.T) {
	start := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	buf := veiss.NewSetBuffer()
	require.NoError(t, buf.Append(tof.Frame{Timestamp: 5000, Zones: []uint16{500}}))
	require.NoError(t, buf.Append(tof.Frame{Timestamp: 5100, FrameId: 1, Zones: []uint16{500}}))

	evs, err := events([]capture.Capture{{Buffer: buf}}, "row", 0, start)
	require.NoError(t, err)
	require.Len(t, evs, 6)
	assert.IsType(t, &session.ExerciseStart{}, evs[0])
	assert.Equal(t, start.Add(SETTLE_DELAY), evs[2].(*session.CounterEvent).ReceivedAt)
	assert.Equal(t, start.Add(SETTLE_DELAY+100*time.Millisecond), evs[4].(*session.FrameEvent).ReceivedAt)
	assert.Equal(t, start.Add(SETTLE_DELAY+100*time.Millisecond+SET_REST), evs[5].(*session.ExerciseEnd).ReceivedAt)
}
