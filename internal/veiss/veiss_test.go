package veiss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goveiss/internal/formats/tof"
)

// humps samples base plus one Gaussian bump of the given height per center.
func humps(hz, seconds float64, centers []float64, sigma, height, base float64) (ts, x []float64) {
	n := int(seconds * hz)
	ts = make([]float64, n)
	x = make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / hz
		ts[i] = t * 1000
		x[i] = base
		for _, c := range centers {
			x[i] += height * math.Exp(-(t-c)*(t-c)/(2*sigma*sigma))
		}
	}
	return
}

func uniformTimestamps(hz float64, n int) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i) * 1000 / hz
	}
	return ts
}

func TestSetBufferRejectsOutOfOrderFrames(t *testing.T) {
	buf := NewSetBuffer()
	require.NoError(t, buf.Append(tof.Frame{Timestamp: 100, FrameId: 1}))
	require.NoError(t, buf.Append(tof.Frame{Timestamp: 100, FrameId: 2}))

	var older *OutOfOrderFrameError
	assert.ErrorAs(t, buf.Append(tof.Frame{Timestamp: 99, FrameId: 3}), &older)
	var dup *DuplicateFrameError
	assert.ErrorAs(t, buf.Append(tof.Frame{Timestamp: 100, FrameId: 2}), &dup)

	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, []float64{100, 100}, buf.Timestamps())
}

func TestRunCountsRepsFromFrames(t *testing.T) {
	ts, x := humps(30, 12, []float64{3, 6, 9}, 0.25, 200, 500)
	buf := NewSetBuffer()
	for i := range x {
		zones := make([]uint16, 16)
		for z := range zones {
			if z < 8 {
				zones[z] = uint16(math.Round(x[i]))
			} else {
				// background clutter, barely moving
				zones[z] = uint16(1200 + i%2)
			}
		}
		require.NoError(t, buf.Append(tof.Frame{Timestamp: uint64(ts[i]), FrameId: uint16(i), Zones: zones}))
	}

	res, err := Run(buf, 30, DefaultTuning(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, res.Signal.ActiveZones)
	assert.Len(t, res.Signal.Samples, len(x))
	assert.Len(t, res.Reps, 3)
	assert.Len(t, res.Metrics, len(res.Reps))
}

func TestRunEmptyBuffer(t *testing.T) {
	_, err := Run(NewSetBuffer(), 30, DefaultTuning(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
