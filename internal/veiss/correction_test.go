package veiss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectThreeHumps(t *testing.T) {
	ts, x := humps(30, 12, []float64{3, 6, 9}, 0.25, 200, 500)

	reps := Correct(ts, x, 30)
	require.Len(t, reps, 3)
	for i, r := range reps {
		assert.Equal(t, i+1, r.RepNum)
		assert.InEpsilon(t, 200.0, r.RomMm, 0.05, "rep %d", r.RepNum)
		assert.Less(t, r.ConcentricStart, r.EccentricStart)
		assert.Less(t, r.EccentricStart, r.RepEnd)
		d := r.RepEnd - r.ConcentricStart
		assert.GreaterOrEqual(t, d, float64(MIN_REP_DURATION))
		assert.LessOrEqual(t, d, float64(MAX_REP_DURATION))
	}
	assert.InDelta(t, 3000.0, reps[0].EccentricStart, 1)
	assert.InDelta(t, 6000.0, reps[1].EccentricStart, 1)
	assert.InDelta(t, 9000.0, reps[2].EccentricStart, 1)

	// consecutive reps share the trough between them
	assert.Equal(t, reps[0].RepEnd, reps[1].ConcentricStart)
	assert.Equal(t, reps[1].RepEnd, reps[2].ConcentricStart)
}

func TestCorrectRejectsFastHump(t *testing.T) {
	const hz = 100.0
	ts := uniformTimestamps(hz, 600)
	x := make([]float64, len(ts))
	for i := range x {
		x[i] = 500
		// 100 ms up, 100 ms down
		switch {
		case i > 300 && i <= 310:
			x[i] += 20 * float64(i-300)
		case i > 310 && i < 320:
			x[i] += 20 * float64(320-i)
		}
	}
	assert.Empty(t, Correct(ts, x, hz))
}

func TestCorrectRejectsShallowHump(t *testing.T) {
	ts, x := humps(30, 8, []float64{4}, 0.3, 10, 500)
	for i := range x {
		if i%2 == 0 {
			x[i] += 1
		} else {
			x[i] -= 1
		}
	}
	assert.Empty(t, Correct(ts, x, 30))
}

func TestCorrectNaNAborts(t *testing.T) {
	ts, x := humps(30, 12, []float64{3, 6, 9}, 0.25, 200, 500)
	x[200] = math.NaN()
	assert.Empty(t, Correct(ts, x, 30))
	assert.Empty(t, Correct(nil, nil, 30))
}

func TestCorrectTruncatesMismatchedLengths(t *testing.T) {
	ts, x := humps(30, 12, []float64{3, 6, 9}, 0.25, 200, 500)
	want := Correct(ts, x, 30)
	require.Len(t, want, 3)

	longTs := append([]float64{-300, -200, -100}, ts...)
	assert.Equal(t, want, Correct(longTs, x, 30))

	longX := append([]float64{9000, 0, 9000, 0}, x...)
	assert.Equal(t, want, Correct(ts, longX, 30))
}

func TestCorrectFlatSignal(t *testing.T) {
	ts := uniformTimestamps(30, 300)
	x := make([]float64, len(ts))
	for i := range x {
		x[i] = 640
	}
	assert.Empty(t, Correct(ts, x, 30))
}

func TestCorrectorTuning(t *testing.T) {
	ts, x := humps(30, 12, []float64{3, 6, 9}, 0.25, 200, 500)
	c := Corrector{Tuning: Tuning{MinRomMm: 250}}
	assert.Empty(t, c.Correct(ts, x, 30))

	c = Corrector{Tuning: Tuning{MaxRepDurationMs: 2500}}
	reps := c.Correct(ts, x, 30)
	require.Len(t, reps, 1)
	assert.InDelta(t, 3000.0, reps[0].EccentricStart, 1)
}
