package veiss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(vel, rom, conc, ecc float64) RepSample {
	return RepSample{Velocity: ptr(vel), ROM: ptr(rom), Concentric: ptr(conc), Eccentric: ptr(ecc)}
}

func TestSummarize(t *testing.T) {
	reps := []RepSample{
		sample(0.5, 400, 0.8, 2.0),
		sample(0.45, 410, 0.9, 2.5),
		sample(0.4, 390, 1.0, 3.0),
	}
	s := Summarize(reps, 60)
	assert.Equal(t, 3, s.Reps)
	assert.Equal(t, 60.0, s.Weight)
	assert.Equal(t, 0.45, s.AvgVelocity)
	assert.Equal(t, 2.5, s.AvgEccentric)
	assert.Equal(t, 400.0, s.AvgROM)
	assert.Equal(t, 20.0, s.VelocityLossPct)
}

func TestSummarizeDerivesMissingVelocity(t *testing.T) {
	reps := []RepSample{{ROM: ptr(300), Concentric: ptr(1), Eccentric: ptr(2)}}
	s := Summarize(reps, 0)
	assert.Equal(t, 0.1, s.AvgVelocity)
	assert.Zero(t, s.VelocityLossPct)

	assert.Equal(t, Summary{}, Summarize(nil, 0))
}

func TestCoachNotes(t *testing.T) {
	notes := CoachNotes([]RepSample{
		sample(0.5, 400, 0.8, 1.0),
		sample(0.25, 350, 0.9, 1.2),
	})
	require.Len(t, notes, 3)
	assert.Equal(t, "load", notes[0].Key)
	assert.Equal(t, "High fatigue", notes[0].Label)
	assert.Equal(t, "tempo", notes[1].Key)
	assert.Equal(t, "Too fast", notes[1].Label)
	assert.Equal(t, "rom", notes[2].Key)
	assert.Equal(t, "Breaking down", notes[2].Label)

	notes = CoachNotes([]RepSample{
		sample(0.5, 400, 0.8, 3.0),
		sample(0.48, 400, 0.9, 3.0),
	})
	require.Len(t, notes, 3)
	assert.Equal(t, "Easy", notes[0].Label)
	assert.Equal(t, "On target", notes[1].Label)
	assert.Equal(t, "Consistent", notes[2].Label)

	assert.Empty(t, CoachNotes(nil))
}

func TestReconcileFallsBackToLive(t *testing.T) {
	metrics := []RepMetrics{
		{RepNum: 1, RomMm: 200, TotalDurationMs: 2000, ConcentricDurationMs: 800, EccentricDurationMs: 1200, ConcentricVelocityMps: 0.25},
		{RepNum: 2, RomMm: 180, TotalDurationMs: 0},
	}
	live := []RepSample{{}, {Velocity: ptr(0.3), Concentric: ptr(0.7)}}

	got := Reconcile(metrics, live)
	require.Len(t, got, 2)
	assert.Equal(t, 0.25, *got[0].Velocity)
	assert.Equal(t, 0.8, *got[0].Concentric)
	assert.Equal(t, 1.2, *got[0].Eccentric)
	assert.Equal(t, 180.0, *got[1].ROM)
	assert.Equal(t, 0.3, *got[1].Velocity)
	assert.Equal(t, 0.7, *got[1].Concentric)
	assert.Nil(t, got[1].Eccentric)
}
