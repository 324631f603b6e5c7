package veiss

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reps := []ValidatedRep{
		{RepNum: 1, ConcentricStart: 0, EccentricStart: 800, RepEnd: 2000, RomMm: 200},
		{RepNum: 2, ConcentricStart: 1000, EccentricStart: 900, RepEnd: 800, RomMm: 50},
	}
	want := []RepMetrics{
		{RepNum: 1, RomMm: 200, TotalDurationMs: 2000, ConcentricDurationMs: 800, EccentricDurationMs: 1200, ConcentricVelocityMps: 0.25},
		{RepNum: 2, RomMm: 50, TotalDurationMs: -200},
	}
	if diff := cmp.Diff(want, Metrics(reps), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestMetricsIdempotent(t *testing.T) {
	ts, x := humps(30, 12, []float64{3, 6, 9}, 0.25, 200, 500)
	reps := Correct(ts, x, 30)
	first := Metrics(reps)
	assert.Equal(t, first, Metrics(reps))
	assert.Len(t, first, len(reps))
	assert.Empty(t, Metrics(nil))
}
