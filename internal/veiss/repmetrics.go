package veiss

import "math"

// Metrics derives durations and mean concentric velocity for each rep.
func Metrics(reps []ValidatedRep) []RepMetrics {
	metrics := make([]RepMetrics, len(reps))
	for i, r := range reps {
		conc := math.Max(0, r.EccentricStart-r.ConcentricStart)
		ecc := math.Max(0, r.RepEnd-r.EccentricStart)
		m := RepMetrics{
			RepNum:               r.RepNum,
			RomMm:                r.RomMm,
			TotalDurationMs:      r.RepEnd - r.ConcentricStart,
			ConcentricDurationMs: conc,
			EccentricDurationMs:  ecc,
		}
		if conc > 0 {
			m.ConcentricVelocityMps = (r.RomMm / 1000) / (conc / 1000)
		}
		metrics[i] = m
	}
	return metrics
}
