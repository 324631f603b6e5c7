package veiss

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	VELOCITY_LOSS_EASY    = 15.0 // (%) below this the load is easy
	VELOCITY_LOSS_FATIGUE = 30.0 // (%) fatigue is building from here
	VELOCITY_LOSS_HIGH    = 40.0 // (%) high fatigue from here
	ECCENTRIC_TOO_FAST    = 1.8  // (s) average lowering phase below this is too fast
	ECCENTRIC_TOO_SLOW    = 4.2  // (s) average lowering phase above this is very slow
	ROM_VARIED_CV         = 10.0 // (%) ROM coefficient of variation considered varied
	ROM_ERRATIC_CV        = 20.0 // (%) upper bound of the varied band
	ROM_END_DROP          = 10.0 // (%) last rep ROM this far below the best means breakdown
)

// RepSample is one rep as shown to the user. Fields the device or the
// correction could not provide are nil.
type RepSample struct {
	Velocity   *float64 `codec:",omitempty" json:"velocity,omitempty"`   // (m/s)
	ROM        *float64 `codec:",omitempty" json:"rom,omitempty"`        // (mm)
	Concentric *float64 `codec:",omitempty" json:"concentric,omitempty"` // (s)
	Eccentric  *float64 `codec:",omitempty" json:"eccentric,omitempty"`  // (s)
}

func (this *RepSample) Empty() bool {
	return this.Velocity == nil && this.ROM == nil && this.Concentric == nil && this.Eccentric == nil
}

type Summary struct {
	Reps            int     `codec:"," json:"reps"`
	Weight          float64 `codec:"," json:"weight"`
	AvgVelocity     float64 `codec:"," json:"avg_velocity"`
	AvgEccentric    float64 `codec:"," json:"avg_eccentric"`
	AvgROM          float64 `codec:"," json:"avg_rom"`
	VelocityLossPct float64 `codec:"," json:"velocity_loss_pct"`
}

type CoachNote struct {
	Key    string `codec:"," json:"key"`
	Title  string `codec:"," json:"title"`
	Label  string `codec:"," json:"label"`
	Action string `codec:"," json:"action"`
	Color  string `codec:"," json:"color"`
}

func ptr(v float64) *float64 {
	return &v
}

// Reconcile converts validated reps into rep samples. Values the
// correction could not derive fall back to the live sample at the same
// position.
func Reconcile(metrics []RepMetrics, live []RepSample) []RepSample {
	out := make([]RepSample, len(metrics))
	for i, m := range metrics {
		var fb RepSample
		if i < len(live) {
			fb = live[i]
		}

		s := RepSample{ROM: ptr(m.RomMm)}
		if m.ConcentricDurationMs > 0 {
			s.Concentric = ptr(m.ConcentricDurationMs / 1000)
		} else {
			s.Concentric = fb.Concentric
		}
		if m.EccentricDurationMs > 0 {
			s.Eccentric = ptr(m.EccentricDurationMs / 1000)
		} else {
			s.Eccentric = fb.Eccentric
		}
		switch {
		case m.ConcentricVelocityMps > 0:
			s.Velocity = ptr(m.ConcentricVelocityMps)
		case m.TotalDurationMs > 0:
			s.Velocity = ptr((m.RomMm / 1000) / (m.TotalDurationMs / 1000))
		default:
			s.Velocity = fb.Velocity
		}
		out[i] = s
	}
	return out
}

// Summarize aggregates the reps of a set. A rep without velocity gets one
// derived from its ROM and phase durations.
func Summarize(reps []RepSample, weight float64) Summary {
	vels, eccs, roms := series(reps)
	s := Summary{
		Reps:   len(reps),
		Weight: weight,
	}
	if len(vels) > 0 {
		s.AvgVelocity = round(stat.Mean(vels, nil), 3)
	}
	if len(eccs) > 0 {
		s.AvgEccentric = round(stat.Mean(eccs, nil), 3)
	}
	if len(roms) > 0 {
		s.AvgROM = round(stat.Mean(roms, nil), 3)
	}
	if len(vels) >= 2 && vels[0] > 0 {
		s.VelocityLossPct = round((1-vels[len(vels)-1]/vels[0])*100, 2)
	}
	return s
}

// CoachNotes grades load, tempo and depth consistency of a set.
func CoachNotes(reps []RepSample) []CoachNote {
	vels, eccs, roms := series(reps)
	var notes []CoachNote

	if len(vels) >= 2 {
		loss := 0.0
		if vels[0] > 0 {
			loss = (1 - vels[len(vels)-1]/vels[0]) * 100
		}
		n := CoachNote{Key: "load", Title: "Load", Label: "Strength zone", Action: "Keep the weight.", Color: "ok"}
		switch {
		case loss < VELOCITY_LOSS_EASY:
			n.Label, n.Action, n.Color = "Easy", "Add ~2.5-5% or 1-2 reps next set.", "good"
		case loss >= VELOCITY_LOSS_HIGH:
			n.Label, n.Action, n.Color = "High fatigue", "End the set sooner or drop 5-10%.", "bad"
		case loss >= VELOCITY_LOSS_FATIGUE:
			n.Label, n.Action, n.Color = "Fatigue building", "Rest longer or drop ~2.5-5%.", "warn"
		}
		notes = append(notes, n)
	}

	if len(eccs) > 0 {
		avg := stat.Mean(eccs, nil)
		n := CoachNote{Key: "tempo", Title: "Tempo", Label: "On target", Action: "Stay controlled ~2-4 s down.", Color: "ok"}
		if avg < ECCENTRIC_TOO_FAST {
			n.Label, n.Action, n.Color = "Too fast", "Slow the down phase a bit (~2-4 s).", "warn"
		} else if avg > ECCENTRIC_TOO_SLOW {
			n.Label, n.Action, n.Color = "Very slow", "Speed up slightly toward ~2-4 s.", "info"
		}
		notes = append(notes, n)
	}

	if len(roms) > 0 {
		cv := cvPct(roms)
		best := floats.Max(roms)
		drop := 0.0
		if best > 0 {
			drop = (best - roms[len(roms)-1]) / best * 100
		}
		n := CoachNote{Key: "rom", Title: "ROM", Label: "Consistent", Action: "Keep using the same depth each rep.", Color: "ok"}
		if cv >= ROM_VARIED_CV && cv < ROM_ERRATIC_CV {
			n.Label, n.Action, n.Color = "Varied", "Aim for the same depth each time.", "info"
		}
		if drop >= ROM_END_DROP {
			n.Label, n.Action, n.Color = "Breaking down", "Consider ending the set sooner or resting more.", "warn"
		}
		notes = append(notes, n)
	}

	return notes
}

func series(reps []RepSample) (vels, eccs, roms []float64) {
	for _, r := range reps {
		v := r.Velocity
		if (v == nil || *v == 0) && r.ROM != nil {
			dur := 0.0
			if r.Concentric != nil {
				dur += *r.Concentric
			}
			if r.Eccentric != nil {
				dur += *r.Eccentric
			}
			if dur > 0 {
				v = ptr(*r.ROM / 1000 / dur)
			}
		}
		if v != nil && isFinite(*v) {
			vels = append(vels, *v)
		}
		if r.Eccentric != nil && isFinite(*r.Eccentric) {
			eccs = append(eccs, *r.Eccentric)
		}
		if r.ROM != nil && isFinite(*r.ROM) {
			roms = append(roms, *r.ROM)
		}
	}
	return
}

// cvPct is the coefficient of variation in percent.
func cvPct(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m, sd := stat.MeanStdDev(values, nil)
	if m == 0 {
		return 0
	}
	return sd / m * 100
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
