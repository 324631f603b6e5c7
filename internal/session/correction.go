package session

import (
	"log/slog"

	"goveiss/internal/veiss"
)

// run validates the reps of a completed set. Sets too short to correct, or
// whose signal cannot be processed, keep the reps reported live.
func (this *correction) run(tuning veiss.Tuning, logger *slog.Logger) *ValidatedReps {
	out := &ValidatedReps{
		ExerciseId: this.ExerciseId,
		SetNumber:  this.SetNumber,
		BufferId:   this.Buffer.SessionId,
		DeviceReps: this.DeviceReps,
		Frames:     this.Buffer.Len(),
	}

	var res *veiss.Result
	if this.Buffer.Len() >= veiss.MIN_CORRECTION_FRAMES {
		var err error
		res, err = veiss.Run(this.Buffer, this.RateHint, tuning, logger)
		if err != nil {
			logger.Warn("correction failed, keeping live reps", "set", this.SetNumber, "error", err)
			res = nil
		}
	}

	if res == nil {
		out.Source = SOURCE_LIVE
		out.Count = len(this.Live)
		out.Samples = this.Live
	} else {
		out.Source = SOURCE_CORRECTION
		out.Count = len(res.Reps)
		out.Reps = res.Reps
		out.Metrics = res.Metrics
		out.Samples = veiss.Reconcile(res.Metrics, this.Live)
	}
	out.Summary = veiss.Summarize(out.Samples, this.Weight)
	out.Notes = veiss.CoachNotes(out.Samples)

	if this.DeviceReps > 0 && out.Count > this.DeviceReps {
		logger.Info("validated more reps than the device counted",
			"exercise", this.ExerciseId, "set", this.SetNumber, "validated", out.Count, "device", this.DeviceReps)
	}
	logger.Info("set validated", "exercise", this.ExerciseId, "set", this.SetNumber,
		"count", out.Count, "source", out.Source.String(), "live", len(this.Live), "frames", out.Frames)
	return out
}

// ValidateSet corrects a set recorded outside of a live session, such as
// an imported capture. Without live reps a set too short to correct
// validates to zero reps.
func ValidateSet(exerciseId string, setNumber int, buf *veiss.SetBuffer, weight, hzHint float64,
	tuning veiss.Tuning, logger *slog.Logger) *ValidatedReps {
	if logger == nil {
		logger = slog.Default()
	}
	c := &correction{
		ExerciseId: exerciseId,
		SetNumber:  setNumber,
		Buffer:     buf,
		Weight:     weight,
		RateHint:   hzHint,
	}
	return c.run(tuning, logger)
}
