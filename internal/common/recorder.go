package common

import (
	"database/sql"
	"log/slog"
	"time"

	"goveiss/internal/session"
)

// Recorder persists the outputs of one engine. A session row is opened on
// the first output of an exercise and closed by ExerciseFinished.
type Recorder struct {
	Db       *sql.DB
	DeviceId string
	Notify   func(setId int)
	Logger   *slog.Logger
	Clock    func() time.Time

	sessionId int
}

func (this *Recorder) now() time.Time {
	if this.Clock != nil {
		return this.Clock()
	}
	return time.Now()
}

func (this *Recorder) logger() *slog.Logger {
	if this.Logger != nil {
		return this.Logger
	}
	return slog.Default()
}

func (this *Recorder) open(exercise string) error {
	if this.sessionId != 0 {
		return nil
	}
	id, err := InsertSession(this.Db, exercise, this.DeviceId, this.now())
	if err != nil {
		return err
	}
	this.sessionId = id
	this.logger().Info("session opened", "session", id, "exercise", exercise, "device", this.DeviceId)
	return nil
}

// Record stores a single output.
func (this *Recorder) Record(out session.Output) error {
	if err := this.open(out.Exercise()); err != nil {
		return err
	}

	switch o := out.(type) {
	case *session.ValidatedReps:
		id, err := InsertSet(this.Db, this.sessionId, o, this.now())
		if err != nil {
			return err
		}
		this.logger().Info("set stored", "session", this.sessionId, "set", o.SetNumber,
			"count", o.Count, "source", o.Source)
		if this.Notify != nil {
			this.Notify(id)
		}
	case *session.ExerciseFinished:
		if err := FinishSession(this.Db, this.sessionId, o.Sets, this.now()); err != nil {
			return err
		}
		this.logger().Info("session finished", "session", this.sessionId, "sets", o.Sets)
		this.sessionId = 0
	}
	return nil
}

// Run records every output received on ch until it is closed.
func (this *Recorder) Run(ch <-chan session.Output) {
	for out := range ch {
		if err := this.Record(out); err != nil {
			this.logger().Error("could not record output", "exercise", out.Exercise(), "error", err)
		}
	}
}
