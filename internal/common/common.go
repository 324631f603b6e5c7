package common

import (
	"database/sql"
	"time"

	"github.com/blockloop/scan"
	"github.com/ugorji/go/codec"
	_ "modernc.org/sqlite"

	queries "goveiss/internal/db"
	"goveiss/internal/formats/tof"
	"goveiss/internal/session"
)

type Device struct {
	Id     string     `db:"id"     json:"id"     binding:"required"`
	Name   string     `db:"name"   json:"name"   binding:"required"`
	Format tof.Format `db:"format" json:"format"`
}

type Session struct {
	Id       int     `db:"id"        json:"id"`
	Exercise string  `db:"exercise"  json:"exercise"`
	DeviceId *string `db:"device_id" json:"device,omitempty"`
	Started  int64   `db:"started"   json:"started"`
	Finished *int64  `db:"finished"  json:"finished,omitempty"` // nil while the exercise is in progress
	Sets     int     `db:"sets"      json:"sets"`
}

type Set struct {
	Id         int     `db:"id"          json:"id"`
	SessionId  int     `db:"session_id"  json:"session"`
	SetNumber  int     `db:"set_number"  json:"set_number"`
	Count      int     `db:"count"       json:"count"`
	Source     string  `db:"source"      json:"source"`
	DeviceReps int     `db:"device_reps" json:"device_reps"`
	Weight     float64 `db:"weight"      json:"weight"`
	Frames     int     `db:"frames"      json:"frames"`
	Timestamp  int64   `db:"timestamp"   json:"timestamp"`
}

// Queryer is the part of *sql.DB and *sql.Tx the session writers need.
type Queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(queries.Schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func Tokens(db *sql.DB) ([]string, error) {
	rows, err := db.Query(queries.Tokens)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func GetDevice(db *sql.DB, id string) (*Device, error) {
	var device Device
	rows, err := db.Query(queries.Device, id)
	if err != nil {
		return nil, err
	}
	if err = scan.RowStrict(&device, rows); err != nil {
		return nil, err
	}
	return &device, nil
}

func PutDevice(db *sql.DB, device *Device) error {
	vals, _ := scan.Values([]string{"id", "name", "format"}, device)
	_, err := db.Exec(queries.UpsertDevice, vals...)
	return err
}

func DeleteDevice(db *sql.DB, id string) error {
	_, err := db.Exec(queries.DeleteDevice, id)
	return err
}

func GetSessions(db *sql.DB) ([]Session, error) {
	rows, err := db.Query(queries.Sessions)
	if err != nil {
		return nil, err
	}
	var sessions []Session
	if err = scan.RowsStrict(&sessions, rows); err != nil {
		return nil, err
	}
	return sessions, nil
}

func GetSession(db *sql.DB, id int) (*Session, error) {
	var s Session
	rows, err := db.Query(queries.Session, id)
	if err != nil {
		return nil, err
	}
	if err = scan.RowStrict(&s, rows); err != nil {
		return nil, err
	}
	return &s, nil
}

func InsertSession(db Queryer, exercise, deviceId string, started time.Time) (int, error) {
	device := sql.NullString{String: deviceId, Valid: deviceId != ""}
	var lastInsertedId int
	err := db.QueryRow(queries.InsertSession, exercise, device, started.UnixMilli()).Scan(&lastInsertedId)
	if err != nil {
		return 0, err
	}
	return lastInsertedId, nil
}

func FinishSession(db Queryer, id, sets int, finished time.Time) error {
	_, err := db.Exec(queries.FinishSession, finished.UnixMilli(), sets, id)
	return err
}

// DeleteSession removes the session together with its sets. SQLite does not
// enforce foreign keys unless asked to per connection, so the sets are
// deleted explicitly.
// InsertCompletedSession stores a finished session with all of its sets in
// one transaction. Nothing is stored when any insert fails.
func InsertCompletedSession(db *sql.DB, exercise, deviceId string, at time.Time, sets []*session.ValidatedReps) (int, []int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, nil, err
	}
	sessionId, err := InsertSession(tx, exercise, deviceId, at)
	if err != nil {
		tx.Rollback()
		return 0, nil, err
	}
	setIds := make([]int, 0, len(sets))
	for _, vr := range sets {
		id, err := InsertSet(tx, sessionId, vr, at)
		if err != nil {
			tx.Rollback()
			return 0, nil, err
		}
		setIds = append(setIds, id)
	}
	if err := FinishSession(tx, sessionId, len(sets), at); err != nil {
		tx.Rollback()
		return 0, nil, err
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, err
	}
	return sessionId, setIds, nil
}

func DeleteSession(db *sql.DB, id int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(queries.DeleteSetsForSession, id); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(queries.DeleteSession, id); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func GetSets(db *sql.DB, sessionId int) ([]Set, error) {
	rows, err := db.Query(queries.Sets, sessionId)
	if err != nil {
		return nil, err
	}
	var sets []Set
	if err = scan.RowsStrict(&sets, rows); err != nil {
		return nil, err
	}
	return sets, nil
}

// InsertSet stores a validated set. A set already stored under the same
// number is replaced.
func InsertSet(db Queryer, sessionId int, vr *session.ValidatedReps, timestamp time.Time) (int, error) {
	var data []byte
	var h codec.MsgpackHandle
	enc := codec.NewEncoderBytes(&data, &h)
	if err := enc.Encode(vr); err != nil {
		return 0, err
	}

	var lastInsertedId int
	err := db.QueryRow(queries.InsertSet, sessionId, vr.SetNumber, vr.Count, vr.Source.String(),
		vr.DeviceReps, vr.Summary.Weight, vr.Frames, timestamp.UnixMilli(), data).Scan(&lastInsertedId)
	if err != nil {
		return 0, err
	}
	return lastInsertedId, nil
}

// SetData returns the msgpack encoded ValidatedReps of a set.
func SetData(db *sql.DB, id int) ([]byte, error) {
	var data []byte
	if err := db.QueryRow(queries.SetData, id).Scan(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func GetSetData(db *sql.DB, id int) (*session.ValidatedReps, error) {
	data, err := SetData(db, id)
	if err != nil {
		return nil, err
	}
	var vr session.ValidatedReps
	var h codec.MsgpackHandle
	dec := codec.NewDecoderBytes(data, &h)
	if err := dec.Decode(&vr); err != nil {
		return nil, err
	}
	return &vr, nil
}
