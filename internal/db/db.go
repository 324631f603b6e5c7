package db

var Schema = `
	CREATE TABLE IF NOT EXISTS tokens (
		token TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		format INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sessions(
		id INTEGER PRIMARY KEY,
		exercise TEXT NOT NULL,
		device_id TEXT,
		started INTEGER NOT NULL,
		finished INTEGER,
		sets INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS sets(
		id INTEGER PRIMARY KEY,
		session_id INTEGER NOT NULL,
		set_number INTEGER NOT NULL,
		count INTEGER NOT NULL,
		source TEXT NOT NULL,
		device_reps INTEGER NOT NULL,
		weight REAL NOT NULL,
		frames INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		data BLOB NOT NULL,
		UNIQUE (session_id, set_number),
		FOREIGN KEY (session_id) REFERENCES sessions (id) ON DELETE CASCADE
	);`

var Tokens = `
	SELECT token
	FROM tokens`

var InsertToken = `
	INSERT
	INTO tokens (token)
	VALUES (?)`

var Device = `
	SELECT id, name, format
	FROM devices
	WHERE id = ?`

var Devices = `
	SELECT id, name, format
	FROM devices`

var UpsertDevice = `
	INSERT
	INTO devices (id, name, format)
	VALUES (?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET name = excluded.name, format = excluded.format`

var DeleteDevice = `
	DELETE
	FROM devices
	WHERE id = ?`

var Sessions = `
	SELECT id, exercise, device_id, started, finished, sets
	FROM sessions
	ORDER BY started DESC`

var Session = `
	SELECT id, exercise, device_id, started, finished, sets
	FROM sessions
	WHERE id = ?`

var InsertSession = `
	INSERT
	INTO sessions (exercise, device_id, started)
	VALUES (?, ?, ?)
	RETURNING id`

var FinishSession = `
	UPDATE sessions
	SET (finished, sets) = (?, ?)
	WHERE id = ?`

var DeleteSession = `
	DELETE
	FROM sessions
	WHERE id = ?`

var DeleteSetsForSession = `
	DELETE
	FROM sets
	WHERE session_id = ?`

var Sets = `
	SELECT id, session_id, set_number, count, source, device_reps, weight, frames, timestamp
	FROM sets
	WHERE session_id = ?
	ORDER BY set_number`

var SetData = `
	SELECT data
	FROM sets
	WHERE id = ?`

var InsertSet = `
	INSERT
	INTO sets (session_id, set_number, count, source, device_reps, weight, frames, timestamp, data)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (session_id, set_number) DO UPDATE SET
		count = excluded.count,
		source = excluded.source,
		device_reps = excluded.device_reps,
		weight = excluded.weight,
		frames = excluded.frames,
		timestamp = excluded.timestamp,
		data = excluded.data
	RETURNING id`
