package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roman-kulish/drone-mission/internal/mission"
	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

// SqliteStore is a Store backed by a SQLite database file. Writes go through
// a WAL-mode connection that creates the schema on first use; reads use a
// separate read-only connection.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store for the database at dbPath. Nothing is
// opened until the first read or write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro&_busy_timeout=5000"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, vehicleURL string, systemID uint8, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch c := config.(type) {
		case string:
			configData.Valid = true
			configData.String = c

		case []byte:
			configData.Valid = true
			configData.String = string(c)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, time.Now().UTC(), vehicleURL, systemID, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var config sql.NullString
	if err := row.Scan(&sess.ID, &sess.StartTime, &sess.VehicleURL, &sess.SystemID, &config); err != nil {
		return nil, err
	}
	if config.Valid {
		sess.Config = &config.String
	}
	return &sess, nil
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	if session, err = scanSession(stmt.QueryRowContext(ctx, id)); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
	}
	return
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess *Session
		if sess, err = scanSession(rows); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, sess)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) StoreMissionItems(ctx context.Context, sessionID int64, plan mission.Plan) (err error) {
	if plan.Len() == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, plan.Len()*10)

	var sb strings.Builder
	sb.WriteString(insertMissionItemSQL)

	for i, item := range plan.Items() {
		data := toMissionItemData(i, item)
		values = append(values,
			sessionID,
			data.Seq,
			data.Latitude,
			data.Longitude,
			data.RelativeAltitude,
			data.Speed,
			data.FlyThrough,
			data.GimbalPitch,
			data.GimbalYaw,
			data.CameraAction,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting mission items: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) MissionItems(ctx context.Context, sessionID int64) (plan mission.Plan, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectMissionItemsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying mission items: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	var items []mission.Item
	for rows.Next() {
		var d missionItemData
		if err = rows.Scan(&d.Latitude, &d.Longitude, &d.RelativeAltitude, &d.Speed, &d.FlyThrough,
			&d.GimbalPitch, &d.GimbalYaw, &d.CameraAction); err != nil {
			err = fmt.Errorf("scanning mission item: %w", err)
			return
		}

		var item mission.Item
		if item, err = fromMissionItemData(&d); err != nil {
			err = fmt.Errorf("decoding mission item %d: %w", len(items), err)
			return
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return
	}

	return mission.NewPlan(items...), nil
}

func (s *SqliteStore) StoreEvent(ctx context.Context, sessionID int64, e *Event) (eventID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var reason sql.NullString
	if e.Reason != "" {
		reason = sql.NullString{String: e.Reason, Valid: true}
	}

	result, err := db.ExecContext(ctx, insertEventSQL, sessionID, ts.UTC(), e.Step, e.Result, reason, e.State)
	if err != nil {
		err = fmt.Errorf("inserting event: %w", err)
		return
	}

	eventID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting event ID: %w", err)
	}
	return
}

func (s *SqliteStore) Events(ctx context.Context, sessionID int64) (events []*Event, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectEventsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying events: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var e Event
		var reason sql.NullString
		if err = rows.Scan(&e.ID, &e.SessionID, &e.Timestamp, &e.Step, &e.Result, &reason, &e.State); err != nil {
			err = fmt.Errorf("scanning event: %w", err)
			return
		}
		e.Reason = reason.String
		events = append(events, &e)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) StoreTelemetry(ctx context.Context, sessionID int64, t *telemetry.Telemetry) (telemetryID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertTelemetrySQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	data := toTelemetryData(sessionID, t)

	result, err := stmt.ExecContext(
		ctx,
		data.SessionID,
		data.Timestamp,
		data.Latitude,
		data.Longitude,
		data.Altitude,
		data.RelativeAltitude,
		data.Roll,
		data.Pitch,
		data.Yaw,
		data.GroundSpeed,
		data.GroundCourse,
		data.NumSatellites,
		data.Armed,
		data.MissionSeq,
	)
	if err != nil {
		err = fmt.Errorf("inserting telemetry: %w", err)
		return
	}

	telemetryID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting telemetry ID: %w", err)
	}
	return
}

func (s *SqliteStore) ReadTrack(ctx context.Context, sessionID int64, opts ...TrackOption) (TrackReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteTrackReader(ctx, db, sessionID, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}

var _ Store = (*SqliteStore)(nil)
