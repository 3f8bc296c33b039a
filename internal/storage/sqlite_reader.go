package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

// TrackReader iterates over the telemetry recorded in a session, oldest
// first
type TrackReader interface {
	// Session returns the session the track belongs to
	Session() *Session

	// Next advances to the next snapshot. It returns false at the end of the
	// track or on error; check Error to tell the two apart.
	Next(ctx context.Context) bool

	// Current returns the snapshot Next advanced to
	Current() *telemetry.Telemetry

	// Error returns the error that stopped the iteration, if any
	Error() error

	// Close releases the underlying rows
	Close() error
}

// TrackOption configures a track reader
type TrackOption func(*SqliteTrackReader)

// WithStartTime excludes snapshots taken before t
func WithStartTime(t time.Time) TrackOption {
	return func(r *SqliteTrackReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes snapshots taken after t
func WithEndTime(t time.Time) TrackOption {
	return func(r *SqliteTrackReader) {
		r.endTime = &t
	}
}

// WithTimeRange is WithStartTime and WithEndTime in one
func WithTimeRange(startTime, endTime time.Time) TrackOption {
	return func(r *SqliteTrackReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithPositionOnly skips snapshots without a horizontal position
func WithPositionOnly() TrackOption {
	return func(r *SqliteTrackReader) {
		r.positionOnly = true
	}
}

// SqliteTrackReader implements TrackReader for the SQLite store
type SqliteTrackReader struct {
	db        *sql.DB
	sessionID int64
	session   *Session

	startTime    *time.Time
	endTime      *time.Time
	positionOnly bool

	query string
	args  []any

	rows    *sql.Rows
	current *telemetry.Telemetry
	err     error
}

func newSqliteTrackReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...TrackOption) (*SqliteTrackReader, error) {
	r := &SqliteTrackReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqliteTrackReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}
	if r.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: r.loadSession},
		{msg: "initializing filters", fn: r.initFilters},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SqliteTrackReader) loadSession(ctx context.Context) (err error) {
	stmt, err := r.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if r.session, err = scanSession(stmt.QueryRowContext(ctx, r.sessionID)); err != nil {
		return fmt.Errorf("querying session: %w", err)
	}
	return
}

func (r *SqliteTrackReader) initFilters(context.Context) error {
	if r.startTime != nil && r.endTime != nil && r.endTime.Before(*r.startTime) {
		return fmt.Errorf("end time %s is before start time %s", r.endTime, r.startTime)
	}

	var sb strings.Builder
	sb.WriteString(selectTelemetrySQL)
	r.args = []any{r.sessionID}

	if r.startTime != nil {
		sb.WriteString(" AND timestamp >= ?")
		r.args = append(r.args, r.startTime.UTC())
	}
	if r.endTime != nil {
		sb.WriteString(" AND timestamp <= ?")
		r.args = append(r.args, r.endTime.UTC())
	}
	if r.positionOnly {
		sb.WriteString(" AND latitude IS NOT NULL AND longitude IS NOT NULL")
	}
	sb.WriteString(" ORDER BY timestamp, id")

	r.query = sb.String()
	return nil
}

func (r *SqliteTrackReader) initQuery(ctx context.Context) (err error) {
	r.rows, err = r.db.QueryContext(ctx, r.query, r.args...)
	if err != nil {
		return fmt.Errorf("querying telemetry: %w", err)
	}
	return nil
}

func (r *SqliteTrackReader) Session() *Session {
	return r.session
}

func (r *SqliteTrackReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}

	if !r.rows.Next() {
		r.err = r.rows.Err()
		return false
	}

	d := telemetryData{SessionID: r.sessionID}
	if err := r.rows.Scan(
		&d.ID,
		&d.Timestamp,
		&d.Latitude,
		&d.Longitude,
		&d.Altitude,
		&d.RelativeAltitude,
		&d.Roll,
		&d.Pitch,
		&d.Yaw,
		&d.GroundSpeed,
		&d.GroundCourse,
		&d.NumSatellites,
		&d.Armed,
		&d.MissionSeq,
	); err != nil {
		r.err = fmt.Errorf("scanning telemetry: %w", err)
		return false
	}

	r.current = fromTelemetryData(&d)
	return true
}

func (r *SqliteTrackReader) Current() *telemetry.Telemetry {
	return r.current
}

func (r *SqliteTrackReader) Error() error {
	return r.err
}

func (r *SqliteTrackReader) Close() error {
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	return err
}
