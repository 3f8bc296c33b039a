package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/drone-mission/internal/mission"
	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

// Store is the flight log. It records mission runs: the plan that was
// uploaded, the outcome of every mission step and the telemetry sampled
// while the vehicle flew.
type Store interface {
	// CreateSession starts a new run against the vehicle reachable at
	// vehicleURL. config is optional and may be a string, []byte or any
	// JSON-serializable value.
	CreateSession(ctx context.Context, vehicleURL string, systemID uint8, config any) (sessionID int64, err error)

	// Session returns a single session
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all sessions ordered by start time
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// StoreMissionItems saves the plan uploaded in a session. All items are
	// stored in a single transaction.
	StoreMissionItems(ctx context.Context, sessionID int64, plan mission.Plan) error

	// MissionItems returns the plan uploaded in a session
	MissionItems(ctx context.Context, sessionID int64) (plan mission.Plan, err error)

	// StoreEvent saves the outcome of a mission step
	StoreEvent(ctx context.Context, sessionID int64, e *Event) (eventID int64, err error)

	// Events returns the mission steps of a session in order
	Events(ctx context.Context, sessionID int64) (events []*Event, err error)

	// StoreTelemetry saves a telemetry snapshot
	StoreTelemetry(ctx context.Context, sessionID int64, t *telemetry.Telemetry) (telemetryID int64, err error)

	// ReadTrack returns a reader over the telemetry recorded in a session.
	// The reader must be closed after use.
	ReadTrack(ctx context.Context, sessionID int64, opts ...TrackOption) (TrackReader, error)

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}

// SessionSink binds a store to a session so the telemetry recorder can
// write into it
func SessionSink(store Store, sessionID int64) telemetry.Sink {
	return telemetry.SinkFunc(func(ctx context.Context, t *telemetry.Telemetry) error {
		_, err := store.StoreTelemetry(ctx, sessionID, t)
		return err
	})
}
