// Package autopilot defines the vehicle surface the mission tools talk to:
// vehicle actions, telemetry queries and the callback based mission API,
// together with the adapter that turns those callbacks into blocking calls.
//
// Implementations live in sub-packages: mavlink drives a real autopilot over
// MAVLink, sim is an in-process vehicle for tests and dry runs.
package autopilot

import (
	"context"
	"fmt"

	"github.com/roman-kulish/drone-mission/internal/geo"
	"github.com/roman-kulish/drone-mission/internal/mission"
	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

// ResultCallback receives the outcome of an asynchronous command. It is
// called exactly once, on a goroutine owned by the implementation.
type ResultCallback func(Result)

// Progress reports mission execution: Current is the index of the mission
// item being flown, Total the number of items in the plan.
type Progress struct {
	Current int
	Total   int
}

func (p Progress) String() string {
	return fmt.Sprintf("%d / %d", p.Current, p.Total)
}

// Health is a snapshot of the vehicle pre-flight checks
type Health struct {
	GyrometerOK      bool
	AccelerometerOK  bool
	MagnetometerOK   bool
	LocalPositionOK  bool
	GlobalPositionOK bool
	HomePositionOK   bool
}

// AllOK reports whether the vehicle is ready to fly a mission
func (h Health) AllOK() bool {
	return h.GyrometerOK && h.AccelerometerOK && h.MagnetometerOK &&
		h.LocalPositionOK && h.GlobalPositionOK && h.HomePositionOK
}

// Action is the vehicle command surface. Calls block until the vehicle
// acknowledges the command or ctx is done.
type Action interface {
	Arm(ctx context.Context) Result
	Disarm(ctx context.Context) Result
	ReturnToLaunch(ctx context.Context) Result
}

// Telemetry is the snapshot query surface. Calls never block on the link.
type Telemetry interface {
	telemetry.Provider

	Health() Health
	Home() (geo.GeoPoint, bool)
	Armed() bool
}

// Mission is the asynchronous mission surface. Every *Async call returns
// immediately and reports its outcome through done exactly once.
type Mission interface {
	ClearMissionAsync(done ResultCallback)
	UploadMissionAsync(plan mission.Plan, done ResultCallback)
	PauseMissionAsync(done ResultCallback)
	StartMissionAsync(done ResultCallback)

	// SubscribeMissionProgress registers fn for progress updates. fn runs on
	// the implementation's goroutine and must not issue commands.
	SubscribeMissionProgress(fn func(Progress))

	// IsMissionFinished reports whether the last item of the uploaded
	// mission has been reached.
	IsMissionFinished() (bool, Result)
}

// System is a discovered vehicle
type System interface {
	Action
	Telemetry
	Mission

	// ID returns the MAVLink system ID of the vehicle
	ID() uint8

	// OnTimeout registers fn to be called once when the vehicle stops
	// sending heartbeats.
	OnTimeout(fn func(systemID uint8))

	// Close releases the link to the vehicle
	Close() error
}
