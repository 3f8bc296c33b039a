package storage

import (
	"database/sql"
	"time"
)

// Session is one run of the mission tool against a vehicle
type Session struct {
	ID         int64
	StartTime  time.Time
	VehicleURL string
	SystemID   uint8
	Config     *string // configuration the run was started with, as JSON
}

// Event is the outcome of one mission step
type Event struct {
	ID        int64
	SessionID int64
	Timestamp time.Time
	Step      string // clear, upload, start, pause, resume, finish, arm, rtl...
	Result    string
	Reason    string
	State     string // mission state after the step
}

type missionItemData struct {
	Seq              int
	Latitude         float64
	Longitude        float64
	RelativeAltitude float64
	Speed            float64
	FlyThrough       bool
	GimbalPitch      float64
	GimbalYaw        float64
	CameraAction     string
}

type telemetryData struct {
	ID               int64
	SessionID        int64
	Timestamp        time.Time
	Latitude         sql.NullFloat64
	Longitude        sql.NullFloat64
	Altitude         sql.NullFloat64
	RelativeAltitude sql.NullFloat64
	Roll             sql.NullFloat64
	Pitch            sql.NullFloat64
	Yaw              sql.NullFloat64
	GroundSpeed      sql.NullFloat64
	GroundCourse     sql.NullFloat64
	NumSatellites    sql.NullInt64
	Armed            bool
	MissionSeq       sql.NullInt64
}
