package mavlink

import (
	"math"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/roman-kulish/drone-mission/internal/autopilot"
	"github.com/roman-kulish/drone-mission/internal/geo"
	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

// vehicleState accumulates what the vehicle has reported so far
type vehicleState struct {
	armed         bool
	sensorsHealth common.MAV_SYS_STATUS_SENSOR
	sysStatus     bool
	gpsFix        common.GPS_FIX_TYPE
	localPosition bool
	home          *geo.GeoPoint
	snapshot      telemetry.Telemetry
}

func degE7(v int32) float64 {
	return float64(v) / 1e7
}

func ptr[T any](v T) *T {
	return &v
}

// updateState folds a telemetry message into the vehicle state
func (s *System) updateState(msg message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state

	switch m := msg.(type) {
	case *common.MessageHeartbeat:
		st.armed = m.BaseMode&common.MAV_MODE_FLAG_SAFETY_ARMED != 0
		st.snapshot.Armed = st.armed

	case *common.MessageSysStatus:
		st.sysStatus = true
		st.sensorsHealth = m.OnboardControlSensorsHealth

	case *common.MessageGpsRawInt:
		st.gpsFix = m.FixType
		if m.SatellitesVisible != math.MaxUint8 {
			st.snapshot.NumSatellites = ptr(int64(m.SatellitesVisible))
		}

	case *common.MessageLocalPositionNed:
		st.localPosition = true

	case *common.MessageHomePosition:
		st.home = &geo.GeoPoint{Latitude: degE7(m.Latitude), Longitude: degE7(m.Longitude)}

	case *common.MessageGlobalPositionInt:
		st.snapshot.Latitude = ptr(degE7(m.Lat))
		st.snapshot.Longitude = ptr(degE7(m.Lon))
		st.snapshot.Altitude = ptr(float64(m.Alt) / 1000)
		st.snapshot.RelativeAltitude = ptr(float64(m.RelativeAlt) / 1000)
		st.snapshot.GroundSpeed = ptr(math.Hypot(float64(m.Vx), float64(m.Vy)) / 100)
		if m.Hdg != math.MaxUint16 {
			st.snapshot.GroundCourse = ptr(float64(m.Hdg) / 100)
		}

	case *common.MessageAttitude:
		st.snapshot.Roll = ptr(toDegrees(m.Roll))
		st.snapshot.Pitch = ptr(toDegrees(m.Pitch))
		st.snapshot.Yaw = ptr(toDegrees(m.Yaw))

	case *common.MessageMissionCurrent:
		st.snapshot.MissionSeq = ptr(int64(m.Seq))
	}
}

func toDegrees(rad float32) float64 {
	return float64(rad) * 180 / math.Pi
}

func (st *vehicleState) sensorOK(sensor common.MAV_SYS_STATUS_SENSOR) bool {
	return st.sysStatus && st.sensorsHealth&sensor != 0
}

// Health implements autopilot.Telemetry
func (s *System) Health() autopilot.Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state

	return autopilot.Health{
		GyrometerOK:      st.sensorOK(common.MAV_SYS_STATUS_SENSOR_3D_GYRO),
		AccelerometerOK:  st.sensorOK(common.MAV_SYS_STATUS_SENSOR_3D_ACCEL),
		MagnetometerOK:   st.sensorOK(common.MAV_SYS_STATUS_SENSOR_3D_MAG),
		LocalPositionOK:  st.localPosition,
		GlobalPositionOK: st.gpsFix >= common.GPS_FIX_TYPE_3D_FIX,
		HomePositionOK:   st.home != nil,
	}
}

// Armed implements autopilot.Telemetry
func (s *System) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.armed
}

// Get implements telemetry.Provider
func (s *System) Get() *telemetry.Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.systemID == 0 {
		return nil
	}

	t := s.state.snapshot
	t.Timestamp = time.Now()
	return &t
}
