package storage

import (
	"database/sql"
	"errors"

	"github.com/roman-kulish/drone-mission/internal/geo"
	"github.com/roman-kulish/drone-mission/internal/mission"
	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toNullFloat64(f *float64) sql.NullFloat64 {
	return sql.NullFloat64{
		Float64: toSQLNullType[float64](f),
		Valid:   f != nil,
	}
}

func toNullInt64(i *int64) sql.NullInt64 {
	return sql.NullInt64{
		Int64: toSQLNullType[int64](i),
		Valid: i != nil,
	}
}

func toSQLNullType[T float64 | int64, Y float64 | int | int64](f *Y) T {
	if f == nil {
		return 0
	}
	return T(*f)
}

func fromNullFloat64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

func toTelemetryData(sessionID int64, t *telemetry.Telemetry) *telemetryData {
	return &telemetryData{
		SessionID:        sessionID,
		Timestamp:        t.Timestamp.UTC(),
		Latitude:         toNullFloat64(t.Latitude),
		Longitude:        toNullFloat64(t.Longitude),
		Altitude:         toNullFloat64(t.Altitude),
		RelativeAltitude: toNullFloat64(t.RelativeAltitude),
		Roll:             toNullFloat64(t.Roll),
		Pitch:            toNullFloat64(t.Pitch),
		Yaw:              toNullFloat64(t.Yaw),
		GroundSpeed:      toNullFloat64(t.GroundSpeed),
		GroundCourse:     toNullFloat64(t.GroundCourse),
		NumSatellites:    toNullInt64(t.NumSatellites),
		Armed:            t.Armed,
		MissionSeq:       toNullInt64(t.MissionSeq),
	}
}

func fromTelemetryData(d *telemetryData) *telemetry.Telemetry {
	return &telemetry.Telemetry{
		Timestamp:        d.Timestamp,
		Latitude:         fromNullFloat64(d.Latitude),
		Longitude:        fromNullFloat64(d.Longitude),
		Altitude:         fromNullFloat64(d.Altitude),
		RelativeAltitude: fromNullFloat64(d.RelativeAltitude),
		Roll:             fromNullFloat64(d.Roll),
		Pitch:            fromNullFloat64(d.Pitch),
		Yaw:              fromNullFloat64(d.Yaw),
		GroundSpeed:      fromNullFloat64(d.GroundSpeed),
		GroundCourse:     fromNullFloat64(d.GroundCourse),
		NumSatellites:    fromNullInt64(d.NumSatellites),
		Armed:            d.Armed,
		MissionSeq:       fromNullInt64(d.MissionSeq),
	}
}

func toMissionItemData(seq int, item mission.Item) *missionItemData {
	return &missionItemData{
		Seq:              seq,
		Latitude:         item.Position.Latitude,
		Longitude:        item.Position.Longitude,
		RelativeAltitude: float64(item.RelativeAltitude),
		Speed:            float64(item.Speed),
		FlyThrough:       item.FlyThrough,
		GimbalPitch:      float64(item.GimbalPitch),
		GimbalYaw:        float64(item.GimbalYaw),
		CameraAction:     item.CameraAction.String(),
	}
}

func fromMissionItemData(d *missionItemData) (mission.Item, error) {
	var action mission.CameraAction
	if err := action.UnmarshalText([]byte(d.CameraAction)); err != nil {
		return mission.Item{}, err
	}

	return mission.Item{
		Position:         geo.GeoPoint{Latitude: d.Latitude, Longitude: d.Longitude},
		RelativeAltitude: float32(d.RelativeAltitude),
		Speed:            float32(d.Speed),
		FlyThrough:       d.FlyThrough,
		GimbalPitch:      float32(d.GimbalPitch),
		GimbalYaw:        float32(d.GimbalYaw),
		CameraAction:     action,
	}, nil
}
