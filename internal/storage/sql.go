package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

const (
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_mission_items_session ON mission_items (session_id, seq);
CREATE INDEX IF NOT EXISTS idx_events_session ON events (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_telemetry_session ON telemetry (session_id, timestamp);`

	insertSessionSQL = `
INSERT INTO sessions (start_time,
                      vehicle_url,
                      system_id,
                      config)
VALUES (?, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    vehicle_url,
    system_id,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    vehicle_url,
    system_id,
    config
FROM sessions
ORDER BY start_time, id`

	insertMissionItemSQL = `
INSERT INTO mission_items (session_id,
                           seq,
                           latitude,
                           longitude,
                           relative_altitude,
                           speed,
                           fly_through,
                           gimbal_pitch,
                           gimbal_yaw,
                           camera_action)
VALUES `

	selectMissionItemsSQL = `
SELECT
    latitude,
    longitude,
    relative_altitude,
    speed,
    fly_through,
    gimbal_pitch,
    gimbal_yaw,
    camera_action
FROM mission_items
WHERE
    session_id = ?
ORDER BY seq`

	insertEventSQL = `
INSERT INTO events (session_id,
                    timestamp,
                    step,
                    result,
                    reason,
                    state)
VALUES (?, ?, ?, ?, ?, ?)`

	selectEventsSQL = `
SELECT
    id,
    session_id,
    timestamp,
    step,
    result,
    reason,
    state
FROM events
WHERE
    session_id = ?
ORDER BY timestamp, id`

	insertTelemetrySQL = `
INSERT INTO telemetry (session_id,
                       timestamp,
                       latitude,
                       longitude,
                       altitude,
                       relative_altitude,
                       roll,
                       pitch,
                       yaw,
                       ground_speed,
                       ground_course,
                       num_satellites,
                       armed,
                       mission_seq)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectTelemetrySQL = `
SELECT
    id,
    timestamp,
    latitude,
    longitude,
    altitude,
    relative_altitude,
    roll,
    pitch,
    yaw,
    ground_speed,
    ground_course,
    num_satellites,
    armed,
    mission_seq
FROM telemetry
WHERE
    session_id = ?`
)
