package mavlink

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/roman-kulish/drone-mission/internal/autopilot"
	"github.com/roman-kulish/drone-mission/internal/mission"
)

const (
	transferName = "mission transfer"

	// hold time in seconds at a waypoint that is not flown through
	holdTime = 0.5

	acceptanceRadius = 1.0

	photoInterval = 1.0

	// MAV_MOUNT_MODE_MAVLINK_TARGETING
	mountModeTargeting = 2
)

// missionState tracks the mission uploaded to the vehicle. itemIndex maps
// every MAVLink mission sequence number onto the plan item it came from.
type missionState struct {
	uploaded  bool
	itemIndex []int
	total     int
	current   int
	paused    bool
	finished  bool
}

type missionItem struct {
	command common.MAV_CMD
	frame   common.MAV_FRAME
	params  [4]float32
	x, y    int32
	z       float32
}

// encodeMission expands every plan item into its MAVLink mission items:
// the waypoint itself followed by speed, gimbal and camera commands.
func encodeMission(plan mission.Plan, systemID, componentID uint8) ([]*common.MessageMissionItemInt, []int) {
	var (
		items     []*common.MessageMissionItemInt
		itemIndex []int
	)

	add := func(index int, mi missionItem) {
		seq := len(items)
		current := uint8(0)
		if seq == 0 {
			current = 1
		}

		items = append(items, &common.MessageMissionItemInt{
			TargetSystem:    systemID,
			TargetComponent: componentID,
			Seq:             uint16(seq),
			Frame:           mi.frame,
			Command:         mi.command,
			Current:         current,
			Autocontinue:    1,
			Param1:          mi.params[0],
			Param2:          mi.params[1],
			Param3:          mi.params[2],
			Param4:          mi.params[3],
			X:               mi.x,
			Y:               mi.y,
			Z:               mi.z,
			MissionType:     common.MAV_MISSION_TYPE_MISSION,
		})
		itemIndex = append(itemIndex, index)
	}

	for i, item := range plan.Items() {
		hold := float32(holdTime)
		if item.FlyThrough {
			hold = 0
		}

		add(i, missionItem{
			command: common.MAV_CMD_NAV_WAYPOINT,
			frame:   common.MAV_FRAME_GLOBAL_RELATIVE_ALT_INT,
			params:  [4]float32{hold, acceptanceRadius, 0, float32(math.NaN())},
			x:       int32(math.Round(item.Position.Latitude * 1e7)),
			y:       int32(math.Round(item.Position.Longitude * 1e7)),
			z:       item.RelativeAltitude,
		})

		if item.Speed > 0 {
			add(i, missionItem{
				command: common.MAV_CMD_DO_CHANGE_SPEED,
				frame:   common.MAV_FRAME_MISSION,
				params:  [4]float32{1, item.Speed, -1, 0}, // ground speed, no throttle change
			})
		}

		if item.GimbalPitch != 0 || item.GimbalYaw != 0 {
			add(i, missionItem{
				command: common.MAV_CMD_DO_MOUNT_CONTROL,
				frame:   common.MAV_FRAME_MISSION,
				params:  [4]float32{item.GimbalPitch, 0, item.GimbalYaw, 0},
				z:       mountModeTargeting,
			})
		}

		switch item.CameraAction {
		case mission.CameraTakePhoto:
			add(i, missionItem{command: common.MAV_CMD_IMAGE_START_CAPTURE, frame: common.MAV_FRAME_MISSION, params: [4]float32{0, 0, 1, 0}})
		case mission.CameraStartPhotoInterval:
			add(i, missionItem{command: common.MAV_CMD_IMAGE_START_CAPTURE, frame: common.MAV_FRAME_MISSION, params: [4]float32{0, photoInterval, 0, 0}})
		case mission.CameraStopPhotoInterval:
			add(i, missionItem{command: common.MAV_CMD_IMAGE_STOP_CAPTURE, frame: common.MAV_FRAME_MISSION})
		case mission.CameraStartVideo:
			add(i, missionItem{command: common.MAV_CMD_VIDEO_START_CAPTURE, frame: common.MAV_FRAME_MISSION})
		case mission.CameraStopVideo:
			add(i, missionItem{command: common.MAV_CMD_VIDEO_STOP_CAPTURE, frame: common.MAV_FRAME_MISSION})
		}
	}

	return items, itemIndex
}

// missionResult maps a MISSION_ACK type onto an autopilot result
func missionResult(t common.MAV_MISSION_RESULT) autopilot.Result {
	switch t {
	case common.MAV_MISSION_ACCEPTED:
		return autopilot.Success()
	case common.MAV_MISSION_NO_SPACE:
		return autopilot.Failure(autopilot.ResultTooManyMissionItems, "no space")
	case common.MAV_MISSION_DENIED:
		return autopilot.Failure(autopilot.ResultDenied, "denied")
	case common.MAV_MISSION_UNSUPPORTED, common.MAV_MISSION_UNSUPPORTED_FRAME:
		return autopilot.Failure(autopilot.ResultUnsupported, "unsupported")
	case common.MAV_MISSION_OPERATION_CANCELLED:
		return autopilot.Failure(autopilot.ResultTransferCancelled, "cancelled")
	case common.MAV_MISSION_INVALID, common.MAV_MISSION_INVALID_SEQUENCE,
		common.MAV_MISSION_INVALID_PARAM1, common.MAV_MISSION_INVALID_PARAM2,
		common.MAV_MISSION_INVALID_PARAM3, common.MAV_MISSION_INVALID_PARAM4,
		common.MAV_MISSION_INVALID_PARAM5_X, common.MAV_MISSION_INVALID_PARAM6_Y,
		common.MAV_MISSION_INVALID_PARAM7:
		return autopilot.Failure(autopilot.ResultInvalidArgument, fmt.Sprintf("invalid (%d)", t))
	default:
		return autopilot.Failure(autopilot.ResultError, fmt.Sprintf("error (%d)", t))
	}
}

// beginTransfer reserves the mission protocol; only one transfer may run
func (s *System) beginTransfer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transfer {
		return false
	}
	s.transfer = true
	return true
}

// transferAsync runs a mission protocol exchange: it sends first and feeds
// every mission message to match until the vehicle acks.
func (s *System) transferAsync(first message.Message, match func(msg message.Message) (matchResult, autopilot.Result), done autopilot.ResultCallback) {
	if sys, _ := s.target(); sys == 0 {
		done(autopilot.Failure(autopilot.ResultNoSystem, "no system discovered"))
		return
	}
	if !s.beginTransfer() {
		done(autopilot.Failure(autopilot.ResultBusy, "mission transfer in progress"))
		return
	}

	w := &waiter{name: transferName, match: match, done: done}
	s.expect(w)

	if err := s.send(first); err != nil {
		s.removeWaiter(w)
		w.finish(autopilot.Failure(autopilot.ResultError, err.Error()))
	}
}

func matchMissionAck(msg message.Message) (matchResult, autopilot.Result) {
	ack, ok := msg.(*common.MessageMissionAck)
	if !ok || ack.MissionType != common.MAV_MISSION_TYPE_MISSION {
		return ignore, autopilot.Result{}
	}
	return complete, missionResult(ack.Type)
}

// ClearMissionAsync implements autopilot.Mission
func (s *System) ClearMissionAsync(done autopilot.ResultCallback) {
	sys, comp := s.target()

	s.transferAsync(&common.MessageMissionClearAll{
		TargetSystem:    sys,
		TargetComponent: comp,
		MissionType:     common.MAV_MISSION_TYPE_MISSION,
	}, matchMissionAck, func(r autopilot.Result) {
		if r.OK() {
			s.mu.Lock()
			s.mission = missionState{}
			s.mu.Unlock()
		}
		done(r)
	})
}

// UploadMissionAsync implements autopilot.Mission
func (s *System) UploadMissionAsync(plan mission.Plan, done autopilot.ResultCallback) {
	sys, comp := s.target()

	items, itemIndex := encodeMission(plan, sys, comp)
	if len(items) == 0 {
		done(autopilot.Failure(autopilot.ResultInvalidArgument, "empty mission"))
		return
	}
	if len(items) > math.MaxUint16 {
		done(autopilot.Failure(autopilot.ResultTooManyMissionItems, fmt.Sprintf("%d mission items", len(items))))
		return
	}

	match := func(msg message.Message) (matchResult, autopilot.Result) {
		var seq uint16

		switch m := msg.(type) {
		case *common.MessageMissionRequestInt:
			if m.MissionType != common.MAV_MISSION_TYPE_MISSION {
				return ignore, autopilot.Result{}
			}
			seq = m.Seq
		case *common.MessageMissionRequest:
			if m.MissionType != common.MAV_MISSION_TYPE_MISSION {
				return ignore, autopilot.Result{}
			}
			seq = m.Seq
		default:
			return matchMissionAck(msg)
		}

		if int(seq) >= len(items) {
			return complete, autopilot.Failure(autopilot.ResultInvalidArgument,
				fmt.Sprintf("vehicle requested item %d of %d", seq, len(items)))
		}
		if err := s.send(items[seq]); err != nil {
			return complete, autopilot.Failure(autopilot.ResultError, err.Error())
		}
		return progress, autopilot.Result{}
	}

	s.transferAsync(&common.MessageMissionCount{
		TargetSystem:    sys,
		TargetComponent: comp,
		Count:           uint16(len(items)),
		MissionType:     common.MAV_MISSION_TYPE_MISSION,
	}, match, func(r autopilot.Result) {
		if r.OK() {
			s.mu.Lock()
			s.mission = missionState{uploaded: true, itemIndex: itemIndex, total: plan.Len(), current: -1}
			s.mu.Unlock()
		}
		done(r)
	})
}

// StartMissionAsync implements autopilot.Mission. A paused mission is
// continued from where it stopped rather than restarted.
func (s *System) StartMissionAsync(done autopilot.ResultCallback) {
	s.mu.Lock()
	paused := s.mission.paused
	s.mu.Unlock()

	onResult := func(r autopilot.Result) {
		if r.OK() {
			s.mu.Lock()
			s.mission.paused = false
			s.mu.Unlock()
		}
		done(r)
	}

	if paused {
		s.commandAsync("mission continue", common.MAV_CMD_DO_PAUSE_CONTINUE, [7]float32{1}, onResult)
		return
	}
	s.commandAsync("mission start", common.MAV_CMD_MISSION_START, [7]float32{}, onResult)
}

// PauseMissionAsync implements autopilot.Mission
func (s *System) PauseMissionAsync(done autopilot.ResultCallback) {
	s.commandAsync("mission pause", common.MAV_CMD_DO_PAUSE_CONTINUE, [7]float32{0}, func(r autopilot.Result) {
		if r.OK() {
			s.mu.Lock()
			s.mission.paused = true
			s.mu.Unlock()
		}
		done(r)
	})
}

// SubscribeMissionProgress implements autopilot.Mission
func (s *System) SubscribeMissionProgress(fn func(autopilot.Progress)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progressFns = append(s.progressFns, fn)
}

// IsMissionFinished implements autopilot.Mission
func (s *System) IsMissionFinished() (bool, autopilot.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mission.uploaded {
		return false, autopilot.Failure(autopilot.ResultNoMissionAvailable, "no mission uploaded")
	}
	return s.mission.finished, autopilot.Success()
}

// handleMission turns MISSION_CURRENT and MISSION_ITEM_REACHED into
// progress updates over plan items
func (s *System) handleMission(msg message.Message) {
	s.mu.Lock()

	m := &s.mission
	if !m.uploaded {
		s.mu.Unlock()
		return
	}

	var update *autopilot.Progress

	switch msg := msg.(type) {
	case *common.MessageMissionCurrent:
		if int(msg.Seq) < len(m.itemIndex) && m.itemIndex[msg.Seq] != m.current && !m.finished {
			m.current = m.itemIndex[msg.Seq]
			update = &autopilot.Progress{Current: m.current, Total: m.total}
		}

	case *common.MessageMissionItemReached:
		if int(msg.Seq) == len(m.itemIndex)-1 && !m.finished {
			m.finished = true
			m.current = m.total
			update = &autopilot.Progress{Current: m.total, Total: m.total}
		}
	}

	fns := append([]func(autopilot.Progress){}, s.progressFns...)
	s.mu.Unlock()

	if update == nil {
		return
	}

	s.logger.Debug("mission progress", slog.String("progress", update.String()))
	for _, fn := range fns {
		fn(*update)
	}
}
