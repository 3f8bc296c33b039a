package mavlink

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/roman-kulish/drone-mission/internal/autopilot"
)

// matchResult is what a waiter decides about an incoming message
type matchResult uint8

const (
	ignore   matchResult = iota // not for this waiter
	progress                    // part of the exchange, keep waiting
	complete                    // exchange finished, result is final
)

// waiter is a pending exchange with the vehicle: a command waiting for its
// ack or a mission transfer waiting for the next request. The step timer is
// restarted on every progress message.
type waiter struct {
	name  string
	match func(msg message.Message) (matchResult, autopilot.Result)
	done  autopilot.ResultCallback
	timer *time.Timer
	once  sync.Once
}

func (w *waiter) finish(r autopilot.Result) {
	w.once.Do(func() {
		if w.timer != nil {
			w.timer.Stop()
		}
		w.done(r)
	})
}

// expect registers a waiter and arms its step timer. A non-positive command
// timeout leaves the exchange unbounded.
func (s *System) expect(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commandTimeout > 0 {
		w.timer = time.AfterFunc(s.commandTimeout, func() {
			s.removeWaiter(w)
			s.logger.Warn(fmt.Sprintf("%s timed out", w.name))
			w.finish(autopilot.Failure(autopilot.ResultTimeout, w.name+" timed out"))
		})
	}
	s.waiters = append(s.waiters, w)
}

func (s *System) removeWaiter(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.waiters = slices.DeleteFunc(s.waiters, func(x *waiter) bool { return x == w })
	if w.name == transferName {
		s.transfer = false
	}
}

// dispatch offers msg to every pending waiter
func (s *System) dispatch(msg message.Message) {
	s.mu.Lock()
	pending := slices.Clone(s.waiters)
	s.mu.Unlock()

	for _, w := range pending {
		switch outcome, result := w.match(msg); outcome {
		case progress:
			if w.timer != nil {
				w.timer.Reset(s.commandTimeout)
			}
		case complete:
			s.removeWaiter(w)
			w.finish(result)
		}
	}

	s.handleMission(msg)
}

// failWaiters completes every pending exchange with r
func (s *System) failWaiters(r autopilot.Result) {
	s.mu.Lock()
	pending := s.waiters
	s.waiters = nil
	s.transfer = false
	s.mu.Unlock()

	for _, w := range pending {
		w.finish(r)
	}
}

// commandResult maps a COMMAND_ACK result onto an autopilot result
func commandResult(r common.MAV_RESULT) autopilot.Result {
	switch r {
	case common.MAV_RESULT_ACCEPTED:
		return autopilot.Success()
	case common.MAV_RESULT_TEMPORARILY_REJECTED:
		return autopilot.Failure(autopilot.ResultBusy, "temporarily rejected")
	case common.MAV_RESULT_DENIED:
		return autopilot.Failure(autopilot.ResultDenied, "denied")
	case common.MAV_RESULT_UNSUPPORTED:
		return autopilot.Failure(autopilot.ResultUnsupported, "unsupported")
	case common.MAV_RESULT_FAILED:
		return autopilot.Failure(autopilot.ResultError, "failed")
	default:
		return autopilot.Failure(autopilot.ResultError, fmt.Sprintf("result %d", r))
	}
}

// commandAsync sends a COMMAND_LONG and reports its acknowledgement to done
func (s *System) commandAsync(name string, cmd common.MAV_CMD, params [7]float32, done autopilot.ResultCallback) {
	sys, comp := s.target()
	if sys == 0 {
		done(autopilot.Failure(autopilot.ResultNoSystem, "no system discovered"))
		return
	}

	w := &waiter{
		name: name,
		done: done,
		match: func(msg message.Message) (matchResult, autopilot.Result) {
			ack, ok := msg.(*common.MessageCommandAck)
			if !ok || ack.Command != cmd {
				return ignore, autopilot.Result{}
			}
			if ack.Result == common.MAV_RESULT_IN_PROGRESS {
				return progress, autopilot.Result{}
			}
			return complete, commandResult(ack.Result)
		},
	}
	s.expect(w)

	err := s.send(&common.MessageCommandLong{
		TargetSystem:    sys,
		TargetComponent: comp,
		Command:         cmd,
		Param1:          params[0],
		Param2:          params[1],
		Param3:          params[2],
		Param4:          params[3],
		Param5:          params[4],
		Param6:          params[5],
		Param7:          params[6],
	})
	if err != nil {
		s.removeWaiter(w)
		w.finish(autopilot.Failure(autopilot.ResultError, err.Error()))
	}
}

func (s *System) command(ctx context.Context, name string, cmd common.MAV_CMD, params [7]float32) autopilot.Result {
	result, _ := autopilot.Await(ctx, func(done autopilot.ResultCallback) {
		s.commandAsync(name, cmd, params, done)
	})
	return result
}

// Arm implements autopilot.Action
func (s *System) Arm(ctx context.Context) autopilot.Result {
	return s.command(ctx, "arm", common.MAV_CMD_COMPONENT_ARM_DISARM, [7]float32{1})
}

// Disarm implements autopilot.Action
func (s *System) Disarm(ctx context.Context) autopilot.Result {
	return s.command(ctx, "disarm", common.MAV_CMD_COMPONENT_ARM_DISARM, [7]float32{0})
}

// ReturnToLaunch implements autopilot.Action
func (s *System) ReturnToLaunch(ctx context.Context) autopilot.Result {
	return s.command(ctx, "return to launch", common.MAV_CMD_NAV_RETURN_TO_LAUNCH, [7]float32{})
}
