// Package sim is an in-process vehicle. It accepts the same commands as a
// real autopilot, flies an uploaded mission one item per tick and can be
// told to fail or ignore individual commands.
package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/drone-mission/internal/autopilot"
	"github.com/roman-kulish/drone-mission/internal/geo"
	"github.com/roman-kulish/drone-mission/internal/mission"
	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

const (
	// DefaultSystemID is the system ID reported by the simulated vehicle
	DefaultSystemID uint8 = 1

	// DefaultTick is the time it takes to fly from one mission item to the next
	DefaultTick = time.Second

	// DefaultLatency is the delay before a command result is reported
	DefaultLatency = 50 * time.Millisecond
)

// DefaultHome is the PX4 SITL default home position
var DefaultHome = geo.GeoPoint{Latitude: 47.397742, Longitude: 8.545594}

// Command names a vehicle command for failure injection
type Command string

const (
	CommandArm    Command = "arm"
	CommandDisarm Command = "disarm"
	CommandRTL    Command = "rtl"
	CommandClear  Command = "clear"
	CommandUpload Command = "upload"
	CommandStart  Command = "start"
	CommandPause  Command = "pause"
)

// WithLogger sets the logger for the vehicle
func WithLogger(logger *slog.Logger) func(*Vehicle) {
	return func(v *Vehicle) {
		v.logger = logger.With(slog.String("vehicle", "sim"))
	}
}

// WithSystemID sets the reported system ID
func WithSystemID(id uint8) func(*Vehicle) {
	return func(v *Vehicle) {
		v.id = id
	}
}

// WithHome sets the home position, which is also where the vehicle starts
func WithHome(home geo.GeoPoint) func(*Vehicle) {
	return func(v *Vehicle) {
		v.home = home
		v.position = home
	}
}

// WithTick sets the time it takes to reach the next mission item
func WithTick(tick time.Duration) func(*Vehicle) {
	return func(v *Vehicle) {
		if tick > 0 {
			v.tick = tick
		}
	}
}

// WithLatency sets the delay before command results are reported
func WithLatency(latency time.Duration) func(*Vehicle) {
	return func(v *Vehicle) {
		v.latency = latency
	}
}

// WithHealthDelay keeps the pre-flight checks failing for d after creation
func WithHealthDelay(d time.Duration) func(*Vehicle) {
	return func(v *Vehicle) {
		v.healthyAt = time.Now().Add(d)
	}
}

// WithUnhealthy makes the pre-flight checks fail forever
func WithUnhealthy() func(*Vehicle) {
	return func(v *Vehicle) {
		v.unhealthy = true
	}
}

// WithMaxItems limits the number of items an upload may carry
func WithMaxItems(n int) func(*Vehicle) {
	return func(v *Vehicle) {
		v.maxItems = n
	}
}

// WithFailure makes every call of cmd report result
func WithFailure(cmd Command, result autopilot.Result) func(*Vehicle) {
	return func(v *Vehicle) {
		v.failures[cmd] = result
	}
}

// WithNoResponse makes the vehicle ignore cmd: its callback never fires
func WithNoResponse(cmd Command) func(*Vehicle) {
	return func(v *Vehicle) {
		v.silent[cmd] = true
	}
}

// WithLinkLossAfter stops the simulated heartbeat after d
func WithLinkLossAfter(d time.Duration) func(*Vehicle) {
	return func(v *Vehicle) {
		v.linkLossAfter = d
	}
}

// Vehicle is a simulated autopilot implementing autopilot.System
type Vehicle struct {
	id            uint8
	tick          time.Duration
	latency       time.Duration
	healthyAt     time.Time
	unhealthy     bool
	maxItems      int
	failures      map[Command]autopilot.Result
	silent        map[Command]bool
	linkLossAfter time.Duration

	mu        sync.Mutex
	home      geo.GeoPoint
	position  geo.GeoPoint
	relAlt    float64
	speed     float64
	armed     bool
	plan      *mission.Plan
	current   int
	flying    bool
	finished  bool
	returning bool
	linkLost  bool

	progressFns []func(autopilot.Progress)
	timeoutFns  []func(uint8)

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewVehicle creates a simulated vehicle and starts its clock
func NewVehicle(options ...func(*Vehicle)) *Vehicle {
	v := Vehicle{
		id:       DefaultSystemID,
		tick:     DefaultTick,
		latency:  DefaultLatency,
		home:     DefaultHome,
		position: DefaultHome,
		failures: make(map[Command]autopilot.Result),
		silent:   make(map[Command]bool),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&v)
	}

	var ctx context.Context
	ctx, v.cancel = context.WithCancel(context.Background())

	v.wg.Add(1)
	go v.run(ctx)

	if v.linkLossAfter > 0 {
		v.wg.Add(1)
		go func() {
			defer v.wg.Done()

			select {
			case <-ctx.Done():
			case <-time.After(v.linkLossAfter):
				v.LoseLink()
			}
		}()
	}

	return &v
}

// ID implements autopilot.System
func (v *Vehicle) ID() uint8 {
	return v.id
}

// OnTimeout implements autopilot.System
func (v *Vehicle) OnTimeout(fn func(systemID uint8)) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.timeoutFns = append(v.timeoutFns, fn)
}

// LoseLink stops the heartbeat and notifies timeout subscribers once
func (v *Vehicle) LoseLink() {
	v.mu.Lock()
	if v.linkLost {
		v.mu.Unlock()
		return
	}
	v.linkLost = true
	fns := append([]func(uint8){}, v.timeoutFns...)
	v.mu.Unlock()

	v.logger.Warn("heartbeats stopped", slog.Int("systemID", int(v.id)))
	for _, fn := range fns {
		fn(v.id)
	}
}

// Close stops the simulation clock
func (v *Vehicle) Close() error {
	v.closeOnce.Do(func() {
		v.cancel()
		v.wg.Wait()
	})
	return nil
}

func (v *Vehicle) run(ctx context.Context) {
	defer v.wg.Done()

	ticker := time.NewTicker(v.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.step()
		}
	}
}

// step advances the simulation by one tick
func (v *Vehicle) step() {
	v.mu.Lock()

	if v.returning {
		v.position = v.home
		v.relAlt = 0
		v.speed = 0
		v.armed = false
		v.returning = false
		v.mu.Unlock()

		v.logger.Info("landed at home, disarmed")
		return
	}

	if !v.flying || v.plan == nil {
		v.mu.Unlock()
		return
	}

	item := v.plan.Item(v.current)
	v.position = item.Position
	v.relAlt = float64(item.RelativeAltitude)
	v.speed = float64(item.Speed)

	v.current++
	if v.current >= v.plan.Len() {
		v.current = v.plan.Len()
		v.flying = false
		v.finished = true
	}

	progress := autopilot.Progress{Current: v.current, Total: v.plan.Len()}
	fns := append([]func(autopilot.Progress){}, v.progressFns...)
	v.mu.Unlock()

	for _, fn := range fns {
		fn(progress)
	}
}

// respond reports the result of cmd after the configured latency, honouring
// injected failures and silence. apply runs only when the command succeeds.
func (v *Vehicle) respond(cmd Command, done autopilot.ResultCallback, apply func() autopilot.Result) {
	if v.silent[cmd] {
		v.logger.Debug("ignoring command", slog.String("command", string(cmd)))
		return
	}

	time.AfterFunc(v.latency, func() {
		result, failed := v.failures[cmd]
		if !failed {
			result = apply()
		}

		v.logger.Debug("command result", slog.String("command", string(cmd)), slog.String("result", result.String()))
		done(result)
	})
}

func (v *Vehicle) await(ctx context.Context, cmd Command, apply func() autopilot.Result) autopilot.Result {
	result, _ := autopilot.Await(ctx, func(done autopilot.ResultCallback) {
		v.respond(cmd, done, apply)
	})
	return result
}

// Arm implements autopilot.Action
func (v *Vehicle) Arm(ctx context.Context) autopilot.Result {
	return v.await(ctx, CommandArm, func() autopilot.Result {
		if !v.Health().AllOK() {
			return autopilot.Failure(autopilot.ResultDenied, "pre-flight checks failed")
		}

		v.mu.Lock()
		defer v.mu.Unlock()

		v.armed = true
		return autopilot.Success()
	})
}

// Disarm implements autopilot.Action
func (v *Vehicle) Disarm(ctx context.Context) autopilot.Result {
	return v.await(ctx, CommandDisarm, func() autopilot.Result {
		v.mu.Lock()
		defer v.mu.Unlock()

		if v.flying || v.returning {
			return autopilot.Failure(autopilot.ResultDenied, "vehicle in flight")
		}
		v.armed = false
		return autopilot.Success()
	})
}

// ReturnToLaunch implements autopilot.Action. The vehicle lands at home and
// disarms on the next tick.
func (v *Vehicle) ReturnToLaunch(ctx context.Context) autopilot.Result {
	return v.await(ctx, CommandRTL, func() autopilot.Result {
		v.mu.Lock()
		defer v.mu.Unlock()

		if !v.armed {
			return autopilot.Failure(autopilot.ResultDenied, "vehicle not armed")
		}
		v.flying = false
		v.returning = true
		return autopilot.Success()
	})
}

// ClearMissionAsync implements autopilot.Mission
func (v *Vehicle) ClearMissionAsync(done autopilot.ResultCallback) {
	v.respond(CommandClear, done, func() autopilot.Result {
		v.mu.Lock()
		defer v.mu.Unlock()

		v.plan = nil
		v.current = 0
		v.flying = false
		v.finished = false
		return autopilot.Success()
	})
}

// UploadMissionAsync implements autopilot.Mission
func (v *Vehicle) UploadMissionAsync(plan mission.Plan, done autopilot.ResultCallback) {
	v.respond(CommandUpload, done, func() autopilot.Result {
		if plan.Len() == 0 {
			return autopilot.Failure(autopilot.ResultInvalidArgument, "empty mission")
		}
		if v.maxItems > 0 && plan.Len() > v.maxItems {
			return autopilot.Failure(autopilot.ResultTooManyMissionItems,
				fmt.Sprintf("%d items, vehicle accepts %d", plan.Len(), v.maxItems))
		}

		v.mu.Lock()
		defer v.mu.Unlock()

		v.plan = &plan
		v.current = 0
		v.finished = false
		return autopilot.Success()
	})
}

// StartMissionAsync implements autopilot.Mission. Starting a paused mission
// resumes it from the item it was flying to.
func (v *Vehicle) StartMissionAsync(done autopilot.ResultCallback) {
	v.respond(CommandStart, done, func() autopilot.Result {
		v.mu.Lock()

		if v.plan == nil {
			v.mu.Unlock()
			return autopilot.Failure(autopilot.ResultNoMissionAvailable, "no mission uploaded")
		}
		if !v.armed {
			v.mu.Unlock()
			return autopilot.Failure(autopilot.ResultDenied, "vehicle not armed")
		}

		v.flying = !v.finished
		progress := autopilot.Progress{Current: v.current, Total: v.plan.Len()}
		fns := append([]func(autopilot.Progress){}, v.progressFns...)
		v.mu.Unlock()

		for _, fn := range fns {
			fn(progress)
		}
		return autopilot.Success()
	})
}

// PauseMissionAsync implements autopilot.Mission
func (v *Vehicle) PauseMissionAsync(done autopilot.ResultCallback) {
	v.respond(CommandPause, done, func() autopilot.Result {
		v.mu.Lock()
		defer v.mu.Unlock()

		if v.plan == nil {
			return autopilot.Failure(autopilot.ResultNoMissionAvailable, "no mission uploaded")
		}
		v.flying = false
		return autopilot.Success()
	})
}

// SubscribeMissionProgress implements autopilot.Mission
func (v *Vehicle) SubscribeMissionProgress(fn func(autopilot.Progress)) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.progressFns = append(v.progressFns, fn)
}

// IsMissionFinished implements autopilot.Mission
func (v *Vehicle) IsMissionFinished() (bool, autopilot.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.plan == nil {
		return false, autopilot.Failure(autopilot.ResultNoMissionAvailable, "no mission uploaded")
	}
	return v.finished, autopilot.Success()
}

// Health implements autopilot.Telemetry
func (v *Vehicle) Health() autopilot.Health {
	ok := !v.unhealthy && !time.Now().Before(v.healthyAt)

	return autopilot.Health{
		GyrometerOK:      ok,
		AccelerometerOK:  ok,
		MagnetometerOK:   ok,
		LocalPositionOK:  ok,
		GlobalPositionOK: ok,
		HomePositionOK:   ok,
	}
}

// Home implements autopilot.Telemetry
func (v *Vehicle) Home() (geo.GeoPoint, bool) {
	if !v.Health().HomePositionOK {
		return geo.GeoPoint{}, false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	return v.home, true
}

// Armed implements autopilot.Telemetry
func (v *Vehicle) Armed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.armed
}

// Get implements telemetry.Provider
func (v *Vehicle) Get() *telemetry.Telemetry {
	v.mu.Lock()
	defer v.mu.Unlock()

	lat, lon := v.position.Latitude, v.position.Longitude
	relAlt, speed := v.relAlt, v.speed
	seq := int64(v.current)
	sats := int64(12)

	return &telemetry.Telemetry{
		Timestamp:        time.Now(),
		Latitude:         &lat,
		Longitude:        &lon,
		RelativeAltitude: &relAlt,
		GroundSpeed:      &speed,
		NumSatellites:    &sats,
		Armed:            v.armed,
		MissionSeq:       &seq,
	}
}

var _ autopilot.System = (*Vehicle)(nil)
