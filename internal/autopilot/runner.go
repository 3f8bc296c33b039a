package autopilot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/drone-mission/internal/mission"
)

// StepHook observes every mission step the runner issues
type StepHook func(step string, result Result, state mission.State)

// WithRunnerLogger sets the logger for the runner
func WithRunnerLogger(logger *slog.Logger) func(*MissionRunner) {
	return func(r *MissionRunner) {
		r.logger = logger.With(slog.String("component", "mission"))
	}
}

// WithCommandTimeout bounds the wait for every mission step result
func WithCommandTimeout(timeout time.Duration) func(*MissionRunner) {
	return func(r *MissionRunner) {
		r.timeout = timeout
	}
}

// WithStepHook registers a hook called after every mission step
func WithStepHook(hook StepHook) func(*MissionRunner) {
	return func(r *MissionRunner) {
		r.hooks = append(r.hooks, hook)
	}
}

// MissionRunner issues mission steps one at a time, blocking on each result,
// and tracks the mission state machine. Failures are logged and reported as
// false; the caller decides whether to carry on.
type MissionRunner struct {
	mission Mission
	machine *mission.Machine
	timeout time.Duration
	hooks   []StepHook
	logger  *slog.Logger

	mu      sync.Mutex
	plan    mission.Plan
	lastErr error
}

// NewMissionRunner creates a runner for the given mission surface
func NewMissionRunner(m Mission, options ...func(*MissionRunner)) *MissionRunner {
	r := MissionRunner{
		mission: m,
		machine: mission.NewMachine(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Setup replaces the plan used by the next upload
func (r *MissionRunner) Setup(plan mission.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plan = plan
	for i, item := range plan.Items() {
		r.logger.Debug("waypoint", slog.Int("index", i), slog.String("item", item.String()))
	}
}

// Plan returns the current plan
func (r *MissionRunner) Plan() mission.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.plan
}

// State returns the mission state
func (r *MissionRunner) State() mission.State {
	return r.machine.State()
}

// History returns the mission states visited so far
func (r *MissionRunner) History() []mission.State {
	return r.machine.History()
}

// LastError returns the error of the most recent failed step, or nil
func (r *MissionRunner) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastErr
}

// Clear removes the mission from the vehicle
func (r *MissionRunner) Clear(ctx context.Context) bool {
	return r.step(ctx, "clear", mission.EventClear, r.mission.ClearMissionAsync)
}

// Upload sends the plan to the vehicle
func (r *MissionRunner) Upload(ctx context.Context) bool {
	plan := r.Plan()
	r.logger.Info("mission upload", slog.Int("items", plan.Len()))

	return r.step(ctx, "upload", mission.EventUpload, func(done ResultCallback) {
		r.mission.UploadMissionAsync(plan, done)
	})
}

// Start begins flying the uploaded mission
func (r *MissionRunner) Start(ctx context.Context) bool {
	return r.step(ctx, "start", mission.EventStart, r.mission.StartMissionAsync)
}

// Pause holds the vehicle at its current position
func (r *MissionRunner) Pause(ctx context.Context) bool {
	return r.step(ctx, "pause", mission.EventPause, r.mission.PauseMissionAsync)
}

// Resume continues a paused mission by issuing start again
func (r *MissionRunner) Resume(ctx context.Context) bool {
	return r.step(ctx, "resume", mission.EventStart, r.mission.StartMissionAsync)
}

// WaitFinished polls the vehicle at a fixed interval until the mission is
// finished or ctx is done.
func (r *MissionRunner) WaitFinished(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if finished, _ := r.mission.IsMissionFinished(); finished {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	state, err := r.machine.Fire(mission.EventFinish)
	if err != nil {
		return err
	}

	r.logger.Info("mission finished")
	r.notify("finish", Success(), state)
	return nil
}

var pastTense = map[string]string{
	"clear":  "cleared",
	"upload": "uploaded",
	"start":  "started",
	"pause":  "paused",
	"resume": "resumed",
}

func (r *MissionRunner) step(ctx context.Context, title string, event mission.Event, submit Submit) bool {
	if title != "upload" {
		r.logger.Info("mission " + title)
	}

	if !r.machine.Can(event) {
		// an earlier failed step leaves the machine behind, so the command
		// is not sent to the vehicle at all
		r.logger.Warn(fmt.Sprintf("mission %s not sent, mission is %s", title, r.machine.State()))
		_, err := r.machine.Fire(event) // returns the descriptive error
		result := Failure(ResultDenied, err.Error())
		r.fail(title, result, err)
		return false
	}

	var options []AwaitOption
	if r.timeout > 0 {
		options = append(options, WithTimeout(r.timeout))
	}

	result, err := Await(ctx, submit, options...)
	if err != nil || !result.OK() {
		r.fail(title, result, err)
		return false
	}

	state, err := r.machine.Fire(event)
	if err != nil {
		r.fail(title, Failure(ResultDenied, err.Error()), err)
		return false
	}

	r.logger.Info("mission " + pastTense[title])
	r.notify(title, result, state)
	return true
}

func (r *MissionRunner) fail(title string, result Result, cause error) {
	err := error(&CommandError{Kind: CommandMission, Step: title, Result: result})
	if cause != nil {
		err = fmt.Errorf("%w: %w", err, cause)
	}

	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()

	r.logger.Error(fmt.Sprintf("mission %s failed (%s)", title, result))
	r.notify(title, result, r.machine.State())
}

func (r *MissionRunner) notify(step string, result Result, state mission.State) {
	for _, hook := range r.hooks {
		hook(step, result, state)
	}
}
