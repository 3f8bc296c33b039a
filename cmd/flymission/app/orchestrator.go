package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/drone-mission/internal/autopilot"
	"github.com/roman-kulish/drone-mission/internal/geo"
	"github.com/roman-kulish/drone-mission/internal/mission"
	"github.com/roman-kulish/drone-mission/internal/storage"
	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

const eventStoreTimeout = 5 * time.Second

// WithStore records mission steps and the uploaded plan in the given
// flight log session
func WithStore(store storage.Store, sessionID int64) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.store = store
		o.sessionID = sessionID
	}
}

// WithRecorder records telemetry while the mission flies
func WithRecorder(recorder *telemetry.Recorder) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

// Orchestrator flies one mission cycle against a discovered vehicle: health
// check, upload, arm, start, pause and resume once, wait for the end of the
// mission, then return to launch and wait for the vehicle to disarm.
type Orchestrator struct {
	system   autopilot.System
	runner   *autopilot.MissionRunner
	spec     *mission.Spec
	settings Settings

	store     storage.Store
	sessionID int64
	recorder  *telemetry.Recorder

	pauseRequested atomic.Bool
	logger         *slog.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(system autopilot.System, spec *mission.Spec, settings Settings, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		system:   system,
		spec:     spec,
		settings: settings,
		logger:   logger,
	}

	for _, option := range options {
		option(&o)
	}

	o.runner = autopilot.NewMissionRunner(system,
		autopilot.WithRunnerLogger(logger),
		autopilot.WithCommandTimeout(settings.CommandTimeout),
		autopilot.WithStepHook(o.recordStep),
	)

	return &o
}

// History returns the mission states visited so far
func (o *Orchestrator) History() []mission.State {
	return o.runner.History()
}

// Run flies the mission. Arm failures are fatal; mission step failures are
// logged and skipped unless the settings ask to abort on them.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.waitHealthy(ctx); err != nil {
		return err
	}

	plan, err := o.resolvePlan()
	if err != nil {
		return err
	}

	if err = o.check(ctx, o.runner.Clear(ctx)); err != nil {
		return err
	}

	o.runner.Setup(plan)
	o.storePlan(ctx, plan)

	if err = o.check(ctx, o.runner.Upload(ctx)); err != nil {
		return err
	}

	if err = o.arm(ctx); err != nil {
		return err
	}

	o.system.SubscribeMissionProgress(o.onProgress)

	if o.recorder != nil {
		if _, err = o.recorder.BeginRecording(ctx); err != nil {
			o.logger.Warn(fmt.Sprintf("telemetry recording not started: %s", err.Error()))
		}
		defer o.recorder.Stop()
	}

	if err = o.check(ctx, o.runner.Start(ctx)); err != nil {
		return err
	}

	if err = o.pauseAndResume(ctx); err != nil {
		return err
	}

	if o.runner.State() == mission.StateStarted {
		if err = o.runner.WaitFinished(ctx, o.settings.PollInterval); err != nil {
			return fmt.Errorf("waiting for mission to finish: %w", err)
		}
	} else {
		o.logger.Warn("mission not running, skipping wait", slog.String("state", o.runner.State().String()))
	}

	if err = o.check(ctx, o.runner.Clear(ctx)); err != nil {
		return err
	}

	return o.returnToLaunch(ctx)
}

func (o *Orchestrator) waitHealthy(ctx context.Context) error {
	for attempt := 1; attempt <= o.settings.HealthRetries; attempt++ {
		health := o.system.Health()
		if health.AllOK() {
			o.logger.Info("system is ready")
			return nil
		}

		o.logger.Info("waiting for system to be ready",
			slog.String("attempt", humanize.Ordinal(attempt)),
			slog.Group("health",
				slog.Bool("gyrometer", health.GyrometerOK),
				slog.Bool("accelerometer", health.AccelerometerOK),
				slog.Bool("magnetometer", health.MagnetometerOK),
				slog.Bool("localPosition", health.LocalPositionOK),
				slog.Bool("globalPosition", health.GlobalPositionOK),
				slog.Bool("homePosition", health.HomePositionOK),
			),
		)

		if err := sleep(ctx, o.settings.HealthInterval); err != nil {
			return err
		}
	}

	o.logger.Warn("system not ready")

	result := o.system.Disarm(ctx)
	o.recordStep("disarm", result, o.runner.State())
	if !result.OK() {
		o.logger.Error(fmt.Sprintf("disarming failed (%s)", result))
	}

	return autopilot.ErrSystemNotReady
}

func (o *Orchestrator) resolvePlan() (mission.Plan, error) {
	var home *geo.GeoPoint
	if o.spec.NeedsHome() {
		h, ok := o.system.Home()
		if !ok {
			return mission.Plan{}, mission.ErrHomeUnknown
		}
		home = &h
		o.logger.Info("home position", slog.String("home", h.String()))
	}

	plan, err := o.spec.Resolve(home)
	if err != nil {
		return mission.Plan{}, fmt.Errorf("resolving mission: %w", err)
	}

	o.logger.Info("mission plan",
		slog.Int("items", plan.Len()),
		slog.String("path", humanize.SIWithDigits(plan.PathLength(), 1, "m")),
	)

	for i, item := range plan.Items() {
		o.logger.Debug(fmt.Sprintf("%s waypoint", humanize.Ordinal(i+1)), slog.String("item", item.String()))
	}

	return plan, nil
}

func (o *Orchestrator) arm(ctx context.Context) error {
	o.logger.Info("arming...")

	cmdCtx, cancel := o.commandContext(ctx)
	defer cancel()

	result := o.system.Arm(cmdCtx)
	o.recordStep("arm", result, o.runner.State())
	if !result.OK() {
		if err := ctx.Err(); err != nil {
			return err
		}
		return &autopilot.CommandError{Kind: autopilot.CommandArm, Result: result}
	}

	o.logger.Info("armed")
	return nil
}

// onProgress runs on the vehicle goroutine and only raises the pause flag
func (o *Orchestrator) onProgress(p autopilot.Progress) {
	o.logger.Info(fmt.Sprintf("mission status update: %s", p))

	if o.settings.PauseAtItem > 0 && p.Current >= o.settings.PauseAtItem {
		o.pauseRequested.Store(true)
	}
}

func (o *Orchestrator) pauseAndResume(ctx context.Context) error {
	if o.settings.PauseAtItem <= 0 || o.runner.State() != mission.StateStarted {
		return nil
	}

	for !o.pauseRequested.Load() {
		if finished, _ := o.system.IsMissionFinished(); finished {
			o.logger.Info("mission finished before the pause point")
			return nil
		}
		if err := sleep(ctx, o.settings.PollInterval); err != nil {
			return err
		}
	}

	if err := o.check(ctx, o.runner.Pause(ctx)); err != nil {
		return err
	}

	o.logger.Info("holding position", slog.Duration("hold", o.settings.PauseHold))
	if err := sleep(ctx, o.settings.PauseHold); err != nil {
		return err
	}

	return o.check(ctx, o.runner.Resume(ctx))
}

func (o *Orchestrator) returnToLaunch(ctx context.Context) error {
	o.logger.Info("commanding return to launch...")

	cmdCtx, cancel := o.commandContext(ctx)
	result := o.system.ReturnToLaunch(cmdCtx)
	cancel()

	o.recordStep("rtl", result, o.runner.State())
	if !result.OK() {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.logger.Error(fmt.Sprintf("return to launch failed (%s)", result))
	}

	if err := sleep(ctx, o.settings.DisarmWait); err != nil {
		return err
	}

	for o.system.Armed() {
		if err := sleep(ctx, o.settings.PollInterval); err != nil {
			return err
		}
	}

	o.logger.Info("disarmed")
	return nil
}

// check turns a failed mission step into an error when the context is done
// or the settings ask to abort on mission failures
func (o *Orchestrator) check(ctx context.Context, ok bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ok && o.settings.AbortOnMissionFailure {
		return o.runner.LastError()
	}
	return nil
}

func (o *Orchestrator) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.settings.CommandTimeout > 0 {
		return context.WithTimeout(ctx, o.settings.CommandTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) storePlan(ctx context.Context, plan mission.Plan) {
	if o.store == nil {
		return
	}
	if err := o.store.StoreMissionItems(ctx, o.sessionID, plan); err != nil {
		o.logger.Warn(fmt.Sprintf("error storing mission items: %s", err.Error()))
	}
}

// recordStep is the step hook writing mission events to the flight log
func (o *Orchestrator) recordStep(step string, result autopilot.Result, state mission.State) {
	if o.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventStoreTimeout)
	defer cancel()

	e := storage.Event{
		Timestamp: time.Now(),
		Step:      step,
		Result:    result.Code.String(),
		Reason:    result.Reason,
		State:     state.String(),
	}
	if _, err := o.store.StoreEvent(ctx, o.sessionID, &e); err != nil {
		o.logger.Warn(fmt.Sprintf("error storing event: %s", err.Error()))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
