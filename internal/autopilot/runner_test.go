package autopilot

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/drone-mission/internal/mission"
)

type fakeMission struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]Result
	silent   map[string]bool
	uploaded mission.Plan
	finished bool
}

func newFakeMission() *fakeMission {
	return &fakeMission{
		fail:   make(map[string]Result),
		silent: make(map[string]bool),
	}
}

func (f *fakeMission) respond(name string, done ResultCallback) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	result, failed := f.fail[name]
	silent := f.silent[name]
	f.mu.Unlock()

	if silent {
		return
	}
	if !failed {
		result = Success()
	}
	go done(result)
}

func (f *fakeMission) ClearMissionAsync(done ResultCallback) { f.respond("clear", done) }

func (f *fakeMission) UploadMissionAsync(plan mission.Plan, done ResultCallback) {
	f.mu.Lock()
	f.uploaded = plan
	f.mu.Unlock()
	f.respond("upload", done)
}

func (f *fakeMission) PauseMissionAsync(done ResultCallback) { f.respond("pause", done) }
func (f *fakeMission) StartMissionAsync(done ResultCallback) { f.respond("start", done) }

func (f *fakeMission) SubscribeMissionProgress(func(Progress)) {}

func (f *fakeMission) IsMissionFinished() (bool, Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished, Success()
}

func (f *fakeMission) setFinished() {
	f.mu.Lock()
	f.finished = true
	f.mu.Unlock()
}

func (f *fakeMission) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func testPlan() mission.Plan {
	return mission.NewPlan(
		mission.NewItem(47.398, 8.545, 10, 5, true, 0, 0, mission.CameraNone),
		mission.NewItem(47.399, 8.546, 10, 5, true, 0, 0, mission.CameraTakePhoto),
	)
}

func TestMissionRunner_FullCycle(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMission()

	var steps []string
	runner := NewMissionRunner(fake, WithCommandTimeout(time.Second), WithStepHook(func(step string, result Result, _ mission.State) {
		if !result.OK() {
			t.Errorf("step %s failed: %v", step, result)
		}
		steps = append(steps, step)
	}))

	if !runner.Clear(ctx) {
		t.Fatal("clear failed")
	}
	runner.Setup(testPlan())
	for _, step := range []func(context.Context) bool{runner.Upload, runner.Start, runner.Pause, runner.Resume} {
		if !step(ctx) {
			t.Fatalf("step failed: %v", runner.LastError())
		}
	}

	fake.setFinished()
	if err := runner.WaitFinished(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("WaitFinished: %v", err)
	}
	if !runner.Clear(ctx) {
		t.Fatal("final clear failed")
	}

	wantCalls := []string{"clear", "upload", "start", "pause", "start", "clear"}
	if got := fake.called(); !slices.Equal(got, wantCalls) {
		t.Errorf("vehicle calls = %v, want %v", got, wantCalls)
	}

	wantSteps := []string{"clear", "upload", "start", "pause", "resume", "finish", "clear"}
	if !slices.Equal(steps, wantSteps) {
		t.Errorf("hooked steps = %v, want %v", steps, wantSteps)
	}

	wantHistory := []mission.State{
		mission.StateIdle,
		mission.StateCleared,
		mission.StateUploaded,
		mission.StateStarted,
		mission.StatePaused,
		mission.StateStarted,
		mission.StateFinished,
		mission.StateCleared,
	}
	if got := runner.History(); !slices.Equal(got, wantHistory) {
		t.Errorf("history = %v, want %v", got, wantHistory)
	}

	if fake.uploaded.Len() != 2 {
		t.Errorf("uploaded %d items, want 2", fake.uploaded.Len())
	}
	if runner.LastError() != nil {
		t.Errorf("unexpected last error: %v", runner.LastError())
	}
}

func TestMissionRunner_IllegalStepIsNotSent(t *testing.T) {
	fake := newFakeMission()
	runner := NewMissionRunner(fake)

	if runner.Start(context.Background()) {
		t.Fatal("start from idle succeeded")
	}
	if calls := fake.called(); len(calls) != 0 {
		t.Errorf("vehicle received %v", calls)
	}

	err := runner.LastError()
	if !errors.Is(err, mission.ErrIllegalTransition) {
		t.Errorf("expected ErrIllegalTransition, got %v", err)
	}
	if !IsCommandKind(err, CommandMission) {
		t.Errorf("expected a mission command error, got %v", err)
	}
	if runner.State() != mission.StateIdle {
		t.Errorf("state changed to %s", runner.State())
	}
}

func TestMissionRunner_FailureKeepsState(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMission()
	fake.fail["upload"] = Failure(ResultTooManyMissionItems, "too many items")

	runner := NewMissionRunner(fake)
	runner.Setup(testPlan())

	if !runner.Clear(ctx) {
		t.Fatal("clear failed")
	}
	if runner.Upload(ctx) {
		t.Fatal("upload succeeded")
	}
	if runner.State() != mission.StateCleared {
		t.Errorf("state = %s, want %s", runner.State(), mission.StateCleared)
	}

	var cmdErr *CommandError
	if !errors.As(runner.LastError(), &cmdErr) {
		t.Fatalf("expected CommandError, got %v", runner.LastError())
	}
	if cmdErr.Step != "upload" || cmdErr.Result.Code != ResultTooManyMissionItems {
		t.Errorf("unexpected command error: %+v", cmdErr)
	}

	// a later step is still attempted by the caller
	delete(fake.fail, "upload")
	if !runner.Upload(ctx) {
		t.Fatalf("retry failed: %v", runner.LastError())
	}
}

func TestMissionRunner_CommandTimeout(t *testing.T) {
	fake := newFakeMission()
	fake.silent["clear"] = true

	runner := NewMissionRunner(fake, WithCommandTimeout(20*time.Millisecond))
	if runner.Clear(context.Background()) {
		t.Fatal("clear succeeded without a response")
	}
	if !errors.Is(runner.LastError(), ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", runner.LastError())
	}
}

func TestMissionRunner_WaitFinishedCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	runner := NewMissionRunner(newFakeMission())
	if err := runner.WaitFinished(ctx, 5*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
