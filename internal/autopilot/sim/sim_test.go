package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/drone-mission/internal/autopilot"
	"github.com/roman-kulish/drone-mission/internal/mission"
)

func testPlan() mission.Plan {
	return mission.NewPlan(
		mission.NewItem(47.398039859999997, 8.5455725400000002, 10, 5, true, 20, 60, mission.CameraNone),
		mission.NewItem(47.398036222362471, 8.5450146439425509, 10, 2, true, 0, -60, mission.CameraTakePhoto),
		mission.NewItem(47.397825620791885, 8.5450092830163271, 10, 5, true, -45, 0, mission.CameraStartVideo),
	)
}

func newTestVehicle(t *testing.T, options ...func(*Vehicle)) *Vehicle {
	t.Helper()

	options = append([]func(*Vehicle){WithTick(10 * time.Millisecond), WithLatency(time.Millisecond)}, options...)
	v := NewVehicle(options...)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func await(t *testing.T, submit autopilot.Submit) autopilot.Result {
	t.Helper()

	result, err := autopilot.Await(context.Background(), submit, autopilot.WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("no result: %v", err)
	}
	return result
}

func TestVehicle_FliesMission(t *testing.T) {
	v := newTestVehicle(t)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []autopilot.Progress
	v.SubscribeMissionProgress(func(p autopilot.Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})

	if r := await(t, v.ClearMissionAsync); !r.OK() {
		t.Fatalf("clear: %v", r)
	}
	if r := await(t, func(done autopilot.ResultCallback) { v.UploadMissionAsync(testPlan(), done) }); !r.OK() {
		t.Fatalf("upload: %v", r)
	}
	if r := v.Arm(ctx); !r.OK() {
		t.Fatalf("arm: %v", r)
	}
	if r := await(t, v.StartMissionAsync); !r.OK() {
		t.Fatalf("start: %v", r)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		finished, r := v.IsMissionFinished()
		if !r.OK() {
			t.Fatalf("IsMissionFinished: %v", r)
		}
		if finished {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("mission did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	last := seen[len(seen)-1]
	mu.Unlock()
	if last.Current != 3 || last.Total != 3 {
		t.Errorf("last progress = %v, want 3 / 3", last)
	}

	snapshot := v.Get()
	want := testPlan().Item(2).Position
	if *snapshot.Latitude != want.Latitude || *snapshot.Longitude != want.Longitude {
		t.Errorf("vehicle at (%f, %f), want %s", *snapshot.Latitude, *snapshot.Longitude, want)
	}
}

func TestVehicle_PauseHoldsPosition(t *testing.T) {
	v := newTestVehicle(t, WithTick(20*time.Millisecond))
	ctx := context.Background()

	reached := make(chan struct{}, 8)
	v.SubscribeMissionProgress(func(p autopilot.Progress) {
		if p.Current >= 1 {
			reached <- struct{}{}
		}
	})

	await(t, func(done autopilot.ResultCallback) { v.UploadMissionAsync(testPlan(), done) })
	v.Arm(ctx)
	await(t, v.StartMissionAsync)

	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatal("mission never progressed")
	}

	if r := await(t, v.PauseMissionAsync); !r.OK() {
		t.Fatalf("pause: %v", r)
	}
	held := *v.Get().MissionSeq

	time.Sleep(100 * time.Millisecond)
	if seq := *v.Get().MissionSeq; seq != held {
		t.Errorf("paused vehicle advanced from item %d to %d", held, seq)
	}
	if finished, _ := v.IsMissionFinished(); finished {
		t.Error("paused mission finished")
	}

	if r := await(t, v.StartMissionAsync); !r.OK() {
		t.Fatalf("resume: %v", r)
	}
	deadline := time.Now().Add(time.Second)
	for finished, _ := v.IsMissionFinished(); !finished; finished, _ = v.IsMissionFinished() {
		if time.Now().After(deadline) {
			t.Fatal("resumed mission did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestVehicle_StartRequiresArming(t *testing.T) {
	v := newTestVehicle(t)

	await(t, func(done autopilot.ResultCallback) { v.UploadMissionAsync(testPlan(), done) })

	r := await(t, v.StartMissionAsync)
	if r.Code != autopilot.ResultDenied {
		t.Errorf("start while disarmed = %v, want denied", r)
	}
}

func TestVehicle_UnhealthyCannotArm(t *testing.T) {
	v := newTestVehicle(t, WithUnhealthy())

	if v.Health().AllOK() {
		t.Fatal("unhealthy vehicle reports healthy")
	}
	if _, ok := v.Home(); ok {
		t.Error("home known without a home position fix")
	}
	if r := v.Arm(context.Background()); r.OK() {
		t.Error("unhealthy vehicle armed")
	}
}

func TestVehicle_HealthDelay(t *testing.T) {
	v := newTestVehicle(t, WithHealthDelay(50*time.Millisecond))

	if v.Health().AllOK() {
		t.Fatal("healthy before the delay elapsed")
	}
	time.Sleep(60 * time.Millisecond)
	if !v.Health().AllOK() {
		t.Fatal("not healthy after the delay")
	}
}

func TestVehicle_InjectedFailure(t *testing.T) {
	v := newTestVehicle(t, WithFailure(CommandUpload, autopilot.Failure(autopilot.ResultBusy, "busy")))

	r := await(t, func(done autopilot.ResultCallback) { v.UploadMissionAsync(testPlan(), done) })
	if r.Code != autopilot.ResultBusy {
		t.Errorf("upload = %v, want busy", r)
	}
}

func TestVehicle_NoResponse(t *testing.T) {
	v := newTestVehicle(t, WithNoResponse(CommandClear))

	_, err := autopilot.Await(context.Background(), v.ClearMissionAsync, autopilot.WithTimeout(30*time.Millisecond))
	if !errors.Is(err, autopilot.ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}
}

func TestVehicle_TooManyItems(t *testing.T) {
	v := newTestVehicle(t, WithMaxItems(2))

	r := await(t, func(done autopilot.ResultCallback) { v.UploadMissionAsync(testPlan(), done) })
	if r.Code != autopilot.ResultTooManyMissionItems {
		t.Errorf("upload = %v, want too many items", r)
	}
}

func TestVehicle_ReturnToLaunchDisarms(t *testing.T) {
	v := newTestVehicle(t)
	ctx := context.Background()

	if r := v.ReturnToLaunch(ctx); r.OK() {
		t.Error("RTL accepted while disarmed")
	}

	v.Arm(ctx)
	if r := v.ReturnToLaunch(ctx); !r.OK() {
		t.Fatalf("RTL: %v", r)
	}

	deadline := time.Now().Add(time.Second)
	for v.Armed() {
		if time.Now().After(deadline) {
			t.Fatal("vehicle still armed after RTL")
		}
		time.Sleep(5 * time.Millisecond)
	}

	home, _ := v.Home()
	if snapshot := v.Get(); *snapshot.Latitude != home.Latitude || *snapshot.RelativeAltitude != 0 {
		t.Errorf("vehicle not landed at home: %+v", snapshot)
	}
}

func TestVehicle_LinkLoss(t *testing.T) {
	v := newTestVehicle(t, WithSystemID(7), WithLinkLossAfter(20*time.Millisecond))

	lost := make(chan uint8, 2)
	v.OnTimeout(func(id uint8) { lost <- id })

	select {
	case id := <-lost:
		if id != 7 {
			t.Errorf("timeout for system %d, want 7", id)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout callback never fired")
	}

	v.LoseLink()
	select {
	case <-lost:
		t.Error("timeout callback fired twice")
	case <-time.After(20 * time.Millisecond):
	}
}
