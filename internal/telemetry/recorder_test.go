package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memorySink struct {
	mu      sync.Mutex
	stored  []*Telemetry
	failing bool
}

func (s *memorySink) StoreTelemetry(_ context.Context, t *Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return errors.New("disk full")
	}
	s.stored = append(s.stored, t)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.stored)
}

func TestRecorder_RecordsUntilStopped(t *testing.T) {
	lat, lon := 47.3981, 8.5456
	provider := ProviderFunc(func() *Telemetry {
		return &Telemetry{Timestamp: time.Now(), Latitude: &lat, Longitude: &lon}
	})
	sink := &memorySink{}

	rec := NewRecorder(provider, sink, WithInterval(5*time.Millisecond))

	done, err := rec.BeginRecording(context.Background())
	if err != nil {
		t.Fatalf("BeginRecording: %v", err)
	}
	if _, err = rec.BeginRecording(context.Background()); err == nil {
		t.Error("expected error when starting a running recorder")
	}

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rec.Stop()

	if err, ok := <-done; ok && err != nil {
		t.Fatalf("unexpected recording error: %v", err)
	}
	if rec.IsRecording() {
		t.Error("recorder still running after Stop")
	}
	if n := sink.count(); n < 3 {
		t.Errorf("expected at least 3 snapshots, got %d", n)
	}
	if int64(sink.count()) != rec.Recorded() {
		t.Errorf("Recorded() = %d, sink has %d", rec.Recorded(), sink.count())
	}
}

func TestRecorder_SkipsNilSnapshots(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(ProviderFunc(func() *Telemetry { return nil }), sink, WithInterval(time.Millisecond))

	if _, err := rec.BeginRecording(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	rec.Stop()

	if n := sink.count(); n != 0 {
		t.Errorf("expected no snapshots, got %d", n)
	}
}

func TestRecorder_StopsAfterConsecutiveStoreErrors(t *testing.T) {
	sink := &memorySink{failing: true}
	provider := ProviderFunc(func() *Telemetry { return &Telemetry{Timestamp: time.Now()} })

	rec := NewRecorder(provider, sink, WithInterval(time.Millisecond), WithStoreErrorsThreshold(3))

	done, err := rec.BeginRecording(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	select {
	case err = <-done:
		if !errors.Is(err, ErrTooManyStoreErrors) {
			t.Fatalf("expected ErrTooManyStoreErrors, got %v", err)
		}
	case <-time.After(2 * time.Second):
		rec.Stop()
		t.Fatal("recorder did not give up on a failing sink")
	}
}
