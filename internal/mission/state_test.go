package mission

import (
	"errors"
	"slices"
	"testing"
)

func TestMachine_FullCycle(t *testing.T) {
	m := NewMachine()

	steps := []struct {
		event Event
		want  State
	}{
		{EventClear, StateCleared},
		{EventUpload, StateUploaded},
		{EventStart, StateStarted},
		{EventPause, StatePaused},
		{EventStart, StateStarted}, // resume
		{EventFinish, StateFinished},
		{EventClear, StateCleared},
	}

	for i, step := range steps {
		got, err := m.Fire(step.event)
		if err != nil {
			t.Fatalf("step %d (%s): unexpected error: %v", i, step.event, err)
		}
		if got != step.want {
			t.Fatalf("step %d (%s): got state %s, want %s", i, step.event, got, step.want)
		}
	}

	want := []State{
		StateIdle, StateCleared, StateUploaded, StateStarted, StatePaused,
		StateStarted, StateFinished, StateCleared,
	}
	if history := m.History(); !slices.Equal(history, want) {
		t.Errorf("history = %v, want %v", history, want)
	}
}

func TestNext_OnlyDocumentedTransitions(t *testing.T) {
	legal := map[State]map[Event]State{
		StateIdle:     {EventClear: StateCleared},
		StateCleared:  {EventUpload: StateUploaded},
		StateUploaded: {EventStart: StateStarted},
		StateStarted:  {EventPause: StatePaused, EventFinish: StateFinished},
		StatePaused:   {EventStart: StateStarted},
		StateFinished: {EventClear: StateCleared},
	}

	states := []State{StateIdle, StateCleared, StateUploaded, StateStarted, StatePaused, StateFinished}
	events := []Event{EventClear, EventUpload, EventStart, EventPause, EventFinish}

	for _, s := range states {
		for _, e := range events {
			got, err := Next(s, e)

			want, ok := legal[s][e]
			if ok {
				if err != nil {
					t.Errorf("%s on %s: unexpected error %v", e, s, err)
				} else if got != want {
					t.Errorf("%s on %s: got %s, want %s", e, s, got, want)
				}
				continue
			}

			if !errors.Is(err, ErrIllegalTransition) {
				t.Errorf("%s on %s: expected ErrIllegalTransition, got state %s err %v", e, s, got, err)
			}
			if got != s {
				t.Errorf("%s on %s: illegal event changed state to %s", e, s, got)
			}
		}
	}
}

func TestMachine_IllegalEventKeepsState(t *testing.T) {
	m := NewMachine()
	for _, e := range []Event{EventClear, EventUpload, EventStart, EventPause} {
		if _, err := m.Fire(e); err != nil {
			t.Fatalf("%s: %v", e, err)
		}
	}

	if m.Can(EventUpload) {
		t.Error("upload should not be allowed while paused")
	}
	if _, err := m.Fire(EventUpload); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if s := m.State(); s != StatePaused {
		t.Errorf("state = %s, want %s", s, StatePaused)
	}
}
