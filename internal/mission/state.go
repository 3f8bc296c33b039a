package mission

import (
	"errors"
	"fmt"
	"sync"
)

const (
	StateIdle State = iota
	StateCleared
	StateUploaded
	StateStarted
	StatePaused
	StateFinished
)

const (
	EventClear Event = iota
	EventUpload
	EventStart
	EventPause
	EventFinish
)

// ErrIllegalTransition is returned when an event is not allowed in the current state
var ErrIllegalTransition = errors.New("illegal mission state transition")

// State is the lifecycle state of a mission on the vehicle
type State uint8

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCleared:
		return "cleared"
	case StateUploaded:
		return "uploaded"
	case StateStarted:
		return "started"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Event moves a mission from one state to another
type Event uint8

func (e Event) String() string {
	switch e {
	case EventClear:
		return "clear"
	case EventUpload:
		return "upload"
	case EventStart:
		return "start"
	case EventPause:
		return "pause"
	case EventFinish:
		return "finish"
	default:
		return fmt.Sprintf("Event(%d)", uint8(e))
	}
}

type transition struct {
	from  State
	event Event
}

// A resume is a start issued from the paused state.
var transitions = map[transition]State{
	{StateIdle, EventClear}:     StateCleared,
	{StateCleared, EventUpload}: StateUploaded,
	{StateUploaded, EventStart}: StateStarted,
	{StateStarted, EventPause}:  StatePaused,
	{StatePaused, EventStart}:   StateStarted,
	{StateStarted, EventFinish}: StateFinished,
	{StateFinished, EventClear}: StateCleared,
}

// Next returns the state reached from s on event e.
func Next(s State, e Event) (State, error) {
	next, ok := transitions[transition{s, e}]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, e, s)
	}
	return next, nil
}

// Machine tracks the mission state. It is safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	state   State
	history []State
}

// NewMachine creates a machine in the idle state
func NewMachine() *Machine {
	return &Machine{history: []State{StateIdle}}
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Can reports whether event e is legal in the current state
func (m *Machine) Can(e Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := Next(m.state, e)
	return err == nil
}

// Fire applies event e. On an illegal event the state is left untouched.
func (m *Machine) Fire(e Event) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := Next(m.state, e)
	if err != nil {
		return m.state, err
	}

	m.state = next
	m.history = append(m.history, next)
	return next, nil
}

// History returns every state the machine has been in, oldest first
func (m *Machine) History() []State {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := make([]State, len(m.history))
	copy(h, m.history)
	return h
}
