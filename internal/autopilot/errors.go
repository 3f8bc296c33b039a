package autopilot

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection is returned when the link to the vehicle cannot be established
	ErrConnection = errors.New("connection failed")

	// ErrSystemNotReady is returned when the vehicle health checks never pass
	ErrSystemNotReady = errors.New("system not ready")

	// ErrSystemTimedOut is returned when the vehicle stops sending heartbeats
	ErrSystemTimedOut = errors.New("system timed out")

	// ErrNoResult is returned when a command callback never fired before the
	// wait was abandoned
	ErrNoResult = errors.New("command produced no result")

	// ErrInvalidURL is returned for malformed connection URLs
	ErrInvalidURL = errors.New("invalid connection URL")
)

const (
	CommandArm CommandKind = iota
	CommandDisarm
	CommandRTL
	CommandMission
)

// CommandKind names the vehicle command that failed
type CommandKind uint8

func (k CommandKind) String() string {
	switch k {
	case CommandArm:
		return "arm"
	case CommandDisarm:
		return "disarm"
	case CommandRTL:
		return "return to launch"
	case CommandMission:
		return "mission"
	default:
		return fmt.Sprintf("CommandKind(%d)", uint8(k))
	}
}

// CommandError reports a command the vehicle refused or failed
type CommandError struct {
	Kind   CommandKind
	Step   string // mission step, empty for other kinds
	Result Result
}

func (e *CommandError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s %s failed (%s)", e.Kind, e.Step, e.Result)
	}
	return fmt.Sprintf("%s failed (%s)", e.Kind, e.Result)
}

// IsCommandKind reports whether err is a CommandError of the given kind
func IsCommandKind(err error, kind CommandKind) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr) && cmdErr.Kind == kind
}
