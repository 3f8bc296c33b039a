// Package mavlink drives a real autopilot over MAVLink. The wire codec and
// the transports are gomavlib's; this package implements the ground station
// side of the heartbeat, command and mission protocols on top of them.
package mavlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/roman-kulish/drone-mission/internal/autopilot"
	"github.com/roman-kulish/drone-mission/internal/geo"
)

const (
	// GroundSystemID is the system ID this ground station sends with
	GroundSystemID = 245

	// GroundComponentID is MAV_COMP_ID_MISSIONPLANNER
	GroundComponentID = 190

	// DefaultHeartbeatTimeout is how long the vehicle may stay silent before
	// it is considered lost
	DefaultHeartbeatTimeout = 3 * time.Second

	// DefaultCommandTimeout bounds a single command or mission transfer step
	DefaultCommandTimeout = 5 * time.Second
)

// ErrNoVehicle is returned by Connect when no autopilot heartbeat arrives
var ErrNoVehicle = errors.New("no autopilot heartbeat received")

// WithLogger sets the logger for the system
func WithLogger(logger *slog.Logger) func(*System) {
	return func(s *System) {
		s.logger = logger.With(slog.String("link", "mavlink"))
	}
}

// WithHeartbeatTimeout sets how long the vehicle may stay silent.
// Non-positive values keep the default.
func WithHeartbeatTimeout(timeout time.Duration) func(*System) {
	return func(s *System) {
		if timeout > 0 {
			s.heartbeatTimeout = timeout
		}
	}
}

// WithCommandTimeout bounds every command acknowledgement and mission
// transfer step
func WithCommandTimeout(timeout time.Duration) func(*System) {
	return func(s *System) {
		s.commandTimeout = timeout
	}
}

// System is a vehicle discovered on a MAVLink link. It implements
// autopilot.System.
type System struct {
	node  *gomavlib.Node
	write func(message.Message) error

	heartbeatTimeout time.Duration
	commandTimeout   time.Duration

	mu            sync.Mutex
	systemID      uint8
	componentID   uint8
	lastHeartbeat time.Time
	timedOut      bool
	state         vehicleState
	waiters       []*waiter
	transfer      bool
	mission       missionState

	progressFns []func(autopilot.Progress)
	timeoutFns  []func(uint8)

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *slog.Logger
}

func newSystem(write func(message.Message) error, options ...func(*System)) *System {
	s := System{
		write:            write,
		heartbeatTimeout: DefaultHeartbeatTimeout,
		commandTimeout:   DefaultCommandTimeout,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// endpoint maps a connection URL onto a gomavlib endpoint
func endpoint(u *autopilot.ConnectionURL) (gomavlib.EndpointConf, error) {
	switch u.Scheme {
	case autopilot.SchemeTCP:
		return gomavlib.EndpointTCPClient{Address: u.Address()}, nil
	case autopilot.SchemeUDP:
		return gomavlib.EndpointUDPServer{Address: u.Address()}, nil
	case autopilot.SchemeSerial:
		return gomavlib.EndpointSerial{Device: u.Device, Baud: u.Baud}, nil
	default:
		return nil, fmt.Errorf("%w: scheme '%s' is not a MAVLink link", autopilot.ErrInvalidURL, u.Scheme)
	}
}

// Connect opens the link described by u and blocks until the first
// autopilot heartbeat arrives or ctx is done.
func Connect(ctx context.Context, u *autopilot.ConnectionURL, options ...func(*System)) (*System, error) {
	ep, err := endpoint(u)
	if err != nil {
		return nil, err
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:      []gomavlib.EndpointConf{ep},
		Dialect:        common.Dialect,
		OutVersion:     gomavlib.V2,
		OutSystemID:    GroundSystemID,
		OutComponentID: GroundComponentID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", autopilot.ErrConnection, err)
	}

	s := newSystem(node.WriteMessageAll, options...)
	s.node = node
	s.logger.Info("waiting to discover system...", slog.String("url", u.String()))

	discovered := make(chan struct{})

	var loopCtx context.Context
	loopCtx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(2)
	go s.readLoop(loopCtx, discovered)
	go s.watchdog(loopCtx)

	select {
	case <-discovered:
	case <-ctx.Done():
		_ = s.Close()
		return nil, fmt.Errorf("%w: %w: %w", autopilot.ErrConnection, ErrNoVehicle, ctx.Err())
	}

	s.logger.Info("discovered system", slog.Int("systemID", int(s.ID())))
	s.requestHome()

	return s, nil
}

// readLoop dispatches incoming frames until the node is closed
func (s *System) readLoop(ctx context.Context, discovered chan<- struct{}) {
	defer s.wg.Done()

	var once sync.Once

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-s.node.Events():
			if !ok {
				return
			}

			switch e := evt.(type) {
			case *gomavlib.EventChannelOpen:
				s.logger.Debug("channel open", slog.String("channel", e.Channel.String()))

			case *gomavlib.EventChannelClose:
				s.logger.Warn("channel closed", slog.String("channel", e.Channel.String()))

			case *gomavlib.EventFrame:
				if s.handle(e.SystemID(), e.ComponentID(), e.Message()) {
					once.Do(func() { close(discovered) })
				}
			}
		}
	}
}

// watchdog fires the timeout callbacks when heartbeats stop
func (s *System) watchdog(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(max(s.heartbeatTimeout/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.checkHeartbeat(now)

			if _, known := s.Home(); !known && s.ID() != 0 {
				s.requestHome()
			}
		}
	}
}

func (s *System) checkHeartbeat(now time.Time) {
	s.mu.Lock()
	if s.systemID == 0 || s.timedOut || now.Sub(s.lastHeartbeat) < s.heartbeatTimeout {
		s.mu.Unlock()
		return
	}
	s.timedOut = true
	id := s.systemID
	fns := append([]func(uint8){}, s.timeoutFns...)
	s.mu.Unlock()

	s.logger.Warn("system timed out", slog.Int("systemID", int(id)))
	for _, fn := range fns {
		fn(id)
	}
}

// handle processes one incoming message. It reports whether the sender is
// the discovered vehicle.
func (s *System) handle(systemID, componentID uint8, msg message.Message) bool {
	if hb, ok := msg.(*common.MessageHeartbeat); ok {
		if !s.heartbeat(systemID, componentID, hb) {
			return false
		}
	}

	s.mu.Lock()
	target := s.systemID
	s.mu.Unlock()

	if target == 0 || systemID != target {
		return false
	}

	s.updateState(msg)
	s.dispatch(msg)

	return true
}

// heartbeat registers a heartbeat and reports whether it came from the
// vehicle. The first autopilot heard becomes the vehicle.
func (s *System) heartbeat(systemID, componentID uint8, hb *common.MessageHeartbeat) bool {
	if hb.Autopilot == common.MAV_AUTOPILOT_INVALID {
		return false // another ground station
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.systemID == 0 {
		s.systemID = systemID
		s.componentID = componentID
	}
	if systemID != s.systemID {
		return false
	}

	if s.timedOut {
		s.logger.Info("system heartbeat resumed", slog.Int("systemID", int(systemID)))
	}
	s.lastHeartbeat = time.Now()
	s.timedOut = false
	return true
}

// send addresses msg to the vehicle and writes it to the link
func (s *System) send(msg message.Message) error {
	if err := s.write(msg); err != nil {
		return fmt.Errorf("error writing %T: %w", msg, err)
	}
	return nil
}

func (s *System) target() (uint8, uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.systemID, s.componentID
}

// requestHome asks the vehicle to send HOME_POSITION
func (s *System) requestHome() {
	sys, comp := s.target()

	err := s.send(&common.MessageCommandLong{
		TargetSystem:    sys,
		TargetComponent: comp,
		Command:         common.MAV_CMD_REQUEST_MESSAGE,
		Param1:          float32((&common.MessageHomePosition{}).GetID()),
	})
	if err != nil {
		s.logger.Warn(err.Error())
	}
}

// ID implements autopilot.System
func (s *System) ID() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.systemID
}

// OnTimeout implements autopilot.System
func (s *System) OnTimeout(fn func(systemID uint8)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timeoutFns = append(s.timeoutFns, fn)
}

// Close implements autopilot.System
func (s *System) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.node != nil {
			s.node.Close()
		}
		s.wg.Wait()
		s.failWaiters(autopilot.Failure(autopilot.ResultNoSystem, "link closed"))
	})
	return nil
}

// Home implements autopilot.Telemetry
func (s *System) Home() (geo.GeoPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.home == nil {
		return geo.GeoPoint{}, false
	}
	return *s.state.home, true
}

var _ autopilot.System = (*System)(nil)
