package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultInterval is the default time between two recorded snapshots
	DefaultInterval = time.Second

	// StoreErrorsThreshold defines the number of consecutive store errors allowed
	StoreErrorsThreshold = 5
)

// ErrTooManyStoreErrors is returned when the number of consecutive store errors exceeds the threshold
var ErrTooManyStoreErrors = errors.New("too many consecutive store errors")

// Sink persists telemetry snapshots
type Sink interface {
	StoreTelemetry(ctx context.Context, t *Telemetry) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, t *Telemetry) error

func (f SinkFunc) StoreTelemetry(ctx context.Context, t *Telemetry) error {
	return f(ctx, t)
}

// WithLogger sets the logger for the recorder
func WithLogger(logger *slog.Logger) func(r *Recorder) {
	return func(r *Recorder) {
		r.logger = logger.With(slog.String("component", "telemetry"))
	}
}

// WithInterval sets the sampling interval
func WithInterval(interval time.Duration) func(r *Recorder) {
	return func(r *Recorder) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithStoreErrorsThreshold sets the threshold for consecutive store errors
func WithStoreErrorsThreshold(threshold uint8) func(r *Recorder) {
	return func(r *Recorder) {
		r.storeErrorsThreshold = threshold
	}
}

// Recorder samples a telemetry provider at a fixed interval and hands the
// snapshots to a sink
type Recorder struct {
	provider Provider
	sink     Sink
	interval time.Duration

	isRecording atomic.Bool
	recorded    atomic.Int64
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	storeErrorsThreshold uint8
	logger               *slog.Logger
}

// NewRecorder creates a new Recorder instance with a discard logger
func NewRecorder(provider Provider, sink Sink, options ...func(r *Recorder)) *Recorder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	r := Recorder{
		provider:             provider,
		sink:                 sink,
		interval:             DefaultInterval,
		storeErrorsThreshold: StoreErrorsThreshold,
		logger:               logger,
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// BeginRecording starts sampling in a goroutine. The returned channel
// receives an error if recording stopped because of one, and is closed when
// recording stops.
func (r *Recorder) BeginRecording(ctx context.Context) (<-chan error, error) {
	if !r.isRecording.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("recorder is already running")
	}

	ctx, r.cancel = context.WithCancel(ctx)
	stopped := make(chan error, 1)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(stopped)
		defer r.isRecording.Store(false)

		r.logger.Info("starting telemetry recording...", slog.Duration("interval", r.interval))

		if err := r.record(ctx); err != nil {
			r.logger.Error(err.Error())
			stopped <- err
		}

		r.logger.Info("telemetry recording stopped", slog.Int64("recorded", r.recorded.Load()))
	}()

	return stopped, nil
}

func (r *Recorder) record(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var storeErrors uint8
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			t := r.provider.Get()
			if t == nil {
				continue
			}

			if err := r.sink.StoreTelemetry(ctx, t); err != nil {
				if ctx.Err() != nil {
					return nil
				}

				storeErrors++
				r.logger.Warn(fmt.Sprintf("error storing telemetry: %s", err.Error()))

				if storeErrors >= r.storeErrorsThreshold {
					return ErrTooManyStoreErrors
				}
				continue
			}

			storeErrors = 0 // reset counter
			r.recorded.Add(1)
		}
	}
}

// Stop stops recording and waits for the recording goroutine to exit
func (r *Recorder) Stop() {
	if !r.isRecording.Load() {
		return // already stopped
	}

	r.cancel()
	r.wg.Wait()
}

// IsRecording returns true if the recorder is running
func (r *Recorder) IsRecording() bool {
	return r.isRecording.Load()
}

// Recorded returns the number of snapshots stored so far
func (r *Recorder) Recorded() int64 {
	return r.recorded.Load()
}
