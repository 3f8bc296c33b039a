package autopilot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Submit starts an asynchronous command whose outcome is delivered to done
type Submit func(done ResultCallback)

type awaitConfig struct {
	timeout time.Duration
}

// AwaitOption configures Await
type AwaitOption func(*awaitConfig)

// WithTimeout bounds the wait for the command result. Zero means wait for as
// long as the context lives.
func WithTimeout(timeout time.Duration) AwaitOption {
	return func(c *awaitConfig) {
		c.timeout = timeout
	}
}

// resultSlot is a single-assignment slot: the first result is kept, later
// ones are dropped without blocking the caller.
type resultSlot struct {
	once sync.Once
	ch   chan Result
}

func newResultSlot() *resultSlot {
	return &resultSlot{ch: make(chan Result, 1)}
}

func (s *resultSlot) set(r Result) {
	s.once.Do(func() {
		s.ch <- r
	})
}

// Await submits an asynchronous command and blocks until its callback
// fires, returning the result verbatim. If ctx is done or the timeout
// elapses first, Await returns a ResultTimeout failure and an error
// wrapping ErrNoResult; the command itself is not cancelled.
func Await(ctx context.Context, submit Submit, options ...AwaitOption) (Result, error) {
	var config awaitConfig
	for _, option := range options {
		option(&config)
	}

	if config.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return Failure(ResultTimeout, err.Error()), fmt.Errorf("%w: %w", ErrNoResult, err)
	}

	slot := newResultSlot()
	submit(slot.set)

	select {
	case r := <-slot.ch:
		return r, nil

	case <-ctx.Done():
		return Failure(ResultTimeout, ctx.Err().Error()), fmt.Errorf("%w: %w", ErrNoResult, ctx.Err())
	}
}
