// Package waiter implements bounded polling for page conditions.
//
// Exists answers "is it there yet?" and degrades to false when the timeout
// elapses, which lets callers branch on UI state. Require turns the same
// timeout into an ErrWaitTimeout failure for steps that cannot proceed
// without the element.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/extkeeper/pkg/logging"
)

// ErrWaitTimeout is returned by Require when the element never appeared.
var ErrWaitTimeout = errors.New("timed out waiting for element")

// Default values
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 500 * time.Millisecond
)

// Clock abstracts time so polling loops can be driven by tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock returns a Clock backed by the system time.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Prober reports whether a locator currently matches an element.
type Prober interface {
	Present(ctx context.Context, locator string) (bool, error)
}

// Waiter polls a Prober until a condition holds or a timeout elapses.
type Waiter struct {
	clock    Clock
	interval time.Duration
	timeout  time.Duration
	logger   *logging.Logger
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithInterval sets the delay between polls.
func WithInterval(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithTimeout sets the timeout used when callers pass 0.
func WithTimeout(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithLogger sets the logger used to report Require failures.
func WithLogger(logger *logging.Logger) Option {
	return func(w *Waiter) {
		w.logger = logger
	}
}

// New creates a waiter on the given clock.
func New(clock Clock, opts ...Option) *Waiter {
	w := &Waiter{
		clock:    clock,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Clock returns the waiter's clock.
func (w *Waiter) Clock() Clock {
	return w.clock
}

// Exists polls until locator is present or timeout elapses. A timeout is not
// an error: it yields false. Errors from the prober (the session is gone) and
// context cancellation are returned as-is.
func (w *Waiter) Exists(ctx context.Context, p Prober, locator string, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = w.timeout
	}
	deadline := w.clock.Now().Add(timeout)

	for {
		present, err := p.Present(ctx, locator)
		if err != nil {
			return false, err
		}
		if present {
			return true, nil
		}

		remaining := deadline.Sub(w.clock.Now())
		if remaining <= 0 {
			return false, nil
		}
		if err := w.clock.Sleep(ctx, min(w.interval, remaining)); err != nil {
			return false, err
		}
	}
}

// Require polls like Exists but fails with ErrWaitTimeout when the element
// does not appear in time.
func (w *Waiter) Require(ctx context.Context, p Prober, locator string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = w.timeout
	}

	present, err := w.Exists(ctx, p, locator, timeout)
	if err != nil {
		return err
	}
	if !present {
		err := fmt.Errorf("%w: %s after %s", ErrWaitTimeout, locator, timeout)
		w.logger.Errorf("Error waiting for element %s: %v", locator, err)
		return err
	}
	return nil
}
