// Package poll waits for a condition by re-checking it on a fixed interval
// until it holds or a deadline passes.
package poll

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultInterval = 50 * time.Millisecond
	DefaultTimeout  = 8000 * time.Millisecond
	DefaultMessage  = "Timed out"
)

// Predicate reports whether the awaited condition holds. Errors and panics
// count as "not yet".
type Predicate func(ctx context.Context) (bool, error)

// Clock is the time source used between attempts.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock uses the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TimeoutError is returned when the predicate never held within the timeout.
// Error() is the caller-supplied message verbatim.
type TimeoutError struct {
	Msg      string
	Attempts int
	Elapsed  time.Duration
	LastErr  error
}

func (e *TimeoutError) Error() string { return e.Msg }

type options struct {
	interval time.Duration
	timeout  time.Duration
	message  string
	clock    Clock
}

type Option func(*options)

func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithMessage(msg string) Option {
	return func(o *options) {
		if msg != "" {
			o.message = msg
		}
	}
}

func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// Until evaluates p immediately and then once per interval until it returns
// true. The next attempt is only scheduled after the previous one returned.
// Once a failed attempt observes more than timeout elapsed since the start,
// Until returns a *TimeoutError.
func Until(ctx context.Context, p Predicate, opts ...Option) error {
	o := options{
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		message:  DefaultMessage,
		clock:    RealClock{},
	}
	for _, fn := range opts {
		fn(&o)
	}

	start := o.clock.Now()
	attempts := 0
	var lastErr error
	for {
		attempts++
		ok, err := attempt(ctx, p)
		if ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		elapsed := o.clock.Now().Sub(start)
		if elapsed > o.timeout {
			return &TimeoutError{
				Msg:      o.message,
				Attempts: attempts,
				Elapsed:  elapsed,
				LastErr:  lastErr,
			}
		}

		if err := o.clock.Sleep(ctx, o.interval); err != nil {
			return err
		}
	}
}

func attempt(ctx context.Context, p Predicate) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("predicate panic: %v", r)
		}
	}()
	return p(ctx)
}
