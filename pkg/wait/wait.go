// Package wait provides the bounded settle wait used at every
// suspension point of a traversal: after expand, after scroll, after
// select. A Waiter polls a settle check until it passes or a declared
// timeout elapses, instead of sleeping for a fixed delay, so tests can
// inject a zero-cost sleep and a deterministic check.
package wait

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the settle check never passed within the
// waiter's timeout. Callers treat it as a degradation, not a failure:
// the engine proceeds with whatever is currently rendered.
var ErrTimeout = errors.New("settle wait timed out")

// Default wait parameters, tuned for remote UI rendering latency.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// Waiter polls a settle check at Interval until it passes or Timeout
// elapses. The zero value uses the defaults and real sleeping.
type Waiter struct {
	Timeout  time.Duration
	Interval time.Duration

	// Sleep is called between polls. Defaults to time.Sleep; tests
	// inject a no-op to run waits at full speed.
	Sleep func(time.Duration)

	// Now is the clock used for the timeout deadline. Defaults to
	// time.Now.
	Now func() time.Time
}

// Until polls settled until it returns true, the timeout elapses, or
// ctx is cancelled. Context cancellation wins over the timeout so a
// cancelled traversal aborts promptly even mid-wait.
func (w Waiter) Until(ctx context.Context, settled func() bool) error {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	sleep := w.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	now := w.Now
	if now == nil {
		now = time.Now
	}

	deadline := now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if settled() {
			return nil
		}
		if !now().Before(deadline) {
			return ErrTimeout
		}
		sleep(interval)
	}
}

// Settle performs a plain bounded pause: it waits for the full duration
// without a settle check, honoring cancellation. Used where the remote
// UI offers nothing observable to poll.
func (w Waiter) Settle(ctx context.Context, d time.Duration) error {
	sleep := w.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		sleep(d)
	}
	return ctx.Err()
}
