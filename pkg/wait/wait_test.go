package wait_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vanderheijden86/canopy/pkg/wait"
)

// fakeClock advances a fixed step on every reading, so timeouts elapse
// deterministically without real sleeping.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestUntil_SettlesImmediately(t *testing.T) {
	w := wait.Waiter{Sleep: func(time.Duration) {}}
	if err := w.Until(context.Background(), func() bool { return true }); err != nil {
		t.Fatalf("Until: %v", err)
	}
}

func TestUntil_SettlesAfterPolls(t *testing.T) {
	calls := 0
	slept := 0
	w := wait.Waiter{
		Sleep: func(time.Duration) { slept++ },
	}
	err := w.Until(context.Background(), func() bool {
		calls++
		return calls >= 3
	})
	if err != nil {
		t.Fatalf("Until: %v", err)
	}
	if calls != 3 {
		t.Errorf("settled after %d polls, want 3", calls)
	}
	if slept != 2 {
		t.Errorf("slept %d times, want 2", slept)
	}
}

func TestUntil_Timeout(t *testing.T) {
	clock := &fakeClock{step: time.Second}
	w := wait.Waiter{
		Timeout: 3 * time.Second,
		Sleep:   func(time.Duration) {},
		Now:     clock.Now,
	}
	err := w.Until(context.Background(), func() bool { return false })
	if !errors.Is(err, wait.ErrTimeout) {
		t.Fatalf("Until = %v, want ErrTimeout", err)
	}
}

func TestUntil_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := wait.Waiter{Sleep: func(time.Duration) {}}
	err := w.Until(ctx, func() bool { return true })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Until = %v, want context.Canceled", err)
	}
}

func TestSettle(t *testing.T) {
	var slept time.Duration
	w := wait.Waiter{Sleep: func(d time.Duration) { slept += d }}

	if err := w.Settle(context.Background(), 250*time.Millisecond); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if slept != 250*time.Millisecond {
		t.Errorf("slept %v, want 250ms", slept)
	}

	// Zero and negative durations do not sleep.
	slept = 0
	if err := w.Settle(context.Background(), 0); err != nil {
		t.Fatalf("Settle(0): %v", err)
	}
	if slept != 0 {
		t.Errorf("slept %v for zero duration", slept)
	}
}

func TestSettle_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := wait.Waiter{Sleep: func(time.Duration) {}}
	if err := w.Settle(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("Settle = %v, want context.Canceled", err)
	}
}
