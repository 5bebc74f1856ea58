package device

import (
	"context"
	"sync"
	"time"
)

// Default capture cadence.
const (
	DelayFast      = 200 * time.Millisecond
	DelayStep      = 100 * time.Millisecond
	DelayMax       = 1000 * time.Millisecond
	DelayScreenOff = 1000 * time.Millisecond
)

// DelayController holds the inter-capture delay. A waiter sleeps for the
// current delay and is released early whenever the delay changes.
type DelayController struct {
	mu    sync.Mutex
	delay time.Duration
	step  time.Duration
	max   time.Duration
	wake  chan struct{}
	wakes uint64
}

// NewDelayController creates a controller starting at initial.
func NewDelayController(initial, step, maxDelay time.Duration) *DelayController {
	return &DelayController{
		delay: initial,
		step:  step,
		max:   maxDelay,
		wake:  make(chan struct{}),
	}
}

// CurrentDelay returns the delay the next Wait will sleep for.
func (d *DelayController) CurrentDelay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay
}

// Wait sleeps for the current delay, until the delay changes or until ctx is done.
// A zero delay returns immediately.
func (d *DelayController) Wait(ctx context.Context) error {
	d.mu.Lock()
	delay := d.delay
	wake := d.wake
	d.mu.Unlock()

	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetDelay updates the delay and releases any waiter. Setting the current
// value again is a no-op and does not wake anyone.
func (d *DelayController) SetDelay(v time.Duration) {
	if v < 0 {
		v = 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if v == d.delay {
		return
	}
	d.delay = v
	close(d.wake)
	d.wake = make(chan struct{})
	d.wakes++
}

// Increase raises the delay by one step, capped at the maximum.
// Waiters are not released; the longer delay applies from the next Wait.
func (d *DelayController) Increase() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.delay < d.max {
		d.delay += d.step
		if d.delay > d.max {
			d.delay = d.max
		}
	}
	return d.delay
}

// SetLimits changes the backoff step and ceiling.
func (d *DelayController) SetLimits(step, maxDelay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.step = step
	d.max = maxDelay
}
