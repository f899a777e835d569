package state

import "time"

// Clock is the monotonic time source used by Timer.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Timer is a polled one-shot countdown. After Poll reports expiry it stays
// disarmed until Arm is called again.
type Timer struct {
	clock    Clock
	armed    bool
	deadline time.Time
	duration time.Duration
}

// NewTimer returns a disarmed timer. A nil clock uses SystemClock.
func NewTimer(clock Clock) *Timer {
	if clock == nil {
		clock = SystemClock{}
	}

	return &Timer{clock: clock}
}

// Arm starts the countdown, replacing any pending deadline.
func (t *Timer) Arm(d time.Duration) {
	if d < 0 {
		d = 0
	}

	t.duration = d
	t.deadline = t.clock.Now().Add(d)
	t.armed = true
}

// Cancel disarms the timer without firing.
func (t *Timer) Cancel() {
	t.armed = false
	t.duration = 0
	t.deadline = time.Time{}
}

// Poll returns true exactly once, on the first call at or after the deadline.
func (t *Timer) Poll() bool {
	if !t.armed {
		return false
	}
	if t.clock.Now().Before(t.deadline) {
		return false
	}

	t.armed = false
	return true
}

// Armed reports whether a countdown is pending.
func (t *Timer) Armed() bool {
	return t.armed
}

// Duration is the length of the last armed countdown.
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Remaining returns the time left before expiry, or zero when disarmed.
func (t *Timer) Remaining() time.Duration {
	if !t.armed {
		return 0
	}

	left := t.deadline.Sub(t.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}
