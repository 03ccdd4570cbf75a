package eventloop

import "time"

// ServiceTimer is a one-shot timer the event loop checks between waits.
// A supervisor has at most one active timer per purpose (the stop timer
// that escalates to SIGKILL, for instance).
type ServiceTimer struct {
	timer    *time.Timer
	deadline time.Time
	armed    bool
}

// NewServiceTimer creates a new (disarmed) timer.
func NewServiceTimer() *ServiceTimer {
	return &ServiceTimer{}
}

// Arm starts the timer with the given duration.
// If already armed, it is stopped and re-armed.
func (t *ServiceTimer) Arm(d time.Duration) {
	t.Stop()
	t.timer = time.NewTimer(d)
	t.deadline = time.Now().Add(d)
	t.armed = true
}

// Stop disarms the timer.
func (t *ServiceTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.armed = false
}

// IsArmed returns true if the timer is currently armed.
func (t *ServiceTimer) IsArmed() bool {
	return t.armed
}

// Remaining returns the time left before the timer fires, zero if it is
// due, and -1 if it is not armed.
func (t *ServiceTimer) Remaining() time.Duration {
	if !t.armed {
		return -1
	}
	return max(time.Until(t.deadline), 0)
}

// Expired reports whether the timer has fired, disarming it if so.
func (t *ServiceTimer) Expired() bool {
	if !t.armed {
		return false
	}
	select {
	case <-t.timer.C:
		t.timer = nil
		t.armed = false
		return true
	default:
		return false
	}
}
