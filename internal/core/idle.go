package core

import "time"

// IdleMonitor decides when a session has been abandoned. It fires only on
// sustained absence: every observation with listeners present resets the
// window, and a single empty snapshot never disconnects anyone.
type IdleMonitor struct {
	timeout     time.Duration
	absentSince time.Time
}

func NewIdleMonitor(timeout time.Duration) *IdleMonitor {
	return &IdleMonitor{timeout: timeout}
}

// Observe records one occupancy sample and reports whether the absence
// window has been exceeded.
func (m *IdleMonitor) Observe(listeners int, now time.Time) bool {
	if listeners > 0 {
		m.absentSince = time.Time{}
		return false
	}
	if m.absentSince.IsZero() {
		m.absentSince = now
		return false
	}
	return now.Sub(m.absentSince) >= m.timeout
}

// Reset clears the absence window, e.g. after a reconnect.
func (m *IdleMonitor) Reset() {
	m.absentSince = time.Time{}
}
