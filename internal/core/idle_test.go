package core

import (
	"testing"
	"time"
)

func TestIdleMonitor_SustainedAbsence(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := NewIdleMonitor(30 * time.Second)

	// Sample every second: 29 seconds of absence must not fire.
	for i := 0; i <= 29; i++ {
		now := start.Add(time.Duration(i) * time.Second)
		if m.Observe(0, now) {
			t.Fatalf("Observe fired after %ds of absence, want no fire before 30s", i)
		}
	}

	// At 31 seconds of continuous absence it must fire.
	if !m.Observe(0, start.Add(31*time.Second)) {
		t.Error("Observe did not fire after 31s of continuous absence")
	}
}

func TestIdleMonitor_PresenceResetsWindow(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := NewIdleMonitor(30 * time.Second)

	m.Observe(0, start)
	m.Observe(0, start.Add(25*time.Second))
	// Someone shows up at 26s.
	if m.Observe(2, start.Add(26*time.Second)) {
		t.Error("Observe fired while listeners present")
	}
	// Absence restarts: 29s later is still inside the new window.
	if m.Observe(0, start.Add(27*time.Second)) {
		t.Error("Observe fired on first empty snapshot after presence")
	}
	if m.Observe(0, start.Add(56*time.Second)) {
		t.Error("Observe fired 29s into the restarted window")
	}
	if !m.Observe(0, start.Add(58*time.Second)) {
		t.Error("Observe did not fire 31s into the restarted window")
	}
}

func TestIdleMonitor_SingleSnapshotNeverFires(t *testing.T) {
	m := NewIdleMonitor(30 * time.Second)
	if m.Observe(0, time.Unix(1_700_000_000, 0)) {
		t.Error("Observe fired from a single empty snapshot")
	}
}

func TestIdleMonitor_Reset(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := NewIdleMonitor(30 * time.Second)

	m.Observe(0, start)
	m.Reset()
	if m.Observe(0, start.Add(31*time.Second)) {
		t.Error("Observe fired right after Reset, absence window should restart")
	}
}
