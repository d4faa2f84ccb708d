package core

import "time"

// Progress is pure playback-time bookkeeping. Elapsed time is never
// stored or ticked anywhere; it is recomputed from these fields on every
// read and capped at the track duration.
type Progress struct {
	StartTime        time.Time
	PausedAt         time.Time // zero when not paused
	AccumulatedPause time.Duration
	Duration         time.Duration
}

// StartProgress begins tracking at now for a track of the given duration.
func StartProgress(now time.Time, duration time.Duration) Progress {
	return Progress{StartTime: now, Duration: duration}
}

// Pause freezes elapsed time at now. No-op when already paused.
func (p *Progress) Pause(now time.Time) {
	if p.PausedAt.IsZero() {
		p.PausedAt = now
	}
}

// Resume accounts the pause interval so the elapsed trajectory continues
// exactly where Pause froze it. No-op when not paused.
func (p *Progress) Resume(now time.Time) {
	if p.PausedAt.IsZero() {
		return
	}
	p.AccumulatedPause += now.Sub(p.PausedAt)
	p.PausedAt = time.Time{}
}

// Paused reports whether the clock is currently frozen.
func (p Progress) Paused() bool { return !p.PausedAt.IsZero() }

// Elapsed computes play time as of now: wall time since start minus time
// spent paused, clamped to [0, Duration]. While paused it is frozen at
// the instant of pausing.
func (p Progress) Elapsed(now time.Time) time.Duration {
	end := now
	if !p.PausedAt.IsZero() {
		end = p.PausedAt
	}
	elapsed := end.Sub(p.StartTime) - p.AccumulatedPause
	if elapsed < 0 {
		elapsed = 0
	}
	if p.Duration > 0 && elapsed > p.Duration {
		elapsed = p.Duration
	}
	return elapsed
}

// Percent is elapsed over duration in [0, 100]. Zero for unknown-length
// tracks.
func (p Progress) Percent(now time.Time) float64 {
	if p.Duration <= 0 {
		return 0
	}
	return float64(p.Elapsed(now)) / float64(p.Duration) * 100
}

// Remaining is the play time left, zero for unknown-length tracks.
func (p Progress) Remaining(now time.Time) time.Duration {
	if p.Duration <= 0 {
		return 0
	}
	return p.Duration - p.Elapsed(now)
}
