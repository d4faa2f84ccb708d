package core

import (
	"testing"
	"time"
)

func TestProgress_Elapsed(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name     string
		progress Progress
		want     time.Duration
	}{
		{
			name:     "partway through",
			progress: Progress{StartTime: now.Add(-100 * time.Second), Duration: 225 * time.Second},
			want:     100 * time.Second,
		},
		{
			name:     "capped at duration",
			progress: Progress{StartTime: now.Add(-300 * time.Second), Duration: 225 * time.Second},
			want:     225 * time.Second,
		},
		{
			name:     "never negative",
			progress: Progress{StartTime: now.Add(10 * time.Second), Duration: 225 * time.Second},
			want:     0,
		},
		{
			name: "pause freezes the clock",
			progress: Progress{
				StartTime: now.Add(-100 * time.Second),
				PausedAt:  now.Add(-40 * time.Second),
				Duration:  225 * time.Second,
			},
			want: 60 * time.Second,
		},
		{
			name: "accumulated pause subtracted",
			progress: Progress{
				StartTime:        now.Add(-100 * time.Second),
				AccumulatedPause: 30 * time.Second,
				Duration:         225 * time.Second,
			},
			want: 70 * time.Second,
		},
		{
			name:     "unknown duration never caps",
			progress: Progress{StartTime: now.Add(-300 * time.Second)},
			want:     300 * time.Second,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.progress.Elapsed(now); got != tt.want {
				t.Errorf("Elapsed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgress_Percent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	p := Progress{StartTime: now.Add(-100 * time.Second), Duration: 225 * time.Second}
	got := p.Percent(now)
	if got < 44.3 || got > 44.5 {
		t.Errorf("Percent() = %f, want ~44.4", got)
	}

	capped := Progress{StartTime: now.Add(-300 * time.Second), Duration: 225 * time.Second}
	if got := capped.Percent(now); got != 100 {
		t.Errorf("Percent() past end = %f, want 100", got)
	}

	unknown := Progress{StartTime: now.Add(-100 * time.Second)}
	if got := unknown.Percent(now); got != 0 {
		t.Errorf("Percent() with zero duration = %f, want 0", got)
	}
}

// Pausing for any interval then resuming must yield the same elapsed
// trajectory as an unpaused run shifted by the pause length.
func TestProgress_PauseResumeContinuity(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	p := StartProgress(start, 225*time.Second)

	// Play 50s, pause.
	pauseAt := start.Add(50 * time.Second)
	p.Pause(pauseAt)
	if got := p.Elapsed(pauseAt.Add(17 * time.Second)); got != 50*time.Second {
		t.Fatalf("elapsed while paused = %v, want 50s", got)
	}

	// Resume after 17s of pause.
	resumeAt := pauseAt.Add(17 * time.Second)
	p.Resume(resumeAt)

	unpaused := StartProgress(start, 225*time.Second)
	for _, after := range []time.Duration{0, 1 * time.Second, 30 * time.Second, 100 * time.Second} {
		now := resumeAt.Add(after)
		got := p.Elapsed(now)
		want := unpaused.Elapsed(now.Add(-17 * time.Second))
		if got != want {
			t.Errorf("elapsed %v after resume = %v, want %v (shifted unpaused run)", after, got, want)
		}
	}
}

func TestProgress_PauseResumeIdempotent(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	p := StartProgress(start, 225*time.Second)

	p.Resume(start.Add(time.Second)) // resume while not paused
	if p.AccumulatedPause != 0 {
		t.Errorf("Resume() while playing changed AccumulatedPause = %v", p.AccumulatedPause)
	}

	pauseAt := start.Add(10 * time.Second)
	p.Pause(pauseAt)
	p.Pause(pauseAt.Add(5 * time.Second)) // second pause keeps the first instant
	if !p.PausedAt.Equal(pauseAt) {
		t.Errorf("PausedAt = %v, want %v", p.PausedAt, pauseAt)
	}
}
