package core

import "time"

// ProgressView is a stateless readout of playback progress: computed
// fresh on every call, never stored, never a source of truth.
type ProgressView struct {
	ElapsedSeconds  int     `json:"elapsed_seconds"`
	DurationSeconds int     `json:"duration_seconds"`
	Percent         float64 `json:"percent"`
}

// NowPlayingView describes the current track for reporting consumers.
// StartTimeUnix and DurationSeconds are passed through verbatim so a
// consumer can recompute elapsed time on its own clock.
type NowPlayingView struct {
	Track            TrackSummary
	StartTimeUnix    int64
	DurationSeconds  int
	ElapsedSeconds   int
	Percent          float64
	AccumulatedPause time.Duration
	Paused           bool
}

// SessionView is a point-in-time, read-only snapshot of one session.
type SessionView struct {
	GuildID       string
	GuildName     string
	State         SessionState
	QueueLength   int
	Queue         []TrackSummary
	ListenerCount int
	NowPlaying    *NowPlayingView
}

// Progress returns the current playback progress readout, ok=false when
// nothing is playing. Safe to call concurrently with any operation.
func (s *Session) Progress(now time.Time) (ProgressView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ProgressView{}, false
	}
	return ProgressView{
		ElapsedSeconds:  int(s.progress.Elapsed(now) / time.Second),
		DurationSeconds: int(s.progress.Duration / time.Second),
		Percent:         s.progress.Percent(now),
	}, true
}

// Snapshot captures the session for the reporting layer.
func (s *Session) Snapshot(now time.Time) SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := SessionView{
		GuildID:     s.guildID,
		GuildName:   s.guildName,
		State:       s.state,
		QueueLength: len(s.queue),
		Queue:       make([]TrackSummary, len(s.queue)),
	}
	for i, t := range s.queue {
		view.Queue[i] = t.Summary()
	}
	if s.conn != nil {
		view.ListenerCount = s.conn.ListenerCount()
	}
	if s.current != nil {
		view.NowPlaying = &NowPlayingView{
			Track:            s.current.Summary(),
			StartTimeUnix:    s.progress.StartTime.Unix(),
			DurationSeconds:  int(s.progress.Duration / time.Second),
			ElapsedSeconds:   int(s.progress.Elapsed(now) / time.Second),
			Percent:          s.progress.Percent(now),
			AccumulatedPause: s.progress.AccumulatedPause,
			Paused:           s.progress.Paused(),
		}
	}
	return view
}
