package core

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned by Enqueue when the guild's queue is at
	// capacity and no admitted track fits.
	ErrQueueFull = errors.New("queue full")

	// ErrNothingPlaying is returned by Skip when no track is playing.
	ErrNothingPlaying = errors.New("nothing playing")

	// ErrInvalidState is returned when an operation does not apply to
	// the session's current state (pause while not playing, resume
	// while not paused). The state is left untouched.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrSessionClosed is returned by any operation on a session that
	// has entered Disconnecting.
	ErrSessionClosed = errors.New("session closed")
)

// ResolutionError reports a locator that could not be turned into tracks:
// unsupported shape, catalog item not found, or no playable match. It is
// surfaced immediately and never retried.
type ResolutionError struct {
	Locator string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Locator, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// DownloadError is the terminal failure of a download job after all
// attempts are exhausted. It is recorded on the track; the session only
// sees the permanent skip.
type DownloadError struct {
	TrackID  string
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempts: %v", e.TrackID, e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// VoiceConnectionError reports that the voice channel could not be joined
// or was lost. Fatal to the session: it forces Disconnecting.
type VoiceConnectionError struct {
	GuildID string
	Err     error
}

func (e *VoiceConnectionError) Error() string {
	return fmt.Sprintf("voice connection for guild %s: %v", e.GuildID, e.Err)
}

func (e *VoiceConnectionError) Unwrap() error { return e.Err }
