package core

// SessionState is the per-guild playback state machine. Valid transitions:
//
//	Idle → Connecting → Playing ↔ Paused
//	Playing → Idle (queue drained)
//	Paused → Idle (current track skipped or finished while paused)
//	any → Disconnecting (terminal)
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StatePlaying
	StatePaused
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "idle"
	}
}

// canTransition encodes the state machine. Disconnecting is reachable
// from everywhere and absorbing.
func canTransition(from, to SessionState) bool {
	if to == StateDisconnecting {
		return from != StateDisconnecting
	}
	switch from {
	case StateIdle:
		return to == StateConnecting
	case StateConnecting:
		return to == StatePlaying || to == StateIdle
	case StatePlaying:
		return to == StatePaused || to == StatePlaying || to == StateIdle
	case StatePaused:
		return to == StatePlaying || to == StateIdle
	default:
		return false
	}
}
