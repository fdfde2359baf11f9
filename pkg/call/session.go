package call

import (
	"fmt"
	"time"
)

// State is the call lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateEnded      State = "ended"
)

// Phase is the UI-facing status of an active call, derived from the mute and
// agent-speaking flags plus the transient "processing" marker set between a
// user transcript and the agent's reply. Mute takes precedence over every
// other phase.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseListening  Phase = "listening"
	PhaseProcessing Phase = "processing"
	PhaseSpeaking   Phase = "speaking"
	PhaseMuted      Phase = "muted"
)

// Session is the state of one call attempt. It is owned exclusively by the
// Controller and mutated only through state-machine transitions; on call end
// it is reset to its idle defaults.
type Session struct {
	ID             string
	Contact        string
	State          State
	StartedAt      time.Time
	ElapsedSeconds int

	Muted         bool
	AgentSpeaking bool
	CooldownUntil time.Time
}

func phaseFor(muted, agentSpeaking, processing bool) Phase {
	switch {
	case muted:
		return PhaseMuted
	case agentSpeaking:
		return PhaseSpeaking
	case processing:
		return PhaseProcessing
	default:
		return PhaseListening
	}
}

// FormatElapsed renders a second count as MM:SS for display.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
