package call

// Event is a notification from the Controller to the presentation layer.
// Events are emitted on a buffered channel with best-effort delivery; a
// consumer that stops draining never blocks the engine.
type Event interface {
	callEventType() string
}

// StateChangedEvent reports a lifecycle transition. EndError is non-nil only
// when State is StateEnded.
type StateChangedEvent struct {
	State    State
	Contact  string
	EndError *Error
}

func (StateChangedEvent) callEventType() string { return "state_changed" }

// PhaseChangedEvent reports the UI status phase of an active call.
type PhaseChangedEvent struct {
	Phase Phase
}

func (PhaseChangedEvent) callEventType() string { return "phase_changed" }

// MuteChangedEvent reports a mute toggle.
type MuteChangedEvent struct {
	Muted bool
}

func (MuteChangedEvent) callEventType() string { return "mute_changed" }

// TickEvent reports the once-per-second elapsed counter of an active call.
type TickEvent struct {
	ElapsedSeconds int
}

func (TickEvent) callEventType() string { return "tick" }

// UserTranscriptEvent reports the final transcript of a user utterance.
type UserTranscriptEvent struct {
	Text string
}

func (UserTranscriptEvent) callEventType() string { return "user_transcript" }

// AgentUtteranceEvent reports the agent's reply text accumulated so far for
// the current utterance. Emitted after every appended chunk.
type AgentUtteranceEvent struct {
	Text string
}

func (AgentUtteranceEvent) callEventType() string { return "agent_utterance" }

// LoudnessEvent carries the advisory per-frame capture loudness scalar in
// [0, 1]. Purely for visual pulsing; it has no effect on control flow.
type LoudnessEvent struct {
	Level float64
}

func (LoudnessEvent) callEventType() string { return "loudness" }
