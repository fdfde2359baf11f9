// Package turn decides which side of a call may transmit audio at a given
// instant. The decision is a pure function over the current call state so it
// can be re-evaluated cheaply on every captured frame; mute and the
// agent-speaking flag can both change between frames, so the result is never
// cached.
package turn

// State is a snapshot of the flags that gate microphone capture.
type State struct {
	// Muted is the user's explicit mute toggle. Mute takes precedence over
	// every other flag.
	Muted bool

	// AgentSpeaking is true from tts_start until the post-tts_end cooldown
	// clears it. While set, captured frames are discarded so the agent's own
	// speech is never re-admitted as user input.
	AgentSpeaking bool

	// QueuedAudio is the number of agent audio chunks still waiting in the
	// playback buffer. Only consulted when Policy.GateOnQueuedAudio is set.
	QueuedAudio int
}

// Policy configures optional capture-suppression behavior.
type Policy struct {
	// GateOnQueuedAudio additionally suppresses capture while undelivered
	// agent audio sits in the playback queue. This closes the race where the
	// tail of agent speech is still queued but tts_end has not arrived yet.
	GateOnQueuedAudio bool
}

// MayCapture reports whether a microphone frame captured now may be admitted
// into the outbound pipeline.
func (p Policy) MayCapture(s State) bool {
	if s.Muted || s.AgentSpeaking {
		return false
	}
	if p.GateOnQueuedAudio && s.QueuedAudio > 0 {
		return false
	}
	return true
}
