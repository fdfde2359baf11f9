package turn

import "sync/atomic"

// Flags holds the live mute and agent-speaking bits. The capture path reads
// them on every frame from the audio device callback, so access is atomic
// rather than mutex-guarded; the zero value is ready to use.
type Flags struct {
	muted         atomic.Bool
	agentSpeaking atomic.Bool
}

func (f *Flags) Muted() bool { return f.muted.Load() }

func (f *Flags) AgentSpeaking() bool { return f.agentSpeaking.Load() }

// ToggleMuted flips the mute bit and returns the new value.
func (f *Flags) ToggleMuted() bool {
	for {
		old := f.muted.Load()
		if f.muted.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (f *Flags) SetAgentSpeaking(v bool) { f.agentSpeaking.Store(v) }

// Reset clears both bits for a fresh call.
func (f *Flags) Reset() {
	f.muted.Store(false)
	f.agentSpeaking.Store(false)
}
