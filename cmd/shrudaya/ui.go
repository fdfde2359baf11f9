package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/TheRealNeelaksh/Shrudaya/pkg/call"
)

// ui renders controller events as terminal lines. A transient status line
// (timer, phase, input level) is redrawn in place with \r; everything else
// scrolls normally.
type ui struct {
	w io.Writer

	mu        sync.Mutex
	contact   string
	phase     call.Phase
	level     float64
	agentLine string
}

func newUI(w io.Writer) *ui {
	return &ui{w: w, phase: call.PhaseIdle}
}

func (u *ui) renderEvents(events <-chan call.Event) {
	for ev := range events {
		switch e := ev.(type) {
		case call.StateChangedEvent:
			u.onState(e)
		case call.PhaseChangedEvent:
			u.onPhase(e.Phase)
		case call.MuteChangedEvent:
			if e.Muted {
				u.printf("microphone muted")
			} else {
				u.printf("microphone live")
			}
		case call.TickEvent:
			u.onTick(e.ElapsedSeconds)
		case call.UserTranscriptEvent:
			u.printf("you ▸ %s", e.Text)
		case call.AgentUtteranceEvent:
			u.onAgentText(e.Text)
		case call.LoudnessEvent:
			u.mu.Lock()
			u.level = e.Level
			u.mu.Unlock()
		}
	}
}

func (u *ui) onState(e call.StateChangedEvent) {
	switch e.State {
	case call.StateConnecting:
		u.mu.Lock()
		u.contact = e.Contact
		u.mu.Unlock()
		u.printf("calling %s…", e.Contact)
	case call.StateActive:
		u.printf("connected to %s", e.Contact)
	case call.StateEnded:
		u.mu.Lock()
		u.contact = ""
		u.phase = call.PhaseIdle
		u.level = 0
		u.agentLine = ""
		u.mu.Unlock()
		if e.EndError == nil {
			u.printf("call ended")
			return
		}
		switch e.EndError.Reason {
		case call.ReasonAuthenticationRejected:
			u.printf("call ended: authentication rejected, check your token")
		case call.ReasonDeviceUnavailable:
			u.printf("call ended: %s", e.EndError.Message)
		default:
			u.printf("call ended: %s", e.EndError.Message)
		}
	}
}

func (u *ui) onPhase(p call.Phase) {
	u.mu.Lock()
	prev := u.phase
	u.phase = p
	u.mu.Unlock()
	// Leaving the speaking phase terminates the agent's streamed line.
	if prev == call.PhaseSpeaking && p != call.PhaseSpeaking {
		u.finishAgentLine()
	}
}

// onAgentText prints only the newly streamed suffix so the agent's reply
// grows on one line as chunks arrive.
func (u *ui) onAgentText(full string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !strings.HasPrefix(full, u.agentLine) {
		// New utterance.
		u.agentLine = ""
	}
	if u.agentLine == "" {
		name := u.contact
		if name == "" {
			name = "agent"
		}
		fmt.Fprintf(u.w, "\r\033[K%s ▸ ", name)
	}
	fmt.Fprint(u.w, full[len(u.agentLine):])
	u.agentLine = full
}

func (u *ui) finishAgentLine() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.agentLine != "" {
		fmt.Fprintln(u.w)
		u.agentLine = ""
	}
}

func (u *ui) onTick(elapsed int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.agentLine != "" {
		// Never overwrite a reply mid-stream.
		return
	}
	fmt.Fprintf(u.w, "\r\033[K[%s] %s %s", call.FormatElapsed(elapsed), u.phase, meter(u.level))
}

// printf writes one full line, clearing any transient status first.
func (u *ui) printf(format string, args ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.w, "\r\033[K"+format+"\n", args...)
}

// meter renders the capture loudness as a small bar.
func meter(level float64) string {
	const width = 8
	n := int(level * width * 4) // mean-abs speech levels sit well below full scale
	if n > width {
		n = width
	}
	return strings.Repeat("▌", n) + strings.Repeat(" ", width-n)
}
