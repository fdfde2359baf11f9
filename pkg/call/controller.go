// Package call implements the client-side engine for real-time voice calls
// with a conversational agent: lifecycle state machine, turn-taking, and the
// glue between capture, playback and the duplex transport.
package call

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheRealNeelaksh/Shrudaya/pkg/call/protocol"
	"github.com/TheRealNeelaksh/Shrudaya/pkg/call/turn"
)

// defaultCooldown is how long the agent-speaking flag lingers after the
// peer signals end of speech. Locally buffered audio keeps playing a moment
// after that signal; releasing the microphone immediately would let the
// agent's own tail end get captured as user speech.
const defaultCooldown = 2 * time.Second

// Transport is one open duplex connection to the call server.
type Transport interface {
	Control() <-chan protocol.ControlMessage
	Audio() <-chan []byte
	Done() <-chan struct{}
	Err() error
	SendAudio(encoded []byte)
	SendText(text string)
	Close() error
}

// DialFunc establishes a Transport for a call to the named contact.
type DialFunc func(ctx context.Context, contact string) (Transport, error)

// Capture is a started-on-demand outbound audio pipeline.
type Capture interface {
	Start() error
	Stop()
}

// CaptureFactory builds the capture pipeline for one call. state is consulted
// per frame, send ships one encoded frame, and onLevel receives the advisory
// loudness of each admitted frame.
type CaptureFactory func(state func() turn.State, send func(frame []byte), onLevel func(level float64)) Capture

// Playback is the ordered agent-audio queue for one call.
type Playback interface {
	Enqueue(chunk []byte)
	Len() int
	Reset()
}

// PlaybackFactory builds the playback path for one call.
type PlaybackFactory func() (Playback, error)

// Config wires a Controller.
type Config struct {
	Dial        DialFunc
	NewCapture  CaptureFactory
	NewPlayback PlaybackFactory

	// Cooldown overrides the post-speech microphone hold. Zero or negative
	// means the default of 2s.
	Cooldown time.Duration

	// EventBuffer sizes the event channel. Zero means 64.
	EventBuffer int

	Logger *slog.Logger
}

// Controller owns the call state machine. All transitions are serialized on
// an internal mutex; the capture path reads shared flags through a snapshot
// function and never takes that mutex.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	events chan Event

	mu         sync.Mutex
	session    Session
	transport  Transport
	capture    Capture
	playback   Playback
	processing bool
	lastPhase  Phase
	agentText  strings.Builder
	cooldown   *time.Timer

	flags turn.Flags
}

// New creates an idle Controller.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	return &Controller{
		cfg:    cfg,
		logger: cfg.Logger,
		events: make(chan Event, cfg.EventBuffer),
		session: Session{
			State: StateIdle,
		},
	}
}

// Events yields controller notifications. Delivery is best effort: when the
// consumer falls behind, events are dropped rather than blocking the engine.
func (c *Controller) Events() <-chan Event { return c.events }

// Session returns a snapshot of the current call state.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	s.Muted = c.flags.Muted()
	s.AgentSpeaking = c.flags.AgentSpeaking()
	return s
}

// Start begins a call to contact. It fails fast when a call is already
// connecting or active; a device or connection failure transitions straight
// to Ended with the matching reason and is also returned.
func (c *Controller) Start(ctx context.Context, contact string) error {
	c.mu.Lock()
	if c.session.State == StateConnecting || c.session.State == StateActive {
		c.mu.Unlock()
		return fmt.Errorf("call already in progress with %s", c.session.Contact)
	}
	id := uuid.NewString()
	c.session = Session{ID: id, Contact: contact, State: StateConnecting}
	c.processing = false
	c.agentText.Reset()
	c.flags.Reset()
	c.emit(StateChangedEvent{State: StateConnecting, Contact: contact})
	c.mu.Unlock()

	ts, err := c.cfg.Dial(ctx, contact)
	if err != nil {
		return c.failStart(id, NewConnectionFailedError(err))
	}

	c.mu.Lock()
	if c.session.ID != id || c.session.State != StateConnecting {
		// Ended while dialing; surrender the fresh connection.
		c.mu.Unlock()
		_ = ts.Close()
		return nil
	}
	c.mu.Unlock()

	pb, err := c.cfg.NewPlayback()
	if err != nil {
		_ = ts.Close()
		return c.failStart(id, NewDeviceUnavailableError(err))
	}

	state := func() turn.State {
		return turn.State{
			Muted:         c.flags.Muted(),
			AgentSpeaking: c.flags.AgentSpeaking(),
			QueuedAudio:   pb.Len(),
		}
	}
	pipe := c.cfg.NewCapture(state, ts.SendAudio, func(level float64) {
		c.emit(LoudnessEvent{Level: level})
	})
	if err := pipe.Start(); err != nil {
		pb.Reset()
		_ = ts.Close()
		return c.failStart(id, NewDeviceUnavailableError(err))
	}

	c.mu.Lock()
	if c.session.ID != id || c.session.State != StateConnecting {
		c.mu.Unlock()
		pipe.Stop()
		pb.Reset()
		_ = ts.Close()
		return nil
	}
	c.transport = ts
	c.capture = pipe
	c.playback = pb
	c.session.State = StateActive
	c.session.StartedAt = time.Now()
	c.emit(StateChangedEvent{State: StateActive, Contact: contact})
	c.emitPhaseLocked()
	c.mu.Unlock()

	go c.run(id, ts, pb)
	c.logger.Info("call active", "session_id", id, "contact", contact)
	return nil
}

// EndCall hangs up the current call. Idempotent: ending an already-ended or
// idle controller is a no-op.
func (c *Controller) EndCall() {
	c.mu.Lock()
	id := c.session.ID
	c.mu.Unlock()
	c.endCall(id, nil)
}

// ToggleMute flips the microphone gate. Mute takes effect on the next
// capture frame; it never tears anything down.
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.State != StateActive {
		return
	}
	muted := c.flags.ToggleMuted()
	c.session.Muted = muted
	c.emit(MuteChangedEvent{Muted: muted})
	c.emitPhaseLocked()
	c.logger.Debug("mute toggled", "muted", muted)
}

// SendText sends a typed chat message over the active call. A no-op when no
// call is active.
func (c *Controller) SendText(text string) {
	c.mu.Lock()
	ts := c.transport
	active := c.session.State == StateActive
	c.mu.Unlock()
	if !active || ts == nil {
		c.logger.Debug("drop text message, no active call")
		return
	}
	ts.SendText(text)
}

// run is the per-call event loop: transport traffic plus the elapsed ticker.
func (c *Controller) run(id string, ts Transport, pb Playback) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	control := ts.Control()
	audio := ts.Audio()
	for {
		select {
		case msg, ok := <-control:
			if !ok {
				control = nil
				continue
			}
			c.handleControl(id, msg)
		case chunk, ok := <-audio:
			if !ok {
				audio = nil
				continue
			}
			pb.Enqueue(chunk)
		case <-ticker.C:
			c.tick(id)
		case <-ts.Done():
			c.endCall(id, classifyTransportErr(ts.Err()))
			return
		}
	}
}

func (c *Controller) handleControl(id string, msg protocol.ControlMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.ID != id || c.session.State != StateActive {
		return
	}

	switch m := msg.(type) {
	case protocol.UserTranscript:
		// The user's utterance is final; the agent is now thinking.
		c.processing = true
		c.agentText.Reset()
		c.emit(UserTranscriptEvent{Text: m.Text})
		c.emitPhaseLocked()
	case protocol.AiTextChunk:
		c.agentText.WriteString(m.Text)
		c.emit(AgentUtteranceEvent{Text: c.agentText.String()})
	case protocol.TtsStart:
		c.cancelCooldownLocked()
		c.processing = false
		c.flags.SetAgentSpeaking(true)
		c.session.AgentSpeaking = true
		c.session.CooldownUntil = time.Time{}
		c.emitPhaseLocked()
	case protocol.TtsEnd:
		c.scheduleCooldownLocked(id)
	default:
		c.logger.Warn("unhandled control message", "type", fmt.Sprintf("%T", msg))
	}
}

// scheduleCooldownLocked arms the post-speech microphone hold. A TtsStart
// arriving before it fires cancels it, so back-to-back agent utterances keep
// the microphone gated throughout.
func (c *Controller) scheduleCooldownLocked(id string) {
	c.cancelCooldownLocked()
	c.session.CooldownUntil = time.Now().Add(c.cfg.Cooldown)
	c.cooldown = time.AfterFunc(c.cfg.Cooldown, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.session.ID != id || c.session.State != StateActive {
			return
		}
		c.flags.SetAgentSpeaking(false)
		c.session.AgentSpeaking = false
		c.session.CooldownUntil = time.Time{}
		c.emitPhaseLocked()
	})
}

func (c *Controller) cancelCooldownLocked() {
	if c.cooldown != nil {
		c.cooldown.Stop()
		c.cooldown = nil
	}
}

func (c *Controller) tick(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.ID != id || c.session.State != StateActive {
		return
	}
	c.session.ElapsedSeconds++
	c.emit(TickEvent{ElapsedSeconds: c.session.ElapsedSeconds})
}

// endCall is the single teardown path. Order matters: capture first so no
// frame is sent over a closing connection, then transport, then playback.
func (c *Controller) endCall(id string, cause *Error) {
	c.mu.Lock()
	if id == "" || c.session.ID != id ||
		(c.session.State != StateConnecting && c.session.State != StateActive) {
		c.mu.Unlock()
		return
	}
	pipe := c.capture
	ts := c.transport
	pb := c.playback
	contact := c.session.Contact
	c.capture = nil
	c.transport = nil
	c.playback = nil
	c.cancelCooldownLocked()
	c.session.State = StateEnded
	c.mu.Unlock()

	if pipe != nil {
		pipe.Stop()
	}
	if ts != nil {
		_ = ts.Close()
	}
	if pb != nil {
		pb.Reset()
	}

	c.mu.Lock()
	c.processing = false
	c.agentText.Reset()
	c.flags.Reset()
	c.lastPhase = PhaseIdle
	c.session = Session{State: StateEnded}
	c.emit(StateChangedEvent{State: StateEnded, Contact: contact, EndError: cause})
	c.mu.Unlock()

	if cause != nil {
		c.logger.Info("call ended", "session_id", id, "contact", contact, "reason", cause.Reason)
	} else {
		c.logger.Info("call ended", "session_id", id, "contact", contact, "reason", ReasonHangup)
	}
}

// failStart transitions a connecting call straight to Ended and returns the
// cause for the synchronous caller.
func (c *Controller) failStart(id string, cause *Error) error {
	c.mu.Lock()
	if c.session.ID != id || c.session.State != StateConnecting {
		c.mu.Unlock()
		return cause
	}
	contact := c.session.Contact
	c.cancelCooldownLocked()
	c.session = Session{State: StateEnded}
	c.flags.Reset()
	c.processing = false
	c.emit(StateChangedEvent{State: StateEnded, Contact: contact, EndError: cause})
	c.mu.Unlock()
	c.logger.Warn("call failed", "session_id", id, "contact", contact, "reason", cause.Reason, "err", cause.Err)
	return cause
}

// emit delivers one event without ever blocking the engine.
func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Debug("event dropped, consumer behind", "event", ev.callEventType())
	}
}

func (c *Controller) emitPhaseLocked() {
	var phase Phase
	if c.session.State != StateActive {
		phase = PhaseIdle
	} else {
		phase = phaseFor(c.flags.Muted(), c.flags.AgentSpeaking(), c.processing)
	}
	if phase == c.lastPhase {
		return
	}
	c.lastPhase = phase
	c.emit(PhaseChangedEvent{Phase: phase})
}
