package capture

import (
	"log/slog"
	"sync"

	"github.com/TheRealNeelaksh/Shrudaya/pkg/audio"
	"github.com/TheRealNeelaksh/Shrudaya/pkg/call/turn"
)

// PipelineConfig wires a source to the transport through the turn gate.
type PipelineConfig struct {
	Source Source
	// Policy and State feed the per-frame capture decision. State is
	// consulted fresh for every frame, so a mute or an agent turn takes
	// effect on the very next frame.
	Policy turn.Policy
	State  func() turn.State
	// Encoder converts admitted PCM frames to the wire format.
	Encoder audio.Encoder
	// Send ships one encoded frame. Called from the device callback thread.
	Send func(frame []byte)
	// OnLevel, if set, receives the normalized loudness of each admitted
	// frame for UI metering.
	OnLevel func(level float64)
	Logger  *slog.Logger
}

// Pipeline drives frames from a Source through gate, encode and send.
type Pipeline struct {
	cfg PipelineConfig

	mu      sync.Mutex
	started bool
}

// NewPipeline creates an unstarted pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{cfg: cfg}
}

// Start begins capture. The returned error is the device error, if any.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.cfg.Source.Start(p.handleFrame); err != nil {
		return err
	}
	p.started = true
	return nil
}

// Stop halts capture. Safe to call repeatedly, and safe when Start was
// never called or failed.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	p.cfg.Source.Stop()
}

func (p *Pipeline) handleFrame(pcm []byte) {
	// Gated frames vanish; capture never buffers speech for later.
	if !p.cfg.Policy.MayCapture(p.cfg.State()) {
		return
	}

	frame, err := p.cfg.Encoder.Encode(pcm)
	if err != nil {
		p.cfg.Logger.Warn("dropping unencodable frame", "err", err)
		return
	}
	p.cfg.Send(frame)

	if p.cfg.OnLevel != nil {
		p.cfg.OnLevel(audio.MeanAbs(pcm))
	}
}
