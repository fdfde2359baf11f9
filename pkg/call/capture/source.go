// Package capture runs the outbound audio path: frames from an input
// device flow through a per-frame turn gate, get encoded, and are handed
// to the transport. Capture is lossy on purpose; gated frames are dropped,
// never queued.
package capture

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// A Source delivers raw 16-bit little-endian mono PCM frames from an input
// device. Start begins delivery to onFrame; Stop ends it and releases the
// device. onFrame owns the slice it receives.
type Source interface {
	Start(onFrame func(pcm []byte)) error
	Stop()
}

// MicConfig configures a microphone source.
type MicConfig struct {
	// SampleRate in Hz. The conversational path runs 16 kHz mono.
	SampleRate int
	Logger     *slog.Logger
}

// MicSource captures from the default system microphone in 20 ms periods.
type MicSource struct {
	cfg MicConfig

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	started bool
}

// NewMicSource creates an unstarted microphone source.
func NewMicSource(cfg MicConfig) *MicSource {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &MicSource{cfg: cfg}
}

// Start opens the default capture device and begins frame delivery. Any
// failure here means the device is unavailable to the caller.
func (m *MicSource) Start(onFrame func(pcm []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("microphone already started")
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime
	ctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			// malgo reuses the sample buffer between callbacks.
			frame := make([]byte, len(pInputSamples))
			copy(frame, pInputSamples)
			onFrame(frame)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("init microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("start microphone: %w", err)
	}

	m.ctx = ctx
	m.device = device
	m.started = true
	m.cfg.Logger.Debug("microphone started", "sample_rate", m.cfg.SampleRate)
	return nil
}

// Stop halts capture and releases the device. Safe to call more than once,
// and safe if Start never succeeded.
func (m *MicSource) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.started = false
	m.device.Stop()
	m.device.Uninit()
	m.ctx.Uninit()
	m.ctx.Free()
	m.device = nil
	m.ctx = nil
	m.cfg.Logger.Debug("microphone stopped")
}
