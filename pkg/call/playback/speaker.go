package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/TheRealNeelaksh/Shrudaya/pkg/audio"
)

// SpeakerConfig configures the system audio output.
type SpeakerConfig struct {
	// SampleRate of the decoded agent audio in Hz.
	SampleRate int
	// Decoder turns opaque wire segments into s16le PCM before they reach
	// the device.
	Decoder audio.Decoder

	Logger *slog.Logger
}

// Speaker is a Sink backed by the system audio output via oto. Decoded PCM is
// staged in an internal buffer that the oto player pulls from; the player is
// created lazily on the first Resume so a silent session never opens the
// device for output.
type Speaker struct {
	otoCtx *oto.Context
	dec    audio.Decoder
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	player *oto.Player
	buf    []byte
	closed bool
}

// NewSpeaker opens the audio output context.
func NewSpeaker(cfg SpeakerConfig) (*Speaker, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("speaker sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.Decoder == nil {
		cfg.Decoder = audio.PCMCodec{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		// Short device buffer keeps latency low without starving the player.
		BufferSize: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio output: %w", err)
	}
	<-ready

	s := &Speaker{otoCtx: otoCtx, dec: cfg.Decoder, logger: logger}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

func (s *Speaker) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Speaker) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player == nil || !s.player.IsPlaying()
}

func (s *Speaker) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.player == nil {
		s.player = s.otoCtx.NewPlayer(s)
	}
	s.player.Play()
}

// Append decodes one wire segment and stages the PCM for the player. A
// segment the decoder rejects is treated as a malformed inbound message:
// it is skipped with a warning and done(nil), the same recover-locally
// policy the transport applies to unparseable control frames. The no-drop
// ordering guarantee covers decodable agent speech only; a chunk that can
// never become audible does not get to stall the queue behind it.
func (s *Speaker) Append(chunk []byte, done func(error)) {
	pcm, err := s.dec.Decode(chunk)
	if err != nil {
		s.logger.Warn("drop undecodable audio segment", "err", err)
		done(nil)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done(fmt.Errorf("speaker is closed"))
		return
	}
	s.buf = append(s.buf, pcm...)
	s.cond.Signal()
	s.mu.Unlock()
	done(nil)
}

// Read implements io.Reader for the oto player, which pulls PCM for the
// device. Blocks until data is available or the speaker closes; after close
// it feeds silence so oto drains gracefully.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}

	if s.closed && len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Close releases the player and discards any buffered PCM.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.buf = nil
	player := s.player
	s.player = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}
