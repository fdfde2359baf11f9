// Package transport wraps the duplex websocket connection for one call
// attempt. There is no automatic reconnection: a dropped connection ends the
// call, and the user must explicitly start a new one.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheRealNeelaksh/Shrudaya/pkg/call/protocol"
)

const defaultDialTimeout = 15 * time.Second

// authRejectionFloor is the first close code in the custom 4000+ range, which
// the server reserves for authentication rejection.
const authRejectionFloor = 4000

// CloseError reports why the peer closed the connection.
type CloseError struct {
	Code int
	Text string
}

func (e *CloseError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("connection closed (code %d): %s", e.Code, e.Text)
	}
	return fmt.Sprintf("connection closed (code %d)", e.Code)
}

// AuthenticationRejected reports whether the close code denotes an
// authentication rejection rather than a generic network close.
func (e *CloseError) AuthenticationRejected() bool {
	return e.Code >= authRejectionFloor
}

// Config configures one connection attempt.
type Config struct {
	// URL of the call endpoint. http(s) schemes are normalized to ws(s).
	URL string
	// Credential is an opaque token appended to the URL as a query
	// parameter. Empty means unauthenticated.
	Credential string
	// DialTimeout bounds connection establishment when the context carries
	// no deadline. Defaults to 15s.
	DialTimeout time.Duration

	Logger *slog.Logger
}

// Session is one open duplex connection. Inbound frames are demultiplexed
// into the Audio and Control channels in arrival order; outbound writes are
// serialized and silently dropped once the connection leaves the open state.
type Session struct {
	conn   *websocket.Conn
	logger *slog.Logger

	control chan protocol.ControlMessage
	audio   chan []byte
	done    chan struct{}
	closing chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// Dial establishes the connection. It returns once the websocket handshake
// completes; a handshake failure is a ConnectionFailed condition for the
// caller.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	wsURL, err := endpointURL(cfg.URL, cfg.Credential)
	if err != nil {
		return nil, err
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		timeout := cfg.DialTimeout
		if timeout <= 0 {
			timeout = defaultDialTimeout
		}
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	s := &Session{
		conn:    conn,
		logger:  logger,
		control: make(chan protocol.ControlMessage, 64),
		audio:   make(chan []byte, 256),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Control yields inbound control messages in arrival order. Closed when the
// session ends.
func (s *Session) Control() <-chan protocol.ControlMessage { return s.control }

// Audio yields inbound agent audio segments in arrival order. Closed when
// the session ends.
func (s *Session) Audio() <-chan []byte { return s.audio }

// Done is closed once the read loop has exited and Err is stable.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the terminal connection error. A *CloseError carries the
// peer's close code; nil means the session was closed locally.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// SendAudio transmits one encoded capture frame. It is a no-op when the
// connection is not open: real-time audio that cannot be sent now is stale,
// so nothing is queued and no error is surfaced.
func (s *Session) SendAudio(encoded []byte) {
	if s.closed.Load() {
		return
	}
	payload, err := protocol.EncodeAudioChunk(encoded)
	if err != nil {
		s.logger.Warn("drop outbound audio frame", "err", err)
		return
	}
	s.write(payload)
}

// SendText transmits a text-chat message. No-op when the connection is not
// open.
func (s *Session) SendText(text string) {
	if s.closed.Load() {
		return
	}
	payload, err := protocol.EncodeTextMessage(text)
	if err != nil {
		s.logger.Warn("drop outbound text message", "err", err)
		return
	}
	s.write(payload)
}

func (s *Session) write(payload []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.logger.Warn("websocket write failed", "err", err)
	}
}

// Close shuts the connection down. Idempotent; safe to call after the peer
// already closed. Returns once the read loop has exited.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closing)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *Session) readLoop() {
	defer close(s.done)
	defer close(s.control)
	defer close(s.audio)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(classifyReadError(err, s.closed.Load()))
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			chunk := append([]byte(nil), data...)
			select {
			case s.audio <- chunk:
			case <-s.closing:
				return
			}
		case websocket.TextMessage:
			msg, perr := protocol.ParseControl(data)
			if perr != nil {
				// Malformed frames are dropped, never fatal.
				s.logger.Warn("drop malformed control frame", "err", perr)
				continue
			}
			select {
			case s.control <- msg:
			case <-s.closing:
				return
			}
		default:
			continue
		}
	}
}

func (s *Session) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func classifyReadError(err error, closedLocally bool) error {
	if closedLocally {
		return nil
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: ce.Code, Text: ce.Text}
	}
	return err
}

func endpointURL(raw, credential string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid call endpoint URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("call endpoint URL must use http(s) or ws(s), got %q", u.Scheme)
	}
	if credential != "" {
		q := u.Query()
		q.Set("token", credential)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
