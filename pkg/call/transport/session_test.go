package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheRealNeelaksh/Shrudaya/pkg/call/protocol"
)

var upgrader = websocket.Upgrader{}

func newWSServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialTest(t *testing.T, srv *httptest.Server, credential string) *Session {
	t.Helper()
	s, err := Dial(context.Background(), Config{
		URL:         srv.URL,
		Credential:  credential,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDial_AppendsCredentialQueryParam(t *testing.T) {
	gotToken := make(chan string, 1)
	srv := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		gotToken <- r.URL.Query().Get("token")
	})

	dialTest(t, srv, "sekrit")

	select {
	case tok := <-gotToken:
		if tok != "sekrit" {
			t.Fatalf("token = %q, want %q", tok, "sekrit")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the handshake")
	}
}

func TestSession_DemuxesAudioAndControl(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		start, _ := protocol.EncodeControl(protocol.TtsStart{})
		if err := conn.WriteMessage(websocket.TextMessage, start); err != nil {
			return
		}
		for i := byte(0); i < 3; i++ {
			if err := conn.WriteMessage(websocket.BinaryMessage, []byte{i, i, i}); err != nil {
				return
			}
		}
		end, _ := protocol.EncodeControl(protocol.TtsEnd{})
		_ = conn.WriteMessage(websocket.TextMessage, end)
		time.Sleep(200 * time.Millisecond)
	})

	s := dialTest(t, srv, "")

	if msg := <-s.Control(); msg != (protocol.TtsStart{}) {
		t.Fatalf("first control = %#v, want TtsStart", msg)
	}
	for i := byte(0); i < 3; i++ {
		chunk := <-s.Audio()
		if len(chunk) != 3 || chunk[0] != i {
			t.Fatalf("audio chunk %d out of order: %v", i, chunk)
		}
	}
	if msg := <-s.Control(); msg != (protocol.TtsEnd{}) {
		t.Fatalf("second control = %#v, want TtsEnd", msg)
	}
}

func TestSession_DropsMalformedControlFrames(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json at all"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery"}`))
		good, _ := protocol.EncodeControl(protocol.UserTranscript{Text: "hello"})
		_ = conn.WriteMessage(websocket.TextMessage, good)
		time.Sleep(200 * time.Millisecond)
	})

	s := dialTest(t, srv, "")

	select {
	case msg := <-s.Control():
		if msg != (protocol.UserTranscript{Text: "hello"}) {
			t.Fatalf("got %#v, want the well-formed transcript", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("well-formed frame never arrived")
	}
}

func TestSession_AuthRejectionCloseCode(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(4001, "bad token"), deadline)
		// Wait for the client's close response before dropping the TCP conn.
		_, _, _ = conn.ReadMessage()
	})

	s := dialTest(t, srv, "")

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never finished")
	}

	ce, ok := s.Err().(*CloseError)
	if !ok {
		t.Fatalf("Err() = %v (%T), want *CloseError", s.Err(), s.Err())
	}
	if !ce.AuthenticationRejected() {
		t.Fatalf("close code %d should denote auth rejection", ce.Code)
	}
}

func TestSession_GenericCloseCode(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), deadline)
		_, _, _ = conn.ReadMessage()
	})

	s := dialTest(t, srv, "")

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never finished")
	}

	ce, ok := s.Err().(*CloseError)
	if !ok {
		t.Fatalf("Err() = %v (%T), want *CloseError", s.Err(), s.Err())
	}
	if ce.AuthenticationRejected() {
		t.Fatalf("close code %d must not denote auth rejection", ce.Code)
	}
}

func TestSession_CloseIsIdempotentAndSendsBecomeNoOps(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := dialTest(t, srv, "")

	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	// After close these must neither panic nor block.
	s.SendAudio([]byte{1, 2, 3})
	s.SendText("too late")

	if err := s.Err(); err != nil {
		t.Fatalf("locally closed session should report nil error, got %v", err)
	}
}

func TestEndpointURL_SchemeNormalization(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://example.com/ws", "ws://example.com/ws", false},
		{"https://example.com/ws", "wss://example.com/ws", false},
		{"ws://example.com/ws", "ws://example.com/ws", false},
		{"ftp://example.com/ws", "", true},
	}
	for _, tc := range cases {
		got, err := endpointURL(tc.in, "")
		if tc.wantErr {
			if err == nil {
				t.Fatalf("endpointURL(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("endpointURL(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("endpointURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
