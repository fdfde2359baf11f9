package playback

import (
	"fmt"
	"sync"
	"testing"
)

// fakeSink instruments every Sink interaction so tests can assert ordering,
// single-flight submission and release behavior.
type fakeSink struct {
	mu          sync.Mutex
	ready       bool
	paused      bool
	resumes     int
	appends     [][]byte
	inFlight    int
	maxInFlight int
	failNext    bool
	hold        bool
	held        []func(error)
	closed      bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{ready: true, paused: true}
}

func (f *fakeSink) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeSink) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeSink) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	f.paused = false
}

func (f *fakeSink) Append(chunk []byte, done func(error)) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	if f.hold {
		f.held = append(f.held, func(err error) {
			f.mu.Lock()
			f.inFlight--
			if err == nil {
				f.appends = append(f.appends, chunk)
			}
			f.mu.Unlock()
			done(err)
		})
		f.mu.Unlock()
		return
	}
	fail := f.failNext
	f.failNext = false
	f.inFlight--
	if !fail {
		f.appends = append(f.appends, chunk)
	}
	f.mu.Unlock()
	if fail {
		done(fmt.Errorf("sink hiccup"))
		return
	}
	done(nil)
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) completeHeld(t *testing.T) {
	f.mu.Lock()
	if len(f.held) == 0 {
		f.mu.Unlock()
		t.Fatal("no held append to complete")
	}
	done := f.held[0]
	f.held = f.held[1:]
	f.mu.Unlock()
	done(nil)
}

func TestBuffer_PreservesArrivalOrder(t *testing.T) {
	sink := newFakeSink()
	b := New(sink, nil)

	const n = 50
	for i := 0; i < n; i++ {
		b.Enqueue([]byte{byte(i)})
	}

	if len(sink.appends) != n {
		t.Fatalf("sink received %d chunks, want %d", len(sink.appends), n)
	}
	for i, chunk := range sink.appends {
		if chunk[0] != byte(i) {
			t.Fatalf("chunk %d out of order: got %d", i, chunk[0])
		}
	}
	if sink.maxInFlight > 1 {
		t.Fatalf("single-flight violated: %d appends overlapped", sink.maxInFlight)
	}
}

func TestBuffer_SingleFlightAcrossAsyncCompletion(t *testing.T) {
	sink := newFakeSink()
	sink.hold = true
	b := New(sink, nil)

	b.Enqueue([]byte{1})
	b.Enqueue([]byte{2})
	b.Enqueue([]byte{3})

	if got := b.Len(); got != 2 {
		t.Fatalf("queued = %d, want 2 while the first append is in flight", got)
	}

	sink.completeHeld(t)
	sink.completeHeld(t)
	sink.completeHeld(t)

	if len(sink.appends) != 3 {
		t.Fatalf("sink received %d chunks, want 3", len(sink.appends))
	}
	if sink.maxInFlight != 1 {
		t.Fatalf("maxInFlight = %d, want 1", sink.maxInFlight)
	}
}

func TestBuffer_NudgesPausedSinkOnFirstChunk(t *testing.T) {
	sink := newFakeSink()
	b := New(sink, nil)

	b.Enqueue([]byte{1})
	if sink.resumes != 1 {
		t.Fatalf("resumes = %d, want 1 (paused sink must be nudged)", sink.resumes)
	}

	b.Enqueue([]byte{2})
	if sink.resumes != 1 {
		t.Fatalf("resumes = %d, want still 1 (running sink needs no nudge)", sink.resumes)
	}
}

func TestBuffer_DefersWhenSinkNotReady(t *testing.T) {
	sink := newFakeSink()
	sink.ready = false
	b := New(sink, nil)

	b.Enqueue([]byte{1})
	if len(sink.appends) != 0 {
		t.Fatal("append submitted to a not-ready sink")
	}
	if b.Len() != 1 {
		t.Fatalf("queued = %d, want 1", b.Len())
	}

	sink.mu.Lock()
	sink.ready = true
	sink.mu.Unlock()
	b.Drain()

	if len(sink.appends) != 1 {
		t.Fatal("chunk not delivered after sink became ready")
	}
}

func TestBuffer_RequeuesOnAppendError(t *testing.T) {
	sink := newFakeSink()
	sink.failNext = true
	b := New(sink, nil)

	b.Enqueue([]byte{7})
	if len(sink.appends) != 0 {
		t.Fatal("failed append must not count as delivered")
	}
	if b.Len() != 1 {
		t.Fatalf("queued = %d, want the chunk back at the head", b.Len())
	}

	b.Drain()
	if len(sink.appends) != 1 || sink.appends[0][0] != 7 {
		t.Fatalf("chunk not re-delivered after recovery: %v", sink.appends)
	}
}

func TestBuffer_ResetDiscardsAndReleases(t *testing.T) {
	sink := newFakeSink()
	sink.ready = false
	b := New(sink, nil)

	b.Enqueue([]byte{1})
	b.Enqueue([]byte{2})
	b.Reset()

	if !sink.closed {
		t.Fatal("Reset must release the sink")
	}
	if b.Len() != 0 {
		t.Fatalf("queued = %d after Reset, want 0", b.Len())
	}

	// Further traffic is ignored, and a second Reset must not double-release.
	sink.closed = false
	b.Enqueue([]byte{3})
	b.Reset()
	if sink.closed {
		t.Fatal("second Reset must not close the sink again")
	}
	if len(sink.appends) != 0 {
		t.Fatal("enqueue after Reset must be dropped")
	}
}
