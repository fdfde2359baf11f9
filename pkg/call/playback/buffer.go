// Package playback orders and delivers agent speech to a streaming audio
// sink. Unlike capture, playback may never drop or reorder a chunk: agent
// speech must come out exactly as it arrived.
package playback

import (
	"log/slog"
	"sync"
)

// A Sink accepts one contiguous append at a time. Overlapping appends to a
// streaming sink are undefined, so the Buffer guarantees single-flight
// submission: Append is never called again until done has fired for the
// previous call.
type Sink interface {
	// Ready reports whether the sink can accept an append right now.
	Ready() bool
	// Paused reports whether the sink needs a Resume nudge before audio is
	// audible. A push-fed streaming sink does not always auto-start.
	Paused() bool
	// Resume starts (or restarts) audible playback.
	Resume()
	// Append submits one chunk. done must be invoked exactly once when the
	// submission completes; it may be invoked synchronously.
	Append(chunk []byte, done func(error))
	// Close releases the sink and any backing storage.
	Close() error
}

// Buffer is a FIFO of encoded agent audio chunks feeding a Sink with
// single-flight appends.
type Buffer struct {
	sink   Sink
	logger *slog.Logger

	mu        sync.Mutex
	queue     [][]byte
	appending bool
	closed    bool
}

// New creates a buffer over the given sink.
func New(sink Sink, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{sink: sink, logger: logger}
}

// Enqueue pushes one chunk to the tail and drains if possible.
func (b *Buffer) Enqueue(chunk []byte) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, chunk)
	b.mu.Unlock()
	b.Drain()
}

// Len returns the number of queued, not-yet-submitted chunks. The turn
// coordinator may consult this to keep the microphone gated while agent
// audio is still waiting.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Drain submits the head chunk when no append is in flight and the sink is
// ready. Completion of that submission re-invokes Drain, so the queue empties
// one chunk at a time in arrival order. Also the hook for "sink became
// ready" notifications after a deferred append.
func (b *Buffer) Drain() {
	b.mu.Lock()
	if b.appending || b.closed || len(b.queue) == 0 || !b.sink.Ready() {
		b.mu.Unlock()
		return
	}
	chunk := b.queue[0]
	b.queue = b.queue[1:]
	b.appending = true
	sink := b.sink
	b.mu.Unlock()

	// First chunk of a burst: nudge a paused sink so audio actually starts.
	if sink.Paused() {
		sink.Resume()
	}

	sink.Append(chunk, func(err error) {
		b.mu.Lock()
		b.appending = false
		if err != nil && !b.closed {
			// Put the chunk back and wait for the sink to signal readiness;
			// dropping agent speech is not permitted.
			b.queue = append([][]byte{chunk}, b.queue...)
			b.mu.Unlock()
			b.logger.Warn("playback append deferred", "err", err)
			return
		}
		b.mu.Unlock()
		b.Drain()
	})
}

// Reset discards all queued chunks and releases the sink. Called on call
// end; the contract favors a clean stop over finishing in-flight speech.
func (b *Buffer) Reset() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.queue = nil
	sink := b.sink
	b.mu.Unlock()

	if err := sink.Close(); err != nil {
		b.logger.Warn("playback sink close failed", "err", err)
	}
}
