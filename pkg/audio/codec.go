// Package audio supplies the codec boundary for the call engine. The engine
// moves opaque encoded bytes; these interfaces are the only place where a
// concrete codec is chosen.
package audio

// An Encoder turns one frame of 16-bit little-endian mono PCM into its wire
// representation. Implementations must be safe for use from a single capture
// goroutine; they are not required to be safe for concurrent use.
type Encoder interface {
	Encode(pcm []byte) ([]byte, error)
}

// A Decoder turns one opaque wire segment back into 16-bit little-endian mono
// PCM for the playback sink.
type Decoder interface {
	Decode(data []byte) ([]byte, error)
}
