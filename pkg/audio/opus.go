package audio

import (
	"fmt"

	"github.com/hraban/opus"
)

const (
	// maxOpusFrameMS is the largest frame duration Opus will hand back on
	// decode (120 ms), used to size the PCM scratch buffer.
	maxOpusFrameMS = 120
	// maxOpusPacketBytes is a generous ceiling for one encoded packet.
	maxOpusPacketBytes = 4000
)

// OpusEncoder encodes mono PCM capture frames with libopus in VoIP mode.
type OpusEncoder struct {
	enc        *opus.Encoder
	sampleRate int
	buf        []byte
}

// NewOpusEncoder creates an encoder for the given sample rate. The call
// engine captures at 16 kHz mono; Opus additionally supports 8, 12, 24 and
// 48 kHz.
func NewOpusEncoder(sampleRate int) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	return &OpusEncoder{
		enc:        enc,
		sampleRate: sampleRate,
		buf:        make([]byte, maxOpusPacketBytes),
	}, nil
}

func (e *OpusEncoder) Encode(pcm []byte) ([]byte, error) {
	samples := Samples(pcm)
	n, err := e.enc.Encode(samples, e.buf)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	out := make([]byte, n)
	copy(out, e.buf[:n])
	return out, nil
}

// OpusDecoder decodes agent speech segments back to mono s16le PCM.
type OpusDecoder struct {
	dec        *opus.Decoder
	sampleRate int
	pcm        []int16
}

// NewOpusDecoder creates a decoder producing PCM at the given sample rate.
func NewOpusDecoder(sampleRate int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &OpusDecoder{
		dec:        dec,
		sampleRate: sampleRate,
		pcm:        make([]int16, sampleRate*maxOpusFrameMS/1000),
	}, nil
}

func (d *OpusDecoder) Decode(data []byte) ([]byte, error) {
	n, err := d.dec.Decode(data, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	return Bytes(d.pcm[:n]), nil
}
