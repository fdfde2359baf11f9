package audio

import "encoding/binary"

// PCMCodec passes s16le frames through unchanged. It is the default codec:
// the reference server accepts raw PCM capture frames and streams decoded
// agent audio back.
type PCMCodec struct{}

func (PCMCodec) Encode(pcm []byte) ([]byte, error) { return pcm, nil }

func (PCMCodec) Decode(data []byte) ([]byte, error) { return data, nil }

// Samples reinterprets s16le bytes as int16 samples. A trailing odd byte is
// ignored.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

// Bytes renders int16 samples as s16le bytes.
func Bytes(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// MeanAbs returns the mean absolute amplitude of an s16le frame, normalized
// to [0, 1]. It is the advisory loudness scalar published per admitted
// capture frame; presentation layers use it for visual pulsing.
func MeanAbs(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		v := float64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return sum / float64(n) / 32768.0
}
