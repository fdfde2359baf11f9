package audio

import (
	"math"
	"testing"
)

func TestSamplesBytesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 12345}
	got := Samples(Bytes(in))
	if len(got) != len(in) {
		t.Fatalf("length mismatch: %d != %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("sample %d: got %d, want %d", i, got[i], in[i])
		}
	}
}

func TestMeanAbs(t *testing.T) {
	if got := MeanAbs(nil); got != 0 {
		t.Fatalf("MeanAbs(nil) = %v, want 0", got)
	}
	if got := MeanAbs(Bytes([]int16{0, 0, 0})); got != 0 {
		t.Fatalf("silence level = %v, want 0", got)
	}

	// A constant full-scale signal normalizes to ~1.
	full := make([]int16, 160)
	for i := range full {
		full[i] = -32768
	}
	if got := MeanAbs(Bytes(full)); math.Abs(got-1.0) > 1e-3 {
		t.Fatalf("full-scale level = %v, want ~1", got)
	}

	// Half-scale alternating signal normalizes to ~0.5.
	half := make([]int16, 160)
	for i := range half {
		if i%2 == 0 {
			half[i] = 16384
		} else {
			half[i] = -16384
		}
	}
	if got := MeanAbs(Bytes(half)); math.Abs(got-0.5) > 1e-3 {
		t.Fatalf("half-scale level = %v, want ~0.5", got)
	}
}

func TestPCMCodecPassthrough(t *testing.T) {
	var c PCMCodec
	frame := Bytes([]int16{1, 2, 3})

	enc, err := c.Encode(frame)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := c.Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(dec) != string(frame) {
		t.Fatal("passthrough altered the frame")
	}
}
