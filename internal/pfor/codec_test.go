package pfor

import (
	"testing"
)

func TestZigzagRoundTrip(t *testing.T) {
	vals := []int16{0, 1, -1, 2, -2, 32767, -32768, 100, -100}
	for _, v := range vals {
		got := zigzagDecode(zigzagEncode(v))
		if got != v {
			t.Fatalf("zigzag round trip: got %d, want %d", got, v)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	vals := []int16{0, 1, -1, 63, -64, 127, -128, 1000, -1000, 32767, -32768}
	encoded := Encode(vals)
	if len(encoded) > Bound(len(vals)) {
		t.Fatalf("encoded length %d exceeds Bound %d", len(encoded), Bound(len(vals)))
	}

	dst := make([]int16, len(vals))
	consumed, err := Decode(encoded, len(vals), dst)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("consumed %d, want %d", consumed, len(encoded))
	}
	for i, v := range vals {
		if dst[i] != v {
			t.Fatalf("element %d: got %d, want %d", i, dst[i], v)
		}
	}
}

func TestDecodeTruncatedStream(t *testing.T) {
	encoded := Encode([]int16{1, 2, 3})
	dst := make([]int16, 3)
	_, err := Decode(encoded[:len(encoded)-1], 3, dst)
	if err == nil {
		t.Fatalf("expected an error decoding a truncated stream")
	}
}

func TestDecodeRejectsUndersizedDst(t *testing.T) {
	encoded := Encode([]int16{1, 2, 3})
	dst := make([]int16, 2)
	_, err := Decode(encoded, 3, dst)
	if err == nil {
		t.Fatalf("expected an error when dst is smaller than nElements")
	}
}
