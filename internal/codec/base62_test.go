package codec

import (
	"math/rand"
	"testing"
)

// TestEncodeDecodeRoundTrip covers B1: decode(encode(n)) == n for n >= 0.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []int64{0, 1, 61, 62, 63, 4_222_976, 1<<53 - 1, 1<<62 - 1}

	for _, n := range tests {
		encoded, err := Encode(n)
		if err != nil {
			t.Fatalf("Encode(%d) error = %v", n, err)
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", encoded, err)
		}
		if decoded != n {
			t.Errorf("round trip mismatch: n=%d encoded=%q decoded=%d", n, encoded, decoded)
		}
	}
}

// TestEncodeDecodeRoundTripRandom fuzzes B1 across a large random sample,
// following the teacher's fuzz-testing convention for the codec.
func TestEncodeDecodeRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100000; i++ {
		n := rng.Int63()
		encoded, err := Encode(n)
		if err != nil {
			t.Fatalf("Encode(%d) error = %v", n, err)
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", encoded, err)
		}
		if decoded != n {
			t.Fatalf("round trip mismatch: n=%d encoded=%q decoded=%d", n, encoded, decoded)
		}
	}
}

// TestDecodeEncodeCanonical covers B2: encode(decode(s)) == s for every
// canonical string (no leading zero symbols unless s is the zero symbol).
func TestDecodeEncodeCanonical(t *testing.T) {
	tests := []string{"0", "1", "z", "A", "Z", "10", "zz", "Zz9aA"}

	for _, s := range tests {
		n, err := Decode(s)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", s, err)
		}
		encoded, err := Encode(n)
		if err != nil {
			t.Fatalf("Encode(%d) error = %v", n, err)
		}
		if encoded != s {
			t.Errorf("canonical round trip mismatch: s=%q decoded=%d re-encoded=%q", s, n, encoded)
		}
	}
}

func TestDecodeRejectsOutOfAlphabet(t *testing.T) {
	tests := []string{"", "-1", "abc!", "has space", "ünïcödé"}
	for _, s := range tests {
		if _, err := Decode(s); err == nil {
			t.Errorf("Decode(%q) expected error, got nil", s)
		}
	}
}

func TestEncodeRejectsNegative(t *testing.T) {
	if _, err := Encode(-1); err == nil {
		t.Error("Encode(-1) expected error, got nil")
	}
}
