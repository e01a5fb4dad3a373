package wire

import "testing"

func TestU8RoundTrip(t *testing.T) {
	for _, v := range []uint8{0, 1, 127, 128, 255} {
		got, rest, ok := U8(PutU8(nil, v))
		if !ok || got != v || len(rest) != 0 {
			t.Errorf("U8(PutU8(%d)) = %d, %v, %v", v, got, rest, ok)
		}
	}
}

func TestU16RoundTrip(t *testing.T) {
	for _, v := range []uint16{0, 1, 0x00FF, 0xFF00, 0xFFFF} {
		got, rest, ok := U16(PutU16(nil, v))
		if !ok || got != v || len(rest) != 0 {
			t.Errorf("U16(PutU16(%d)) = %d, %v, %v", v, got, rest, ok)
		}
	}
}

func TestU32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 0xDEADBEEF, 0xFFFFFFFF} {
		got, rest, ok := U32(PutU32(nil, v))
		if !ok || got != v || len(rest) != 0 {
			t.Errorf("U32(PutU32(%d)) = %d, %v, %v", v, got, rest, ok)
		}
	}
}

func TestU64RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0xDEADBEEFCAFEBABE, 0xFFFFFFFFFFFFFFFF} {
		got, rest, ok := U64(PutU64(nil, v))
		if !ok || got != v || len(rest) != 0 {
			t.Errorf("U64(PutU64(%d)) = %d, %v, %v", v, got, rest, ok)
		}
	}
}

// TestF64Vectors checks the byte-exact f64 vectors required by spec.md §8.
func TestF64Vectors(t *testing.T) {
	cases := []struct {
		v    float64
		bits uint64
	}{
		{0.0, 0x0000000000000000},
		{1.0, 0x3FF0000000000000},
		{2.0, 0x4000000000000000},
		{-2.0, 0xC000000000000000},
		{1.0 / 3.0, 0x3FD5555555555555},
	}
	for _, c := range cases {
		b := PutF64(nil, c.v)
		got, rest, ok := U64(b)
		if !ok || got != c.bits || len(rest) != 0 {
			t.Errorf("PutF64(%v) bits = %#x, want %#x", c.v, got, c.bits)
		}
		f, rest, ok := F64(b)
		if !ok || f != c.v || len(rest) != 0 {
			t.Errorf("F64(PutF64(%v)) = %v", c.v, f)
		}
	}
}

func TestF32RoundTrip(t *testing.T) {
	for _, v := range []float32{0, 1, -1, 60, 3.14159} {
		got, rest, ok := F32(PutF32(nil, v))
		if !ok || got != v || len(rest) != 0 {
			t.Errorf("F32(PutF32(%v)) = %v, %v, %v", v, got, rest, ok)
		}
	}
}

func TestF16RoundTrip(t *testing.T) {
	for _, v := range []float32{0, 1, -1, 2, 60, 0.5, -0.5} {
		got, rest, ok := F16(PutF16(nil, v))
		if !ok || got != v || len(rest) != 0 {
			t.Errorf("F16(PutF16(%v)) = %v, %v, %v", v, got, rest, ok)
		}
	}
}

func TestF16Narrowing(t *testing.T) {
	// 3.14159 has no exact binary16 representation; the round trip
	// should land within binary16's ~3-decimal-digit precision.
	v := float32(3.14159)
	got, _, ok := F16(PutF16(nil, v))
	if !ok {
		t.Fatal("F16 decode failed")
	}
	if diff := got - v; diff > 0.01 || diff < -0.01 {
		t.Errorf("F16(PutF16(%v)) = %v, too far off", v, got)
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "verse-udp-dtls://host:12345"} {
		got, rest, ok := String(PutString(nil, s))
		if !ok || got != s || len(rest) != 0 {
			t.Errorf("String(PutString(%q)) = %q, %v, %v", s, got, rest, ok)
		}
	}

	long := make([]byte, 255)
	for i := range long {
		long[i] = 'x'
	}
	got, _, ok := String(PutString(nil, string(long)))
	if !ok || got != string(long) {
		t.Errorf("255-octet string round-trip failed")
	}
}

func TestUnpackFailureReturnsFullBuffer(t *testing.T) {
	buf := []byte{1, 2}
	if _, rest, ok := U32(buf); ok || len(rest) != len(buf) {
		t.Errorf("U32 on short buffer should return full remainder, got %v, %v", rest, ok)
	}
	if _, rest, ok := String([]byte{5, 1, 2}); ok || len(rest) != 3 {
		t.Errorf("String on truncated payload should return full remainder, got %v, %v", rest, ok)
	}
}

func TestLengthBoundary(t *testing.T) {
	// exactly 254 uses the one-octet form
	b := PutLength(nil, 254)
	if len(b) != 1 || b[0] != 254 {
		t.Errorf("PutLength(254) = %v, want [254]", b)
	}
	n, rest, ok := Length(b)
	if !ok || n != 254 || len(rest) != 0 {
		t.Errorf("Length(%v) = %d, %v, %v", b, n, rest, ok)
	}

	// 255 and 256 use the 0xFF + u16 form
	for _, want := range []int{255, 256} {
		b := PutLength(nil, want)
		if len(b) != 3 || b[0] != LongLenMarker {
			t.Errorf("PutLength(%d) = %v, want 3-octet 0xFF-prefixed form", want, b)
		}
		n, rest, ok := Length(b)
		if !ok || n != want || len(rest) != 0 {
			t.Errorf("Length(PutLength(%d)) = %d, %v, %v", want, n, rest, ok)
		}
	}
}
