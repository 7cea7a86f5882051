package siamese

import "testing"

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 2, 127, 128, 255, 256, 16383, 16384, 1 << 30, 1<<64 - 1}
	for _, v := range values {
		buf := putVarint(nil, v)
		got, n, ok := getVarint(buf)
		if !ok {
			t.Fatalf("getVarint(%d) failed to decode", v)
		}
		if n != len(buf) {
			t.Fatalf("getVarint(%d) consumed %d bytes, want %d", v, n, len(buf))
		}
		if got != v {
			t.Fatalf("round trip %d -> %x -> %d", v, buf, got)
		}
	}
}

func TestVarintSmallValuesAreOneByte(t *testing.T) {
	for v := uint64(0); v < 128; v++ {
		buf := putVarint(nil, v)
		if len(buf) != 1 {
			t.Fatalf("putVarint(%d) = %x, want 1 byte", v, buf)
		}
	}
}

func TestVarintAppendsAfterExistingData(t *testing.T) {
	buf := []byte{0xAA, 0xBB}
	buf = putVarint(buf, 300)
	if buf[0] != 0xAA || buf[1] != 0xBB {
		t.Fatalf("putVarint clobbered existing prefix: %x", buf)
	}
	got, n, ok := getVarint(buf[2:])
	if !ok || got != 300 || n != 2 {
		t.Fatalf("decode after prefix: got=%d n=%d ok=%v", got, n, ok)
	}
}

func TestGetVarintTruncatedFails(t *testing.T) {
	buf := []byte{0x80, 0x80, 0x80} // every byte has continuation bit set, no terminator
	_, _, ok := getVarint(buf)
	if ok {
		t.Fatalf("expected truncated varint to fail to decode")
	}
}

func TestGetVarintEmptyFails(t *testing.T) {
	_, _, ok := getVarint(nil)
	if ok {
		t.Fatalf("expected empty input to fail to decode")
	}
}
