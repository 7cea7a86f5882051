package siamese

import "testing"

func TestGFExpLogRoundTrip(t *testing.T) {
	for a := 1; a < 256; a++ {
		log := gfLogTable[a]
		if got := gfExpTable[log]; got != byte(a) {
			t.Fatalf("gfExpTable[gfLogTable[%d]=%d] = %d, want %d", a, log, got, a)
		}
	}
}

func TestGFExpTableDoublesPastFirstPeriod(t *testing.T) {
	for i := 0; i < 255; i++ {
		if gfExpTable[i] != gfExpTable[i+255] {
			t.Fatalf("gfExpTable[%d]=%d != gfExpTable[%d]=%d", i, gfExpTable[i], i+255, gfExpTable[i+255])
		}
	}
}

func TestGFMulTablesMatchLogExp(t *testing.T) {
	for c := 0; c < 256; c++ {
		for b := 0; b < 256; b++ {
			want := gfMultiplyLogExp(byte(c), byte(b))
			got := gfMulLo[c][b&0x0F] ^ gfMulHi[c][b>>4]
			if got != want {
				t.Fatalf("c=%d b=%d: nibble tables gave %d, want %d", c, b, got, want)
			}
		}
	}
}
