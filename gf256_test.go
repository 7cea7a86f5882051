package siamese

import (
	"bytes"
	"testing"
)

func TestGF256MultiplyIdentity(t *testing.T) {
	for a := 1; a < 256; a++ {
		if got := Multiply(byte(a), 1); got != byte(a) {
			t.Fatalf("Multiply(%d, 1) = %d, want %d", a, got, a)
		}
		if got := Multiply(byte(a), 0); got != 0 {
			t.Fatalf("Multiply(%d, 0) = %d, want 0", a, got)
		}
	}
}

func TestGF256MultiplyCommutative(t *testing.T) {
	for a := 0; a < 256; a += 17 {
		for b := 0; b < 256; b += 23 {
			if Multiply(byte(a), byte(b)) != Multiply(byte(b), byte(a)) {
				t.Fatalf("Multiply(%d,%d) != Multiply(%d,%d)", a, b, b, a)
			}
		}
	}
}

func TestGF256InvertRoundTrip(t *testing.T) {
	for a := 1; a < 256; a++ {
		inv := Invert(byte(a))
		if got := Multiply(byte(a), inv); got != 1 {
			t.Fatalf("Multiply(%d, Invert(%d)=%d) = %d, want 1", a, a, inv, got)
		}
	}
}

func TestGF256DivideUndoesMultiply(t *testing.T) {
	for a := 1; a < 256; a++ {
		for b := 1; b < 256; b += 31 {
			prod := Multiply(byte(a), byte(b))
			if got := Divide(prod, byte(b)); got != byte(a) {
				t.Fatalf("Divide(Multiply(%d,%d)=%d, %d) = %d, want %d", a, b, prod, b, got, a)
			}
		}
	}
	if got := Divide(0, 5); got != 0 {
		t.Fatalf("Divide(0, 5) = %d, want 0", got)
	}
}

func TestAddMemIsXOR(t *testing.T) {
	dst := []byte{0x0F, 0xFF, 0x00}
	src := []byte{0xF0, 0x0F, 0xAB}
	AddMem(dst, src)
	want := []byte{0xFF, 0xF0, 0xAB}
	if !bytes.Equal(dst, want) {
		t.Fatalf("AddMem got %x, want %x", dst, want)
	}
}

func TestAddMemSelfInverse(t *testing.T) {
	dst := []byte{1, 2, 3, 4, 5}
	orig := append([]byte{}, dst...)
	src := []byte{9, 8, 7, 6, 5}
	AddMem(dst, src)
	AddMem(dst, src)
	if !bytes.Equal(dst, orig) {
		t.Fatalf("AddMem applied twice should be identity: got %x, want %x", dst, orig)
	}
}

func TestMulAddMatchesMultiply(t *testing.T) {
	for _, coeff := range []byte{0, 1, 2, 3, 200, 255} {
		dst := make([]byte, 4)
		src := []byte{10, 20, 30, 40}
		MulAdd(dst, src, coeff)
		for i, s := range src {
			want := Multiply(s, coeff)
			if dst[i] != want {
				t.Fatalf("coeff=%d i=%d: MulAdd gave %d, want %d", coeff, i, dst[i], want)
			}
		}
	}
}

func TestMulAddAccumulates(t *testing.T) {
	dst := make([]byte, 4)
	src1 := []byte{1, 2, 3, 4}
	src2 := []byte{5, 6, 7, 8}
	MulAdd(dst, src1, 3)
	MulAdd(dst, src2, 9)
	for i := range dst {
		want := Multiply(src1[i], 3) ^ Multiply(src2[i], 9)
		if dst[i] != want {
			t.Fatalf("i=%d: got %d, want %d", i, dst[i], want)
		}
	}
}

func TestScaleMemThenInvertIsIdentity(t *testing.T) {
	orig := []byte{1, 2, 3, 4, 5, 250}
	dst := append([]byte{}, orig...)
	const coeff = 37
	ScaleMem(dst, coeff)
	ScaleMem(dst, Invert(coeff))
	if !bytes.Equal(dst, orig) {
		t.Fatalf("ScaleMem round trip: got %x, want %x", dst, orig)
	}
}

func TestScaleMemByOneIsNoop(t *testing.T) {
	orig := []byte{9, 8, 7, 6}
	dst := append([]byte{}, orig...)
	ScaleMem(dst, 1)
	if !bytes.Equal(dst, orig) {
		t.Fatalf("ScaleMem by 1 changed data: got %x, want %x", dst, orig)
	}
}

func TestPreferredAlignmentIsPowerOfTwoAtLeastEight(t *testing.T) {
	align := PreferredAlignment()
	if align < 8 {
		t.Fatalf("PreferredAlignment() = %d, want >= 8", align)
	}
	if align&(align-1) != 0 {
		t.Fatalf("PreferredAlignment() = %d, want a power of two", align)
	}
}
