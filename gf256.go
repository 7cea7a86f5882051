package siamese

import (
	"github.com/klauspost/cpuid/v2"
	"github.com/templexxx/cpu"
	"github.com/templexxx/xorsimd"
)

// AddMem is the add_mem primitive: dst ^= src, byte for byte. Every plain
// (non-weighted) running sum update in the encoder window goes through
// here, so it's handed to xorsimd rather than a hand-rolled loop.
func AddMem(dst, src []byte) {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	xorsimd.Bytes(dst[:n], dst[:n], src[:n])
}

// MulAdd is the muladd_mem primitive: dst[i] ^= coefficient*src[i] in
// GF(256) for every byte. This is what folds a weighted lane (sumIndex 1
// or 2, multiplying by CX(column) or CX(column)^2) into a running sum.
func MulAdd(dst, src []byte, coefficient byte) {
	if coefficient == 0 {
		return
	}
	if coefficient == 1 {
		AddMem(dst, src)
		return
	}
	lo := &gfMulLo[coefficient]
	hi := &gfMulHi[coefficient]
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		b := src[i]
		dst[i] ^= lo[b&0x0F] ^ hi[b>>4]
	}
}

// ScaleMem multiplies every byte of dst in place by coefficient. The
// solver uses this once, per row, to turn a residual that equals
// weight*data into data itself.
func ScaleMem(dst []byte, coefficient byte) {
	if coefficient == 1 {
		return
	}
	lo := &gfMulLo[coefficient]
	hi := &gfMulHi[coefficient]
	for i, b := range dst {
		dst[i] = lo[b&0x0F] ^ hi[b>>4]
	}
}

// Multiply returns a*b in GF(256).
func Multiply(a, b byte) byte {
	return gfMultiplyLogExp(a, b)
}

// Divide returns a/b in GF(256). b must be nonzero: gfLogTable holds no
// real logarithm for 0, so a zero divisor yields a meaningless result
// rather than a panic.
func Divide(a, b byte) byte {
	if a == 0 {
		return 0
	}
	diff := int(gfLogTable[a]) - int(gfLogTable[b])
	if diff < 0 {
		diff += 255
	}
	return gfExpTable[diff]
}

// Invert returns the multiplicative inverse of a nonzero element.
func Invert(a byte) byte {
	return gfExpTable[255-int(gfLogTable[a])]
}

// PreferredAlignment reports the SIMD-friendly byte alignment the slab
// allocator should round unit sizes up to, so that buffers handed to
// AddMem/MulAdd land on boundaries xorsimd's wide code paths like.
func PreferredAlignment() int {
	if cpu.X86.HasAVX2 || cpuid.CPU.Has(cpuid.AVX2) {
		return 32
	}
	if cpu.X86.HasSSSE3 || cpuid.CPU.Has(cpuid.SSSE3) {
		return 16
	}
	return 8
}
