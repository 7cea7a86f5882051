package siamese

// pcgRandom is a PCG32 generator used for dense-regime row weight
// sampling. The constants and output function are normative: the decoder
// must derive the same weights from the same (row, count) seed as the
// encoder that produced a recovery packet, so every bit of this
// generator is fixed, not tuned.
type pcgRandom struct {
	state uint64
	inc   uint64
}

const pcgMultiplier uint64 = 6364136223846793005

// seed initializes the generator the same way as PCGRandom::Seed: two
// Next() calls are burned, one right after setting Inc and one after
// adding the low-order seed value, so that both seed halves perturb the
// first visible output.
func (p *pcgRandom) seed(y, x uint64) {
	p.state = 0
	p.inc = (y << 1) | 1
	p.next()
	p.state += x
	p.next()
}

// next returns the next 32-bit output and advances the LCG state.
func (p *pcgRandom) next() uint32 {
	oldState := p.state
	p.state = oldState*pcgMultiplier + p.inc
	xorshifted := uint32(((oldState >> 18) ^ oldState) >> 27)
	rot := uint32(oldState >> 59)
	return (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
}
