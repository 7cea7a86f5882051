package siamese

// putVarint appends v to buf as a LEB128-style varint (7 data bits per
// byte, high bit set on every byte but the last) and returns the
// extended slice. Packet number deltas and loss-range lengths are almost
// always small, so this beats a fixed-width encoding for the ack/NACK
// wire format.
func putVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// getVarint decodes a varint starting at data[0], returning the value,
// the number of bytes consumed, and whether decoding succeeded. It fails
// if data runs out before a terminating (high-bit-clear) byte appears.
func getVarint(data []byte) (v uint64, n int, ok bool) {
	var shift uint
	for n < len(data) {
		b := data[n]
		n++
		v |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, n, true
		}
		shift += 7
		if shift >= 64 {
			return 0, n, false
		}
	}
	return 0, n, false
}
