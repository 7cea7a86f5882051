package siamese

import (
	"github.com/OneOfOne/xxhash"
	"github.com/pkg/errors"
)

// ackHash returns a fast digest of an encoded ack/NACK buffer. Encoder's
// Acknowledge uses it to reject a changed ack immediately, only paying
// for a full byte comparison once the digest already matches.
func ackHash(data []byte) uint64 {
	return xxhash.Checksum64(data)
}

// flag bits for the recovery packet footer's first byte.
const (
	footerFlagCauchy    = 1 << 0
	footerFlagParity    = 1 << 3
	footerSumCountShift = 1
	footerSumCountMask  = 0x3 // 2 bits: encodes SumCount-1, so 1..4
)

// encodeFooter appends a RecoveryMetadata footer to buf and returns the
// extended slice. The footer is written at the tail of the packet rather
// than the head (unlike kcp's fixed 24-byte header) because its length
// varies with the varint-encoded column fields, and a trailing
// self-length byte lets the decoder find it without having parsed
// anything else first.
func encodeFooter(buf []byte, meta RecoveryMetadata) []byte {
	start := len(buf)

	flags := byte(0)
	if meta.Cauchy {
		flags |= footerFlagCauchy
	}
	if meta.Parity {
		flags |= footerFlagParity
	}
	sumCount := meta.SumCount
	if sumCount == 0 {
		sumCount = 1
	}
	flags |= (sumCount - 1) & footerSumCountMask << footerSumCountShift

	buf = append(buf, flags, meta.Row)
	buf = putVarint(buf, uint64(meta.ColumnStart))
	buf = putVarint(buf, uint64(meta.ColumnCount))
	buf = putVarint(buf, uint64(meta.LDPCCount))

	footerLen := len(buf) - start
	if footerLen > 0xFF {
		// Column fields are bounded well under this by packetNumCount,
		// but guard anyway rather than silently truncating the length
		// byte.
		footerLen = 0xFF
	}
	return append(buf, byte(footerLen))
}

// decodeFooter splits data into its payload and the RecoveryMetadata
// trailing it.
func decodeFooter(data []byte) (meta RecoveryMetadata, payload []byte, err error) {
	if len(data) < 1 {
		return meta, nil, errors.Wrap(ErrInvalidInput, "decodeFooter: empty packet")
	}
	footerLen := int(data[len(data)-1])
	if len(data) < footerLen+1 {
		return meta, nil, errors.Wrap(ErrInvalidInput, "decodeFooter: truncated footer")
	}
	footer := data[len(data)-1-footerLen : len(data)-1]
	payload = data[:len(data)-1-footerLen]

	if len(footer) < 2 {
		return meta, nil, errors.Wrap(ErrInvalidInput, "decodeFooter: short footer")
	}
	flags := footer[0]
	meta.Cauchy = flags&footerFlagCauchy != 0
	meta.Parity = flags&footerFlagParity != 0
	meta.SumCount = ((flags >> footerSumCountShift) & footerSumCountMask) + 1
	meta.Row = footer[1]

	rest := footer[2:]
	columnStart, n, ok := getVarint(rest)
	if !ok {
		return meta, nil, errors.Wrap(ErrInvalidInput, "decodeFooter: bad columnStart varint")
	}
	rest = rest[n:]
	columnCount, n, ok := getVarint(rest)
	if !ok {
		return meta, nil, errors.Wrap(ErrInvalidInput, "decodeFooter: bad columnCount varint")
	}
	rest = rest[n:]
	ldpcCount, _, ok := getVarint(rest)
	if !ok {
		return meta, nil, errors.Wrap(ErrInvalidInput, "decodeFooter: bad ldpcCount varint")
	}
	meta.ColumnStart = PacketNumber(uint32(columnStart) & packetNumMask)
	meta.ColumnCount = uint32(columnCount)
	meta.LDPCCount = uint32(ldpcCount)
	return meta, payload, nil
}

// LossRange names a contiguous run of missing columns reported by a NACK.
type LossRange struct {
	Start PacketNumber
	Count uint32
}

// ackPadBytes zero-pads every encoded ack/NACK buffer so a deserializer
// can read up to this many bytes past the last real varint pair without
// a bounds check on every step, even if the sender's actual loss-range
// list ends exactly on a byte boundary. decodeAck itself stops after
// numRanges pairs and never reads into the padding; it exists for
// implementations that walk the buffer speculatively.
const ackPadBytes = 8

// encodeAck serializes nextColumnExpected, the number of loss ranges,
// then each range as a (gap, count_minus_one) varint pair, gap being the
// distance from the end of the previous range (or from
// nextColumnExpected for the first one) to the start of this one.
// count_minus_one is the wire encoding the NACK format calls for; a
// range of exactly 1 column then encodes as 0, which would collide with
// an implicit (0,0) end-of-list sentinel if one were used instead of an
// explicit count — hence the leading range-count varint rather than a
// sentinel pair. A trailing 8 bytes of zero padding let a deserializer
// read ahead past the last real pair without bounds-checking every step.
func encodeAck(nextColumnExpected PacketNumber, ranges []LossRange) []byte {
	buf := make([]byte, 0, 8+len(ranges)*4+ackPadBytes)
	buf = putVarint(buf, uint64(nextColumnExpected))
	buf = putVarint(buf, uint64(len(ranges)))

	cursor := nextColumnExpected
	for _, r := range ranges {
		gap := uint32(packetNumDiff(r.Start, cursor))
		buf = putVarint(buf, uint64(gap))
		buf = putVarint(buf, uint64(r.Count-1))
		cursor = r.Start.Add(r.Count)
	}

	for i := 0; i < ackPadBytes; i++ {
		buf = append(buf, 0)
	}
	return buf
}

// decodeAck parses a buffer produced by encodeAck.
func decodeAck(data []byte) (nextColumnExpected PacketNumber, ranges []LossRange, err error) {
	v, n, ok := getVarint(data)
	if !ok {
		return 0, nil, errors.Wrap(ErrInvalidInput, "decodeAck: bad next-column-expected varint")
	}
	nextColumnExpected = PacketNumber(uint32(v) & packetNumMask)
	data = data[n:]

	numRanges, n, ok := getVarint(data)
	if !ok {
		return 0, nil, errors.Wrap(ErrInvalidInput, "decodeAck: bad range-count varint")
	}
	data = data[n:]

	cursor := nextColumnExpected
	for i := uint64(0); i < numRanges; i++ {
		gap, n1, ok := getVarint(data)
		if !ok {
			return 0, nil, errors.Wrap(ErrInvalidInput, "decodeAck: truncated range gap")
		}
		countMinusOne, n2, ok := getVarint(data[n1:])
		if !ok {
			return 0, nil, errors.Wrap(ErrInvalidInput, "decodeAck: truncated range count")
		}
		start := cursor.Add(uint32(gap))
		count := uint32(countMinusOne) + 1
		ranges = append(ranges, LossRange{Start: start, Count: count})
		cursor = start.Add(count)
		data = data[n1+n2:]
	}
	return nextColumnExpected, ranges, nil
}
