package siamese

// PacketNumber is a 22-bit wrapping sequence number. The codec never
// compares packet numbers with plain arithmetic: wraparound at 2^22 is
// normal, expected behavior for a long-lived stream, so every comparison
// goes through packetNumDiff, the 22-bit analogue of kcp's _itimediff.
type PacketNumber uint32

const (
	packetNumBits  = 22
	packetNumCount = 1 << packetNumBits
	packetNumMask  = packetNumCount - 1

	// packetNumShift is how far packetNumDiff has to shift a 22-bit
	// difference left before an arithmetic right shift correctly sign
	// extends it, the same trick _itimediff gets for free at 32 bits.
	packetNumShift = 32 - packetNumBits
)

// Next returns the packet number following p, wrapping at 2^22.
func (p PacketNumber) Next() PacketNumber {
	return PacketNumber((uint32(p) + 1) & packetNumMask)
}

// Add returns p+n, wrapping at 2^22.
func (p PacketNumber) Add(n uint32) PacketNumber {
	return PacketNumber((uint32(p) + n) & packetNumMask)
}

// packetNumDiff returns later-earlier as a signed delta, correctly
// handling wraparound across the 2^22 boundary. A positive result means
// later comes after earlier in stream order.
func packetNumDiff(later, earlier PacketNumber) int32 {
	diff := (int32(later) - int32(earlier)) << packetNumShift
	return diff >> packetNumShift
}

// packetNumLess reports whether a precedes b in wrap-safe stream order.
func packetNumLess(a, b PacketNumber) bool {
	return packetNumDiff(a, b) < 0
}

// OriginalPacket is a packet handed to the encoder, or reconstructed and
// handed back to the caller by the decoder.
type OriginalPacket struct {
	Column PacketNumber
	Data   []byte
}

// RecoveryPacket is the wire-format recovery data produced by an encode
// call and consumed, unmodified, by the decoder.
type RecoveryPacket struct {
	Data []byte
}

// RecoveryMetadata is the footer appended to the tail of every recovery
// packet's Data by footer.go: the fields a decoder needs to regenerate
// the exact row weights an encoder used, without seeing any of the
// encoder's internal lane state.
type RecoveryMetadata struct {
	// ColumnStart is the first column (packet number) spanned by this
	// recovery row's sum range.
	ColumnStart PacketNumber

	// ColumnCount is the number of columns spanned, starting at
	// ColumnStart.
	ColumnCount uint32

	// Row selects which coefficient set was used to build this packet
	// within its (ColumnStart, ColumnCount) epoch, so the decoder can
	// regenerate the identical row.
	Row uint8

	// Cauchy is true when Row was generated from the Cauchy regime
	// (small unacknowledged count) rather than the dense+LDPC Siamese
	// regime.
	Cauchy bool

	// Parity is true for the plain-XOR row the Cauchy regime emits once
	// its range start reaches the column the previous parity row
	// scheduled, ColumnCount columns past that row's own start (Row is
	// always 0 in this case). It
	// never combines with Cauchy: a recovery row is either the flat XOR
	// of every live original, a weighted Cauchy row, or a Siamese row.
	Parity bool

	// SumCount is the number of lane running sums (1-3) combined into
	// this packet.
	SumCount uint8

	// LDPCCount mirrors ColumnCount: the number of unacknowledged
	// originals folded into this row's dense step at encode time. It is
	// carried on the wire (rather than left implicit) so a decoder can
	// tell a dense+light row apart from one built over a since-shrunk
	// window without cross-checking against its own local state.
	LDPCCount uint32
}
