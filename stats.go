package siamese

// EncoderStats reports running counters for everything an encoder has
// processed.
type EncoderStats struct {
	OriginalCount    uint64
	OriginalBytes    uint64
	RecoveryCount    uint64
	RecoveryBytes    uint64
	RetransmitCount  uint64
	RetransmitBytes  uint64
	AckCount         uint64
	AckBytes         uint64
	MemoryUsed       uint64
}

// DecoderStats reports running counters for everything a decoder has
// processed.
type DecoderStats struct {
	OriginalCount       uint64
	OriginalBytes       uint64
	RecoveryCount       uint64
	RecoveryBytes       uint64
	AckCount            uint64
	AckBytes            uint64
	DupedOriginalCount  uint64
	SolveSuccessCount   uint64
	SolveFailCount      uint64
	DupedRecoveryCount  uint64
	MemoryUsed          uint64
}
