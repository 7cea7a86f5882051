// Package siamese implements a streaming, non-block forward error
// correction codec over GF(256): an Encoder accumulates original
// packets and emits recovery packets that let a matching Decoder
// reconstruct any that are lost, without ever requiring a fixed block
// size or pause-for-synchronization point.
package siamese

// RemoveBefore drops encoder state for every column before
// firstKeptColumn directly, for callers that track acknowledgement out
// of band instead of feeding ack/NACK buffers through Acknowledge.
func (e *Encoder) RemoveBefore(firstKeptColumn PacketNumber) {
	e.window.RemoveBefore(firstKeptColumn)
}

// IsDisabled reports whether the encoder has latched into the
// emergency-disabled state and will fail every further error-returning
// call.
func (e *Encoder) IsDisabled() bool {
	return e.isDisabled()
}

// IsDisabled reports whether the decoder has latched into the
// emergency-disabled state and will fail every further error-returning
// call.
func (d *Decoder) IsDisabled() bool {
	return d.isDisabled()
}
