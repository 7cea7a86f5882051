package siamese

import "github.com/pkg/errors"

// Sentinel result errors returned by the encoder and decoder. Callers should
// compare with errors.Is rather than direct equality, since internal plumbing
// wraps these with github.com/pkg/errors for stack context.
var (
	// ErrInvalidInput is returned when an argument violates a documented
	// precondition (zero-length data, a column before the window start, a
	// malformed footer or ack buffer, etc). Packet length has no upper
	// bound check.
	ErrInvalidInput = errors.New("siamese: invalid input")

	// ErrNeedMoreData is returned by Get-style lookups when the requested
	// packet number is not held, whether it was never seen or has already
	// been removed, and by Retransmit when no lost column is due.
	ErrNeedMoreData = errors.New("siamese: need more data")

	// ErrMaxPacketsReached is returned when adding another original packet
	// would exceed the encoder's packet number capacity. The decoder does
	// not return it.
	ErrMaxPacketsReached = errors.New("siamese: max packets reached")

	// ErrDuplicateData is returned when a packet with a column/packet
	// number already present is added again.
	ErrDuplicateData = errors.New("siamese: duplicate data")

	// ErrDisabled is returned by every error-returning call once the codec
	// instance has been latched into the emergency-disabled state.
	ErrDisabled = errors.New("siamese: disabled")
)

// disabledLatch converts every call on an instance into ErrDisabled once an
// unrecoverable internal fault has been observed: once a codec's internal
// state can no longer be trusted, every future call fails cheaply rather
// than risk silently returning bad data.
type disabledLatch struct {
	disabled bool
}

func (d *disabledLatch) isDisabled() bool {
	return d.disabled
}

// disable latches the instance. Call this from any code path that detects
// an invariant violation it cannot recover from.
func (d *disabledLatch) disable() {
	d.disabled = true
}

// checkDisabled is the first line of every public entry point that
// returns an error.
func (d *disabledLatch) checkDisabled() error {
	if d.disabled {
		return ErrDisabled
	}
	return nil
}
