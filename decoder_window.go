package siamese

// decoderElement is one column's worth of data in the decoder's window,
// either handed in directly by AddOriginal or reconstructed by the
// solver.
type decoderElement struct {
	column    PacketNumber
	data      []byte
	recovered bool
}

// DecoderPacketWindow is the decoder-side mirror of EncoderPacketWindow.
// Unlike the encoder side it carries no per-lane running sums -- the
// decoder never needs to build a combination, only to store what it has
// and test what it's missing -- so it's a flat growable array plus a
// received-set bitset rather than a subwindow/lane structure.
type DecoderPacketWindow struct {
	windowStart PacketNumber
	elements    []decoderElement
	received    *BitSet
}

// NewDecoderPacketWindow creates an empty window starting at column 0.
func NewDecoderPacketWindow() *DecoderPacketWindow {
	return &DecoderPacketWindow{
		received: NewBitSet(subwindowSize),
	}
}

func (w *DecoderPacketWindow) elem(column PacketNumber) int {
	return int(packetNumDiff(column, w.windowStart))
}

func (w *DecoderPacketWindow) ensure(elem int) {
	if elem < len(w.elements) {
		return
	}
	grown := make([]decoderElement, elem+1)
	copy(grown, w.elements)
	w.elements = grown
	w.received.Grow(elem + 1)
}

// Has reports whether column has been received or recovered already.
func (w *DecoderPacketWindow) Has(column PacketNumber) bool {
	e := w.elem(column)
	if e < 0 {
		return true // already evicted; treat as "known" so callers don't re-request it
	}
	return w.received.Test(e)
}

// Get returns the stored element for column, if any.
func (w *DecoderPacketWindow) Get(column PacketNumber) (decoderElement, bool) {
	e := w.elem(column)
	if e < 0 || e >= len(w.elements) {
		return decoderElement{}, false
	}
	if !w.received.Test(e) {
		return decoderElement{}, false
	}
	return w.elements[e], true
}

// Store records data for column, either as a directly received original
// or as solver output (recovered=true).
func (w *DecoderPacketWindow) Store(column PacketNumber, data []byte, recovered bool) {
	e := w.elem(column)
	if e < 0 {
		return
	}
	w.ensure(e)
	w.elements[e] = decoderElement{column: column, data: data, recovered: recovered}
	w.received.Set(e)
}

// RemoveBefore drops every element before firstKeptColumn, shifting the
// remaining elements down to keep index 0 aligned with windowStart. This
// is the decoder-side analogue of EncoderPacketWindow.RemoveBefore; it's
// a plain slice shift rather than a subwindow rotation since the decoder
// has no per-lane state to recompute afterward.
func (w *DecoderPacketWindow) RemoveBefore(firstKeptColumn PacketNumber) {
	delta := packetNumDiff(firstKeptColumn, w.windowStart)
	if delta <= 0 {
		return
	}
	shift := int(delta)
	if shift >= len(w.elements) {
		w.elements = nil
	} else {
		w.elements = append([]decoderElement{}, w.elements[shift:]...)
	}
	w.windowStart = w.windowStart.Add(uint32(shift))

	shifted := NewBitSet(len(w.elements))
	for i := 0; i < len(w.elements); i++ {
		if w.elements[i].data != nil {
			shifted.Set(i)
		}
	}
	w.received = shifted
}
