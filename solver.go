package siamese

import "sort"

// pivotRow is one row of the decoder's sparse Gaussian elimination:
// payload has absorbed every column that was already known when the row
// arrived or was reduced, and coeffs maps every other column it has a
// coefficient for. A column that becomes known after that keeps its
// entry in coeffs; solveIfReady folds it in from the window. Once
// installed, a row's own pivot column is its smallest key and that key's
// coefficient is exactly 1.
type pivotRow struct {
	meta    RecoveryMetadata
	payload []byte
	coeffs  map[PacketNumber]byte
}

// Decoder reconstructs original packets from a stream of originals and
// recovery packets via sparse Gaussian elimination. Pending recovery
// rows are kept in a map keyed by pivot column; a column becoming known
// (received directly, or solved) lets every row that still references it
// fold it away, which can in turn make a row's own pivot column solvable
// and cascade further.
type Decoder struct {
	disabledLatch

	window *DecoderPacketWindow
	stats  DecoderStats

	pivots map[PacketNumber]*pivotRow

	justRecovered []OriginalPacket
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		window: NewDecoderPacketWindow(),
		pivots: make(map[PacketNumber]*pivotRow),
	}
}

// Get looks up a packet the decoder has received or recovered, mirroring
// Encoder.Get's "keep in sync with Decoder::Get" pairing.
func (d *Decoder) Get(column PacketNumber) (OriginalPacket, error) {
	if err := d.checkDisabled(); err != nil {
		return OriginalPacket{}, err
	}
	el, ok := d.window.Get(column)
	if !ok {
		return OriginalPacket{}, ErrNeedMoreData
	}
	return OriginalPacket{Column: el.column, Data: el.data}, nil
}

// AddOriginal records a directly received original packet and returns
// any further originals that arrival let the solver recover.
func (d *Decoder) AddOriginal(column PacketNumber, data []byte) ([]OriginalPacket, error) {
	if err := d.checkDisabled(); err != nil {
		return nil, err
	}
	if d.window.Has(column) {
		d.stats.DupedOriginalCount++
		return nil, ErrDuplicateData
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	d.window.Store(column, buf, false)

	d.stats.OriginalCount++
	d.stats.OriginalBytes += uint64(len(data))

	d.justRecovered = d.justRecovered[:0]
	d.tryResolve()
	return d.justRecovered, nil
}

// AddRecovery records a recovery packet, folding every already-known
// column's contribution out of it immediately, reducing the remainder
// against existing pivot rows, and installing what's left as a new
// pivot (or discarding it if nothing's left to learn from it).
func (d *Decoder) AddRecovery(pkt RecoveryPacket) ([]OriginalPacket, error) {
	if err := d.checkDisabled(); err != nil {
		return nil, err
	}
	meta, payload, err := decodeFooter(pkt.Data)
	if err != nil {
		return nil, err
	}

	d.stats.RecoveryCount++
	d.stats.RecoveryBytes += uint64(len(pkt.Data))

	row := &pivotRow{
		meta:    meta,
		payload: append([]byte{}, payload...),
		coeffs:  make(map[PacketNumber]byte),
	}

	for i := uint32(0); i < meta.ColumnCount; i++ {
		col := meta.ColumnStart.Add(i)
		w := columnWeight(meta, col)
		if w == 0 {
			continue
		}
		if el, ok := d.window.Get(col); ok {
			MulAdd(row.payload, el.data, w)
			continue
		}
		row.coeffs[col] = w
	}

	d.justRecovered = d.justRecovered[:0]

	if len(row.coeffs) == 0 {
		d.stats.DupedRecoveryCount++
		return nil, nil
	}

	d.reduceAndInstall(row)
	d.tryResolve()
	return d.justRecovered, nil
}

// smallestColumn returns the wrap-safe-smallest column key in coeffs.
func smallestColumn(coeffs map[PacketNumber]byte) (PacketNumber, bool) {
	first := true
	var best PacketNumber
	for c := range coeffs {
		if first || packetNumLess(c, best) {
			best = c
			first = false
		}
	}
	return best, !first
}

// eliminate folds pivot's row into row, scaled by x, cancelling pivot's
// column (and propagating every other column pivot still carries a
// coefficient for) into row's own coefficient set.
func eliminate(row, pivot *pivotRow, x byte) {
	MulAdd(row.payload, pivot.payload, x)
	for c, w := range pivot.coeffs {
		nw := row.coeffs[c] ^ Multiply(x, w)
		if nw == 0 {
			delete(row.coeffs, c)
		} else {
			row.coeffs[c] = nw
		}
	}
}

// reduceAndInstall drives row down until its smallest remaining column
// either has no pivot yet (row installs there) or resolves to nothing
// (row was fully dependent on rows already known, and is discarded). Any
// column that's already directly known (but hadn't been folded in yet,
// because it became known after this row's coefficients were last
// touched) is folded away in place rather than mistaken for a pivot
// candidate.
func (d *Decoder) reduceAndInstall(row *pivotRow) {
	for {
		col, ok := smallestColumn(row.coeffs)
		if !ok {
			return
		}
		if el, known := d.window.Get(col); known {
			MulAdd(row.payload, el.data, row.coeffs[col])
			delete(row.coeffs, col)
			continue
		}
		pivot, exists := d.pivots[col]
		if !exists {
			if lead := row.coeffs[col]; lead != 1 {
				inv := Invert(lead)
				ScaleMem(row.payload, inv)
				for c, w := range row.coeffs {
					row.coeffs[c] = Multiply(w, inv)
				}
			}
			d.pivots[col] = row
			return
		}
		eliminate(row, pivot, row.coeffs[col])
	}
}

// solveIfReady checks whether row's pivot column (col) can be resolved
// from columns the decoder already knows, and if so returns its value.
func (d *Decoder) solveIfReady(row *pivotRow, col PacketNumber) ([]byte, bool) {
	residual := append([]byte{}, row.payload...)
	for c, w := range row.coeffs {
		if c == col {
			continue
		}
		el, ok := d.window.Get(c)
		if !ok {
			return nil, false
		}
		MulAdd(residual, el.data, w)
	}
	if lead := row.coeffs[col]; lead != 1 {
		ScaleMem(residual, Invert(lead))
	}
	return residual, true
}

// tryResolve repeatedly scans the pivot map for rows that are either
// stale (their pivot column arrived some other way while they waited)
// or solvable (every other column they reference is now known), looping
// until a full pass makes no progress. Columns are visited in descending
// wrap-safe order: once installed, a pivot row's coefficients only name
// its own pivot column or strictly larger ones, so solving in descending
// order guarantees every row's remaining references are already known
// or already visited by the time its turn comes.
func (d *Decoder) tryResolve() {
	for {
		cols := make([]PacketNumber, 0, len(d.pivots))
		for c := range d.pivots {
			cols = append(cols, c)
		}
		sort.Slice(cols, func(i, j int) bool { return packetNumLess(cols[j], cols[i]) })

		progress := false
		for _, col := range cols {
			row, ok := d.pivots[col]
			if !ok {
				continue
			}
			if d.window.Has(col) {
				delete(d.pivots, col)
				progress = true
				continue
			}
			value, ready := d.solveIfReady(row, col)
			if !ready {
				continue
			}
			d.window.Store(col, value, true)
			d.stats.SolveSuccessCount++
			d.justRecovered = append(d.justRecovered, OriginalPacket{Column: col, Data: value})
			delete(d.pivots, col)
			progress = true
		}
		if !progress {
			return
		}
	}
}

// IsReady reports whether every column currently inside the decoder's
// window is either already received or has a pivot row standing by that
// could, in principle, resolve it (directly or by cascading through
// other pivots). It does not itself attempt any solving; call Decode for
// that.
func (d *Decoder) IsReady() bool {
	if d.isDisabled() {
		return false
	}
	n := len(d.window.elements)
	for i := 0; i < n; i++ {
		if d.window.received.Test(i) {
			continue
		}
		col := d.window.windowStart.Add(uint32(i))
		if _, ok := d.pivots[col]; !ok {
			return false
		}
	}
	return true
}

// Decode drives the solver over the decoder's current pivot rows and
// returns whatever originals that resolves. AddOriginal and AddRecovery
// already call this opportunistically after every arrival; Decode exists
// for callers that want to batch several arrivals and then force a
// single resolution pass explicitly.
func (d *Decoder) Decode() ([]OriginalPacket, error) {
	if err := d.checkDisabled(); err != nil {
		return nil, err
	}
	d.justRecovered = d.justRecovered[:0]
	d.tryResolve()
	return d.justRecovered, nil
}

// RemoveBefore drops decoder state for columns before firstKeptColumn,
// for use once the local ack generator's window has moved on.
func (d *Decoder) RemoveBefore(firstKeptColumn PacketNumber) {
	d.window.RemoveBefore(firstKeptColumn)
}

// GenerateAck builds the ack/NACK buffer describing what the decoder has
// and hasn't received: next_column_expected is the lowest column not yet
// seen, followed by every subsequent gap as a loss range.
func (d *Decoder) GenerateAck() []byte {
	n := len(d.window.elements)
	first := d.window.received.FindFirstClear(0, n)
	if first == -1 {
		first = n
	}
	nextExpected := d.window.windowStart.Add(uint32(first))

	var ranges []LossRange
	i := first
	for i < n {
		if d.window.received.Test(i) {
			i++
			continue
		}
		start := i
		for i < n && !d.window.received.Test(i) {
			i++
		}
		ranges = append(ranges, LossRange{
			Start: d.window.windowStart.Add(uint32(start)),
			Count: uint32(i - start),
		})
	}

	data := encodeAck(nextExpected, ranges)
	d.stats.AckCount++
	d.stats.AckBytes += uint64(len(data))
	return data
}

// GetStatistics returns a snapshot of the decoder's running counters.
func (d *Decoder) GetStatistics() DecoderStats {
	s := d.stats
	memory := 0
	for _, row := range d.pivots {
		memory += len(row.payload)
	}
	for i := range d.window.elements {
		memory += len(d.window.elements[i].data)
	}
	s.MemoryUsed = uint64(memory)
	return s
}
