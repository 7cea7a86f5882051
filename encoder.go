package siamese

import "github.com/pkg/errors"

// Row/lane tuning constants; see DESIGN.md's Open Question Decisions for
// the values chosen here and why.
var (
	SumResetThreshold uint32 = 32
	CauchyThreshold   uint32 = 64
)

const (
	kRowPeriod = 256

	// kCauchyMaxRows and kCauchyMaxColumns are disjoint GF(256) element
	// domains (rows occupy 1..kCauchyMaxRows, columns occupy
	// kCauchyMaxRows+1..kCauchyMaxRows+kCauchyMaxColumns) so that x XOR y
	// is never zero and every (row, column) entry is invertible. Both
	// must be at least CauchyThreshold: recovering U missing columns
	// needs U rows that haven't yet repeated (the Cauchy row counter
	// rotates through kCauchyMaxRows distinct values, and a repeated row
	// carries no new information) *and* U columns that haven't collided
	// mod kCauchyMaxColumns within a single row's span (a column's
	// Cauchy index is its own number mod kCauchyMaxColumns, so two
	// missing columns that collide there are indistinguishable on every
	// row, forever -- the defect this replaces). 120/120 leaves each
	// domain twice the default CauchyThreshold of headroom while still
	// summing well under 255.
	kCauchyMaxRows    = 120
	kCauchyMaxColumns = 120

	// kColumnSumCount is the number of per-lane running sums (plain,
	// CX-weighted, CX^2-weighted) the dense step of a Siamese row folds.
	kColumnSumCount = 3

	// kPairAddRate controls how many light-step pairs a Siamese row
	// draws: roughly one pair per kPairAddRate originals in its span.
	// The value isn't recoverable from the retrieved C++ source (the
	// file defining it wasn't part of the pack); 16 is chosen so a
	// handful of pairs touch even a small span, without the light step
	// dominating the dense step's cost for a large one. See DESIGN.md.
	kPairAddRate = 16

	rowOpcodeSalt uint64 = 0x5A17
	rowValueSalt  uint64 = 0xC0DA
)

// EncoderPacketWindow exposes firstUnremovedElement/count privately; the
// encoder reads them through these small helpers instead of duplicating
// the window's bookkeeping.
func (w *EncoderPacketWindow) unacknowledgedCount() int {
	return w.count - w.firstUnremovedElement
}

// encoderAckState tracks the most recently decoded ack so that
// Acknowledge can detect a no-op (already reflected) ack cheaply, and so
// Retransmit can iterate loss ranges without re-decoding the wire bytes
// on every call. rawAckHash lets the no-op check reject a changed ack
// without touching rawAck at all; it only falls through to the full
// byte comparison once the hash already matches.
type encoderAckState struct {
	haveAck            bool
	rawAck             []byte
	rawAckHash         uint64
	nextColumnExpected PacketNumber
	lossRanges         []LossRange
	iterRange          int
	iterColumn         PacketNumber
	iterRemaining      uint32
}

// Encoder is the streaming FEC encoder: it owns an EncoderPacketWindow
// of originals, derives recovery packets from it on demand, and tracks
// acknowledgement state so Acknowledge/Retransmit can drive eviction and
// resend decisions.
type Encoder struct {
	disabledLatch

	window *EncoderPacketWindow
	alloc  *Slab
	stats  EncoderStats

	nextRow       uint8
	nextCauchyRow uint8

	// nextParityColumn schedules the Cauchy regime's periodic flat-XOR
	// row: due once it falls at or before the current sum range's start.
	// Zero-valued at construction, which makes the very first Cauchy-
	// regime Encode call due immediately.
	nextParityColumn PacketNumber

	ack encoderAckState

	lastSendMsec map[PacketNumber]uint64
}

// NewEncoder creates an encoder with its own slab allocator.
func NewEncoder() *Encoder {
	return &Encoder{
		window:       NewEncoderPacketWindow(),
		alloc:        NewSlab(),
		lastSendMsec: make(map[PacketNumber]uint64),
	}
}

// Add submits one original packet to the encoder.
func (e *Encoder) Add(column PacketNumber, data []byte) error {
	if err := e.checkDisabled(); err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.Wrap(ErrInvalidInput, "encoder.Add: empty packet")
	}
	if e.window.count >= packetNumCount {
		return ErrMaxPacketsReached
	}

	buf, err := e.alloc.Allocate(len(data))
	if err != nil {
		e.disable()
		return errors.Wrap(err, "encoder.Add: allocation failed")
	}
	copy(buf.Data, data)

	if e.window.Add(column, buf.Data) < 0 {
		return errors.Wrap(ErrInvalidInput, "encoder.Add: column precedes window start")
	}

	e.stats.OriginalCount++
	e.stats.OriginalBytes += uint64(len(data))
	return nil
}

// Get looks up a previously submitted original packet by column. Keep
// this in sync with Decoder.Get's lookup semantics.
func (e *Encoder) Get(column PacketNumber) (OriginalPacket, error) {
	if err := e.checkDisabled(); err != nil {
		return OriginalPacket{}, err
	}
	elem := int(packetNumDiff(column, e.window.windowStart))
	if elem < 0 || elem >= e.window.count {
		return OriginalPacket{}, ErrNeedMoreData
	}
	slot := e.window.subwindowAt(elem)
	if slot == nil || !slot.filled {
		return OriginalPacket{}, ErrNeedMoreData
	}
	return OriginalPacket{Column: slot.column, Data: slot.data}, nil
}

// rowOpcode returns the dense-step combine mask for (lane, row): the low
// kColumnSumCount bits select which of the lane's running sums fold into
// the row's primary accumulator (R), the next kColumnSumCount bits
// select which fold into the secondary accumulator (P) that Encode
// scales by rowValue and folds into R as the last step. Guarded so
// neither half is ever all-zero, the same way cx never returns 0.
func rowOpcode(lane int, row uint8) byte {
	var rng pcgRandom
	rng.seed(uint64(row)<<8|uint64(lane), rowOpcodeSalt)
	draw := byte(rng.next())
	rMask := draw & 0x7
	pMask := (draw >> 3) & 0x7
	if rMask == 0 {
		rMask = 1
	}
	if pMask == 0 {
		pMask = 1
	}
	return rMask | pMask<<3
}

// rowValue returns the scalar a Siamese row's combine step multiplies
// its secondary accumulator by before folding it into the primary one.
func rowValue(row uint8) byte {
	var rng pcgRandom
	rng.seed(uint64(row), rowValueSalt)
	v := byte(rng.next())
	if v == 0 {
		v = 1
	}
	return v
}

// lightStepPairCount returns how many light-step pairs a row spanning
// count columns draws: one per kPairAddRate columns, rounded up.
func lightStepPairCount(count uint32) uint32 {
	if count == 0 {
		return 0
	}
	return (count + kPairAddRate - 1) / kPairAddRate
}

// lightStepHits replays the light-step PCG stream for a row (seeded from
// its row number and column count, exactly as addLightStepPairs seeds
// it) and reports whether column's offset from ColumnStart was drawn an
// odd number of times into the R side, the P side, or both. GF(256)
// addition is XOR, so an even number of draws for one side cancels out
// and only the parity matters; this lets the decoder recover a column's
// exact light-step contribution without replaying the XOR folds
// themselves.
func lightStepHits(meta RecoveryMetadata, column PacketNumber) (rHit, pHit bool) {
	count := meta.ColumnCount
	if count == 0 {
		return false, false
	}
	diff := packetNumDiff(column, meta.ColumnStart)
	if diff < 0 || uint32(diff) >= count {
		return false, false
	}
	offset := uint32(diff)

	var rng pcgRandom
	rng.seed(uint64(meta.Row), uint64(count))
	pairs := lightStepPairCount(count)
	for i := uint32(0); i < pairs; i++ {
		a := rng.next() % count
		b := rng.next() % count
		if a == offset {
			rHit = !rHit
		}
		if b == offset {
			pHit = !pHit
		}
	}
	return
}

// columnWeight returns the single GF(256) coefficient that column
// contributes to a recovery row described by meta, derived purely from
// the row's metadata (no access to the encoder's live lane state is
// needed). The decoder's solver uses this to cancel a now-known column
// out of a pending row's residual, and to solve for the last remaining
// column once a row is down to one unknown.
//
// A Siamese row's dense step contributes cx(column)^s for whichever
// sumIndexes rowOpcode selects into R and into P; its light step XORs in
// a flat 1 for each side column was drawn into. Encode's combine step
// folds P into R scaled by rowValue(row); GF(256) addition is XOR, so
// that combine distributes over column's contribution the same way it
// does over the full sums, letting the decoder reconstruct the combined
// coefficient without ever materializing R or P as byte buffers.
func columnWeight(meta RecoveryMetadata, column PacketNumber) byte {
	if meta.Parity {
		return 1
	}
	if meta.Cauchy {
		col := int(uint32(column) % kCauchyMaxColumns)
		return cauchyElement(meta.Row, col)
	}
	if meta.SumCount == 1 {
		// The only non-Cauchy row with SumCount==1 is the trivial
		// single-column passthrough: Encode copies that column's data
		// directly, so its weight is the multiplicative identity.
		return 1
	}

	lane := int(uint32(column) % columnLaneCount)
	opcode := rowOpcode(lane, meta.Row)
	c := cx(column)

	var crR, crP byte
	power := byte(1)
	for s := 0; s < int(meta.SumCount); s++ {
		if s > 0 {
			power = Multiply(power, c)
		}
		if opcode&(1<<s) != 0 {
			crR ^= power
		}
		if opcode&(1<<(s+3)) != 0 {
			crP ^= power
		}
	}

	rHit, pHit := lightStepHits(meta, column)
	if rHit {
		crR ^= 1
	}
	if pHit {
		crP ^= 1
	}

	return crR ^ Multiply(rowValue(meta.Row), crP)
}

// cauchyElement returns the (row, column) entry of a Cauchy matrix built
// from two disjoint GF(256) element sets: rows occupy 1..kCauchyMaxRows
// (row is the wire Row value directly -- 0 is reserved for the periodic
// parity row and never reaches here), columns occupy the
// kCauchyMaxRows+1..kCauchyMaxRows+kCauchyMaxColumns tail, so x XOR y is
// never zero and every entry is invertible. column is a Cauchy column
// index (0..kCauchyMaxColumns), not a lane: every original column in a
// row's span gets its own distinct index (its own column number mod
// kCauchyMaxColumns), matching the wire-format coefficient a decoder
// must reconstruct for that exact original.
func cauchyElement(row uint8, column int) byte {
	x := row
	y := byte(kCauchyMaxRows + 1 + column%kCauchyMaxColumns)
	return Invert(x ^ y)
}

// Encode produces the next recovery packet covering every unacknowledged
// original currently in the window. A single column needs no
// combination at all: Encode just repackages its own bytes. A small
// unacknowledged count uses the Cauchy regime, which emits a flat-XOR
// parity row whenever the range start has reached the column scheduled
// by the previous parity row (ColumnCount columns past that row's start)
// and a per-column-weighted Cauchy row otherwise. Anything larger uses the dense+light Siamese
// regime, whose rank grows with the row instead of capping out at
// kColumnSumCount distinct lanes' worth of independent equations.
func (e *Encoder) Encode() (RecoveryPacket, error) {
	if err := e.checkDisabled(); err != nil {
		return RecoveryPacket{}, err
	}
	unacked := uint32(e.window.unacknowledgedCount())
	if unacked == 0 {
		return RecoveryPacket{}, errors.Wrap(ErrInvalidInput, "encode: nothing to protect")
	}

	meta := RecoveryMetadata{
		ColumnStart: e.window.windowStart.Add(uint32(e.window.firstUnremovedElement)),
		ColumnCount: unacked,
		LDPCCount:   unacked,
	}

	var payload []byte
	switch {
	case unacked == 1:
		meta.SumCount = 1
		meta.Row = 0
		_, data, ok := e.window.ElementAt(e.window.firstUnremovedElement)
		if !ok {
			return RecoveryPacket{}, errors.Wrap(ErrInvalidInput, "encode: single unacknowledged column missing")
		}
		payload = append([]byte{}, data...)
	case unacked <= CauchyThreshold:
		// SumResetThreshold <= CauchyThreshold, so any count that would
		// otherwise collapse back to a single dense sum is already
		// handled here by the cheaper Cauchy row instead.
		meta.SumCount = 1
		if packetNumDiff(e.nextParityColumn, meta.ColumnStart) <= 0 {
			meta.Parity = true
			meta.Row = 0
			e.nextParityColumn = meta.ColumnStart.Add(unacked)
			payload = e.encodeParityRow()
		} else {
			meta.Cauchy = true
			meta.Row = e.nextCauchyRow + 1
			e.nextCauchyRow = (e.nextCauchyRow + 1) % kCauchyMaxRows
			payload = e.encodeCauchyRow(meta)
		}
	default:
		meta.SumCount = kColumnSumCount
		meta.Row = e.nextRow
		e.nextRow = uint8((uint16(e.nextRow) + 1) % kRowPeriod)
		payload = e.encodeSiameseRow(meta)
	}

	data := encodeFooter(payload, meta)

	e.stats.RecoveryCount++
	e.stats.RecoveryBytes += uint64(len(data))
	return RecoveryPacket{Data: data}, nil
}

// encodeParityRow builds the Cauchy regime's periodic row: the flat XOR
// of every live original, no scaling. Each lane's plain running sum
// (sumIndex 0) already XORs that lane's members together, and XOR over
// a partition of the columns into lanes is associative, so XORing the
// eight lanes' plain sums together gives the XOR of every column.
func (e *Encoder) encodeParityRow() []byte {
	payload := make([]byte, e.window.longestPacket())
	for lane := 0; lane < columnLaneCount; lane++ {
		AddMem(payload, e.window.GetSum(lane, 0))
	}
	return payload
}

// encodeCauchyRow builds a Cauchy-regime row: every live original gets
// its own distinct coefficient (cauchyElement keyed by that original's
// own column number, not its lane), so that no two missing columns ever
// reduce to the same scaled combination on every row. This visits
// originals individually rather than through the lane running sums,
// since each one now needs a coefficient the others don't share.
func (e *Encoder) encodeCauchyRow(meta RecoveryMetadata) []byte {
	payload := make([]byte, e.window.longestPacket())
	start := e.window.firstUnremovedElement
	for i := uint32(0); i < meta.ColumnCount; i++ {
		column, data, ok := e.window.ElementAt(start + int(i))
		if !ok {
			continue
		}
		w := cauchyElement(meta.Row, int(uint32(column)%kCauchyMaxColumns))
		MulAdd(payload, data, w)
	}
	return payload
}

// encodeSiameseRow builds a dense+light-step recovery row. The dense
// step folds each lane's running sums into R and P per rowOpcode's
// bitmask (mirroring AddDenseColumns); the light step XORs a handful of
// individual original packets sampled by the same PCG stream the
// decoder replays (mirroring AddLightColumns); the combine step folds P
// into R scaled by rowValue (mirroring the gf256_muladd_mem combine in
// Encode). Unlike the dense-only construction this replaces, the rank of
// a row grows with how many originals it spans instead of topping out
// at kColumnSumCount independent equations per lane.
func (e *Encoder) encodeSiameseRow(meta RecoveryMetadata) []byte {
	longest := e.window.longestPacket()
	r := make([]byte, longest)
	p := make([]byte, longest)

	for lane := 0; lane < columnLaneCount; lane++ {
		opcode := rowOpcode(lane, meta.Row)
		for s := 0; s < int(meta.SumCount); s++ {
			sum := e.window.GetSum(lane, s)
			if opcode&(1<<s) != 0 {
				AddMem(r, sum)
			}
			if opcode&(1<<(s+3)) != 0 {
				AddMem(p, sum)
			}
		}
	}

	e.addLightStepPairs(meta, r, p)

	MulAdd(r, p, rowValue(meta.Row))
	return r
}

// addLightStepPairs replays the light-step PCG stream seeded from
// (row, ColumnCount) and XORs each drawn original's data into r or p.
// columnWeight's lightStepHits must derive the identical draws from the
// footer alone, so the seed and the per-pair draw order here are
// normative, not just a convenient implementation.
func (e *Encoder) addLightStepPairs(meta RecoveryMetadata, r, p []byte) {
	count := meta.ColumnCount
	if count == 0 {
		return
	}
	start := e.window.firstUnremovedElement

	var rng pcgRandom
	rng.seed(uint64(meta.Row), uint64(count))
	pairs := lightStepPairCount(count)
	for i := uint32(0); i < pairs; i++ {
		a := rng.next() % count
		b := rng.next() % count
		if _, data, ok := e.window.ElementAt(start + int(a)); ok {
			AddMem(r, data)
		}
		if _, data, ok := e.window.ElementAt(start + int(b)); ok {
			AddMem(p, data)
		}
	}
}

// Acknowledge decodes an ack/NACK buffer from the far end, advancing the
// window past fully-acknowledged columns and refreshing the loss-range
// iterator Retransmit consumes. A no-op ack (identical to the last one
// processed) is detected by comparing xxhash digests first and only
// falling through to a full byte comparison if those already match, so
// repeated identical acks don't pay for a byte-by-byte scan.
func (e *Encoder) Acknowledge(ackData []byte) error {
	if err := e.checkDisabled(); err != nil {
		return err
	}
	hash := ackHash(ackData)
	if e.ack.haveAck && e.ack.rawAckHash == hash && bytesEqual(e.ack.rawAck, ackData) {
		return nil
	}

	nextExpected, ranges, err := decodeAck(ackData)
	if err != nil {
		return err
	}

	e.ack.haveAck = true
	e.ack.rawAck = append(e.ack.rawAck[:0], ackData...)
	e.ack.rawAckHash = hash
	e.ack.nextColumnExpected = nextExpected
	e.ack.lossRanges = ranges
	e.restartLossIterator()

	e.window.RemoveBefore(nextExpected)

	e.stats.AckCount++
	e.stats.AckBytes += uint64(len(ackData))
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// restartLossIterator resets Retransmit's cursor to the first loss
// range of the most recently decoded ack.
func (e *Encoder) restartLossIterator() {
	e.ack.iterRange = 0
	if len(e.ack.lossRanges) > 0 {
		e.ack.iterColumn = e.ack.lossRanges[0].Start
		e.ack.iterRemaining = e.ack.lossRanges[0].Count
	}
}

// getNextLossColumn returns the next column named by the loss-range
// iterator, restarting from the beginning once exhausted.
func (e *Encoder) getNextLossColumn() (PacketNumber, bool) {
	if len(e.ack.lossRanges) == 0 {
		return 0, false
	}
	for e.ack.iterRemaining == 0 {
		e.ack.iterRange++
		if e.ack.iterRange >= len(e.ack.lossRanges) {
			e.restartLossIterator()
			break
		}
		r := e.ack.lossRanges[e.ack.iterRange]
		e.ack.iterColumn = r.Start
		e.ack.iterRemaining = r.Count
	}
	col := e.ack.iterColumn
	e.ack.iterColumn = e.ack.iterColumn.Next()
	e.ack.iterRemaining--
	return col, true
}

// Retransmit returns the next original packet that's both reported lost
// by the peer and hasn't been resent within the last retransmitMsec
// milliseconds, gated by each column's last recorded send time.
func (e *Encoder) Retransmit(nowMsec uint64, retransmitMsec uint64) (OriginalPacket, error) {
	if err := e.checkDisabled(); err != nil {
		return OriginalPacket{}, err
	}

	seen := 0
	maxAttempts := len(e.ack.lossRanges) * 2
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	for seen < maxAttempts {
		column, ok := e.getNextLossColumn()
		if !ok {
			return OriginalPacket{}, ErrNeedMoreData
		}
		seen++

		last, sent := e.lastSendMsec[column]
		if sent && nowMsec-last < retransmitMsec {
			continue
		}

		pkt, err := e.Get(column)
		if err != nil {
			continue
		}
		e.lastSendMsec[column] = nowMsec
		e.stats.RetransmitCount++
		e.stats.RetransmitBytes += uint64(len(pkt.Data))
		return pkt, nil
	}
	return OriginalPacket{}, ErrNeedMoreData
}

// GetStatistics returns a snapshot of the encoder's running counters.
func (e *Encoder) GetStatistics() EncoderStats {
	s := e.stats
	s.MemoryUsed = uint64(e.alloc.MemoryAllocatedBytes())
	return s
}
