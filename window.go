package siamese

// Column lanes and subwindow sizing. Every column belongs to exactly
// one lane (column % columnLaneCount); lanes keep their own running
// sums so that adding an original packet only touches one lane's state
// instead of every sum in the window.
const (
	columnLaneCount = 8
	subwindowSize   = 64

	// encoderRemoveThreshold: elements are only physically evicted from
	// the window on whole subwindow boundaries, and only once at least
	// two subwindows' worth have fallen behind firstUnremovedElement.
	encoderRemoveThreshold = 2 * subwindowSize
)

// windowElement is one slot in a subwindow: the column it was added for,
// and the packet bytes (nil if the slot was never filled, which happens
// for the lookahead slots kept ahead of Count so lane bookkeeping can
// address columns that haven't arrived yet).
type windowElement struct {
	column PacketNumber
	data   []byte
	filled bool
}

// encoderSubwindow holds subwindowSize elements, one fixed-size page of
// the overall packet window.
type encoderSubwindow struct {
	elements [subwindowSize]windowElement
}

// columnLane is the per-lane running-sum state. Sums[i] accumulates
// GetSum's fold for sumIndex i (0: plain XOR, 1: weighted by CX(column),
// 2: weighted by CX(column)^2) across every element added to the lane
// since the last ResetSums.
type columnLane struct {
	longestPacket int
	sums          [3][]byte
	sumElement    int // one past the last element folded into sums
}

// EncoderPacketWindow is the encoder's view of the original packets it
// is currently responsible for: a sliding, lane-partitioned, subwindow-
// paginated array addressed by element index (column - windowStart).
type EncoderPacketWindow struct {
	subwindows *RingBuffer[*encoderSubwindow]

	// windowStart is the column of element 0.
	windowStart PacketNumber

	// count is the number of elements ever added (including removed
	// ones): the high-water mark of the window.
	count int

	// firstUnremovedElement is the index of the oldest element still
	// logically present; RemoveBefore/RemoveElements advance this
	// without necessarily evicting subwindows right away.
	firstUnremovedElement int

	lanes [columnLaneCount]columnLane
}

// NewEncoderPacketWindow creates an empty window starting at column 0.
func NewEncoderPacketWindow() *EncoderPacketWindow {
	return &EncoderPacketWindow{
		subwindows: NewRingBuffer[*encoderSubwindow](4),
	}
}

func (w *EncoderPacketWindow) subwindowCount() int {
	return w.subwindows.Len()
}

// ensureCapacity grows the subwindow list so that element index `elem`
// (plus the lane lookahead, so lane bookkeeping can reference a few
// columns ahead of Count) has a backing subwindow.
func (w *EncoderPacketWindow) ensureCapacity(elem int) {
	for elem+columnLaneCount >= w.subwindowCount()*subwindowSize {
		w.subwindows.Push(&encoderSubwindow{})
	}
}

func (w *EncoderPacketWindow) subwindowAt(elem int) *windowElement {
	sw, _ := w.subwindowElement(elem)
	return sw
}

// subwindowElement locates the subwindow and returns a pointer to the
// element, along with the subwindow index for callers that need it.
func (w *EncoderPacketWindow) subwindowElement(elem int) (*windowElement, int) {
	idx := elem / subwindowSize
	offset := elem % subwindowSize
	var found *encoderSubwindow
	i := 0
	w.subwindows.ForEach(func(sw *encoderSubwindow) bool {
		if i == idx {
			found = sw
			return false
		}
		i++
		return true
	})
	if found == nil {
		return nil, idx
	}
	return &found.elements[offset], idx
}

// Add stores an original packet at the next available element for its
// column, extending the window if needed. Returns the element index it
// was stored at.
func (w *EncoderPacketWindow) Add(column PacketNumber, data []byte) int {
	elem := int(packetNumDiff(column, w.windowStart))
	if elem < 0 {
		// Column precedes the window start; callers are expected to
		// have already rejected this via RemoveBefore bookkeeping.
		return -1
	}
	w.ensureCapacity(elem)

	slot, _ := w.subwindowElement(elem)
	slot.column = column
	slot.data = data
	slot.filled = true

	if elem+1 > w.count {
		w.count = elem + 1
	}

	laneIndex := int(uint32(column) % columnLaneCount)
	lane := &w.lanes[laneIndex]
	if len(data) > lane.longestPacket {
		lane.longestPacket = len(data)
	}
	return elem
}

// ElementAt returns the original packet stored at absolute element index
// elem (the same indexing Add and subwindowAt use), so the light-step
// pair generator can pull arbitrary originals by position rather than
// by column. ok is false if elem is out of range or was never filled.
func (w *EncoderPacketWindow) ElementAt(elem int) (column PacketNumber, data []byte, ok bool) {
	if elem < 0 || elem >= w.count {
		return 0, nil, false
	}
	slot := w.subwindowAt(elem)
	if slot == nil || !slot.filled {
		return 0, nil, false
	}
	return slot.column, slot.data, true
}

// longestPacket returns the longest original packet currently tracked by
// any lane, the size Encode allocates a recovery payload to.
func (w *EncoderPacketWindow) longestPacket() int {
	longest := 0
	for lane := range w.lanes {
		if l := w.lanes[lane].longestPacket; l > longest {
			longest = l
		}
	}
	return longest
}

// StartNewWindow resets the window to begin at a fresh column with no
// elements, for when the encoder has no outstanding unacknowledged data
// and can drop every previous subwindow.
func (w *EncoderPacketWindow) StartNewWindow(start PacketNumber) {
	w.subwindows = NewRingBuffer[*encoderSubwindow](4)
	w.windowStart = start
	w.count = 0
	w.firstUnremovedElement = 0
	w.ResetSums()
}

// ResetSums clears every lane's running sums and longest-packet
// tracking, without touching the stored elements themselves.
func (w *EncoderPacketWindow) ResetSums() {
	for i := range w.lanes {
		w.lanes[i] = columnLane{}
	}
}

// RemoveBefore advances firstUnremovedElement up to firstKeptColumn,
// dropping every element before it from the running sums; a column at or
// before the current firstUnremovedElement is ignored. windowStart itself
// only moves once RemoveElements evicts whole subwindows. It's the bulk
// eviction entry point driven by Encoder.Acknowledge.
func (w *EncoderPacketWindow) RemoveBefore(firstKeptColumn PacketNumber) {
	delta := packetNumDiff(firstKeptColumn, w.windowStart)
	if delta <= int32(w.firstUnremovedElement) {
		return
	}
	old := w.firstUnremovedElement
	w.firstUnremovedElement = int(delta)
	w.unfoldAcknowledged(old, w.firstUnremovedElement)
	if w.firstUnremovedElement >= encoderRemoveThreshold {
		w.RemoveElements(w.firstUnremovedElement)
	}
}

// unfoldAcknowledged undoes the contribution of elements in
// [oldFirstUnremoved, newFirstUnremoved) from every lane's running sums
// that already folded them in. GF(256) addition is XOR, so re-applying
// the same fold step a second time cancels the first: once a column is
// acknowledged it must stop contributing to rows Encode builds for the
// range that starts at the new firstUnremovedElement, even though its
// bytes stay physically present until RemoveElements evicts them.
func (w *EncoderPacketWindow) unfoldAcknowledged(oldFirstUnremoved, newFirstUnremoved int) {
	for laneIndex := range w.lanes {
		lane := &w.lanes[laneIndex]
		start := oldFirstUnremoved
		if misalign := (laneIndex - start%columnLaneCount + columnLaneCount) % columnLaneCount; misalign != 0 {
			start += misalign
		}
		for elem := start; elem < newFirstUnremoved && elem < lane.sumElement; elem += columnLaneCount {
			slot := w.subwindowAt(elem)
			if slot == nil || !slot.filled {
				continue
			}
			for sumIndex := 0; sumIndex < 3; sumIndex++ {
				sum := lane.sums[sumIndex]
				if sum == nil {
					continue
				}
				switch sumIndex {
				case 0:
					AddMem(sum, slot.data)
				case 1:
					MulAdd(sum, slot.data, cx(slot.column))
				case 2:
					c := cx(slot.column)
					MulAdd(sum, slot.data, Multiply(c, c))
				}
			}
		}
	}
}

// RemoveElements physically evicts whole subwindows covering the first
// `count` elements, rotating the subwindow list and recomputing each
// lane's longest-packet bookkeeping over the elements that remain. It
// only evicts on subwindow boundaries, so removal always aligns to
// subwindowSize.
func (w *EncoderPacketWindow) RemoveElements(count int) {
	firstKeptSubwindow := count / subwindowSize
	removedElementCount := firstKeptSubwindow * subwindowSize
	if removedElementCount == 0 {
		return
	}

	for i := 0; i < firstKeptSubwindow; i++ {
		w.subwindows.Pop()
	}

	w.windowStart = w.windowStart.Add(uint32(removedElementCount))
	w.count -= removedElementCount
	if w.count < 0 {
		w.count = 0
	}
	w.firstUnremovedElement -= removedElementCount
	if w.firstUnremovedElement < 0 {
		w.firstUnremovedElement = 0
	}

	var laneLongest [columnLaneCount]int
	for elem := 0; elem < w.count; elem++ {
		slot := w.subwindowAt(elem)
		if slot == nil || !slot.filled {
			continue
		}
		laneIndex := elem % columnLaneCount
		if len(slot.data) > laneLongest[laneIndex] {
			laneLongest[laneIndex] = len(slot.data)
		}
	}
	for i := range w.lanes {
		w.lanes[i].longestPacket = laneLongest[i]
		w.lanes[i].sumElement -= removedElementCount
		if w.lanes[i].sumElement < 0 {
			w.lanes[i].sumElement = 0
		}
	}
}

// GetSum folds every unfolded element in the given lane into all three of
// that lane's running sums (0: plain XOR, 1/2: weighted by CX(column) or
// CX(column)^2), then returns the (shared, do-not-mutate-after-next-call)
// accumulated buffer for sumIndex. The fold is destructive and
// incremental: repeated calls are cheap because they only process
// elements added since the previous call.
func (w *EncoderPacketWindow) GetSum(laneIndex, sumIndex int) []byte {
	lane := &w.lanes[laneIndex]
	for s := range lane.sums {
		if lane.sums[s] == nil {
			lane.sums[s] = make([]byte, lane.longestPacket)
		} else if len(lane.sums[s]) < lane.longestPacket {
			grown := make([]byte, lane.longestPacket)
			copy(grown, lane.sums[s])
			lane.sums[s] = grown
		}
	}

	start := lane.sumElement
	if w.firstUnremovedElement > start {
		start = w.firstUnremovedElement
	}
	if misalign := (laneIndex - start%columnLaneCount + columnLaneCount) % columnLaneCount; misalign != 0 {
		start += misalign
	}
	for elem := start; elem < w.count; elem += columnLaneCount {
		slot := w.subwindowAt(elem)
		if slot == nil || !slot.filled {
			continue
		}
		c := cx(slot.column)
		AddMem(lane.sums[0], slot.data)
		MulAdd(lane.sums[1], slot.data, c)
		MulAdd(lane.sums[2], slot.data, Multiply(c, c))
	}
	lane.sumElement = w.count
	return lane.sums[sumIndex]
}

// cx maps a column number to a nonzero GF(256) coefficient. It never
// returns 0, since a zero weight would silently drop a column from a
// weighted sum.
func cx(column PacketNumber) byte {
	return byte(uint32(column)%255) + 1
}
