package siamese

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/cpu"
)

// Slab allocator tuned for the codec's actual allocation pattern: many
// similarly-sized buffers (one per original or recovery packet, roughly
// MTU-sized) that are freed in close to the order they were allocated.
// Windows are tracked as preferred (room to grow) or full, rather than
// leaning on the garbage collector for every packet buffer.
const (
	slabWindowMaxUnits       = 2048
	slabPreferredThresholdUnits = 3 * slabWindowMaxUnits / 4
	slabFallbackThresholdUnits  = slabWindowMaxUnits / 4
)

// slabUnitSize is the allocator's minimum granule: the larger of the
// cacheline size golang.org/x/sys/cpu pads to for the target
// architecture and the SIMD-friendly alignment GF(256) operations prefer.
var slabUnitSize = computeSlabUnitSize()

func computeSlabUnitSize() int {
	// golang.org/x/sys/cpu doesn't export the cache line size as a
	// constant, only as the padding struct's width; unsafe.Sizeof gives
	// us the number back.
	cacheLine := int(unsafe.Sizeof(cpu.CacheLinePad{}))
	align := PreferredAlignment()
	if align > cacheLine {
		return align
	}
	return cacheLine
}

// slabWindow is one fixed-size arena. Units are tracked with a BitSet
// rather than a raw C-style bitmask struct, and the doubly linked list
// pointers are plain Go pointers instead of intrusive header fields.
type slabWindow struct {
	buf              []byte
	used             *BitSet
	freeUnitCount    int
	resumeScanOffset int
	inFullList       bool
	next, prev       *slabWindow
}

func newSlabWindow() *slabWindow {
	w := &slabWindow{
		buf:           make([]byte, slabWindowMaxUnits*slabUnitSize),
		used:          NewBitSet(slabWindowMaxUnits),
		freeUnitCount: slabWindowMaxUnits,
	}
	return w
}

// SlabBuffer is a handle to an allocation. Data is the usable byte slice;
// the remaining fields let Free locate and release the backing units (or
// recognize a fallback allocation that bypassed the slab entirely).
type SlabBuffer struct {
	Data      []byte
	window    *slabWindow
	unitStart int
	unitCount int
	fallback  bool
	freed     bool
}

// Slab is the allocator itself. It is not safe for concurrent use,
// matching the codec's single-threaded call/return model.
type Slab struct {
	preferredHead, preferredTail *slabWindow
	preferredCount               int
	fullHead                     *slabWindow
	fullCount                    int

	usedBytes      int
	allocatedBytes int
}

// NewSlab creates an allocator with two preallocated windows, so the
// first couple of allocations don't pay for a fresh window.
func NewSlab() *Slab {
	s := &Slab{}
	for i := 0; i < 2; i++ {
		s.pushPreferredTail(newSlabWindow())
	}
	return s
}

func (s *Slab) pushPreferredTail(w *slabWindow) {
	if !w.inFullList {
		// A window coming back from the full list is already counted.
		s.allocatedBytes += len(w.buf)
	}
	w.inFullList = false
	w.prev = s.preferredTail
	w.next = nil
	if s.preferredTail != nil {
		s.preferredTail.next = w
	} else {
		s.preferredHead = w
	}
	s.preferredTail = w
	s.preferredCount++
}

func (s *Slab) removeFromPreferred(w *slabWindow) {
	if w.prev != nil {
		w.prev.next = w.next
	} else {
		s.preferredHead = w.next
	}
	if w.next != nil {
		w.next.prev = w.prev
	} else {
		s.preferredTail = w.prev
	}
	w.prev, w.next = nil, nil
	s.preferredCount--
}

func (s *Slab) pushFullHead(w *slabWindow) {
	w.inFullList = true
	w.prev = nil
	w.next = s.fullHead
	if s.fullHead != nil {
		s.fullHead.prev = w
	}
	s.fullHead = w
	s.fullCount++
}

func (s *Slab) removeFromFull(w *slabWindow) {
	if w.prev != nil {
		w.prev.next = w.next
	} else {
		s.fullHead = w.next
	}
	if w.next != nil {
		w.next.prev = w.prev
	}
	w.prev, w.next = nil, nil
	s.fullCount--
}

// moveToFull moves a preferred window to the full list after a failed
// scan, following MoveFirstFewWindowsToFull.
func (s *Slab) moveToFull(w *slabWindow) {
	s.removeFromPreferred(w)
	s.pushFullHead(w)
}

// moveToPreferred moves a full window back once it drops below the
// fallback threshold of utilization.
func (s *Slab) moveToPreferred(w *slabWindow) {
	s.removeFromFull(w)
	s.pushPreferredTail(w)
}

// Allocate returns a zero-filled buffer of at least n bytes.
func (s *Slab) Allocate(n int) (*SlabBuffer, error) {
	if n <= 0 {
		return nil, errors.Wrap(ErrInvalidInput, "slab: zero-length allocation")
	}
	unitsNeeded := (n + slabUnitSize - 1) / slabUnitSize

	if unitsNeeded > slabFallbackThresholdUnits {
		return &SlabBuffer{Data: make([]byte, n), fallback: true}, nil
	}

	for w := s.preferredHead; w != nil; {
		next := w.next
		if unitStart, ok := w.findFreeRun(unitsNeeded); ok {
			return s.commit(w, unitStart, unitsNeeded, n), nil
		}
		if w.freeUnitCount < unitsNeeded {
			s.moveToFull(w)
		}
		w = next
	}

	w := newSlabWindow()
	s.pushPreferredTail(w)
	unitStart, ok := w.findFreeRun(unitsNeeded)
	if !ok {
		// A fresh, entirely-empty window must be able to satisfy any
		// request under the fallback threshold; reaching here means the
		// thresholds above are inconsistent.
		return nil, errors.Wrap(ErrInvalidInput, "slab: request too large for a fresh window")
	}
	return s.commit(w, unitStart, unitsNeeded, n), nil
}

func (s *Slab) commit(w *slabWindow, unitStart, unitsNeeded, n int) *SlabBuffer {
	for i := unitStart; i < unitStart+unitsNeeded; i++ {
		w.used.Set(i)
	}
	w.freeUnitCount -= unitsNeeded
	if w.freeUnitCount < slabWindowMaxUnits-slabPreferredThresholdUnits && !w.inFullList {
		s.moveToFull(w)
	}
	s.usedBytes += unitsNeeded * slabUnitSize
	byteStart := unitStart * slabUnitSize
	data := w.buf[byteStart : byteStart+n]
	for i := range data {
		data[i] = 0
	}
	return &SlabBuffer{Data: data, window: w, unitStart: unitStart, unitCount: unitsNeeded}
}

// findFreeRun scans for `units` contiguous clear bits, starting from the
// window's resume-scan offset so repeated allocations don't re-scan
// already-full prefixes.
func (w *slabWindow) findFreeRun(units int) (int, bool) {
	if w.freeUnitCount < units {
		return 0, false
	}
	start := w.resumeScanOffset
	for pass := 0; pass < 2; pass++ {
		cursor := start
		for cursor+units <= slabWindowMaxUnits {
			firstSet := w.used.FindFirstSet(cursor, cursor+units)
			if firstSet == -1 {
				w.resumeScanOffset = cursor + units
				return cursor, true
			}
			cursor = firstSet + 1
		}
		start = 0 // second pass covers [0, resumeScanOffset)
	}
	return 0, false
}

// Free releases a previously allocated buffer. freed must be false on
// entry; calling Free twice on the same buffer is a bug (it would
// double-clear bits another allocation may have since claimed, and
// double-count freeUnitCount), so a re-entrant call is rejected outright
// rather than silently corrupting the window's used/free bookkeeping.
func (s *Slab) Free(b *SlabBuffer) {
	if b == nil {
		return
	}
	if b.freed {
		traceDebugf("slab: double free detected, ignoring")
		return
	}
	b.freed = true
	if b.fallback {
		return
	}
	w := b.window
	for i := b.unitStart; i < b.unitStart+b.unitCount; i++ {
		w.used.Clear(i)
	}
	w.freeUnitCount += b.unitCount
	s.usedBytes -= b.unitCount * slabUnitSize

	if b.unitStart < w.resumeScanOffset {
		w.resumeScanOffset = b.unitStart
	}
	if w.inFullList && w.freeUnitCount >= slabWindowMaxUnits-slabFallbackThresholdUnits {
		s.moveToPreferred(w)
	}
}

// MemoryUsedBytes reports bytes currently handed out (excludes fallback
// allocations and unused slab capacity).
func (s *Slab) MemoryUsedBytes() int {
	return s.usedBytes
}

// MemoryAllocatedBytes reports total bytes reserved across every window.
func (s *Slab) MemoryAllocatedBytes() int {
	return s.allocatedBytes
}
