package siamese

import (
	"bytes"
	"testing"
)

func TestDecoderWindowStoreAndGet(t *testing.T) {
	w := NewDecoderPacketWindow()
	if w.Has(5) {
		t.Fatalf("fresh window reports column 5 as known")
	}

	w.Store(5, []byte{1, 2, 3}, false)
	if !w.Has(5) {
		t.Fatalf("Has(5) false after Store")
	}

	el, ok := w.Get(5)
	if !ok {
		t.Fatalf("Get(5) failed after Store")
	}
	if !bytes.Equal(el.data, []byte{1, 2, 3}) {
		t.Fatalf("Get(5).data = %x, want 01 02 03", el.data)
	}
	if el.recovered {
		t.Fatalf("element marked recovered, should be false for a directly stored original")
	}
}

func TestDecoderWindowGetMissingColumnFails(t *testing.T) {
	w := NewDecoderPacketWindow()
	w.Store(0, []byte{1}, false)
	if _, ok := w.Get(1); ok {
		t.Fatalf("Get(1) succeeded for a column never stored")
	}
}

func TestDecoderWindowRemoveBeforeShiftsIndices(t *testing.T) {
	w := NewDecoderPacketWindow()
	for i := PacketNumber(0); i < 10; i++ {
		w.Store(i, []byte{byte(i)}, false)
	}
	w.RemoveBefore(5)

	if w.windowStart != 5 {
		t.Fatalf("windowStart = %d, want 5", w.windowStart)
	}
	el, ok := w.Get(5)
	if !ok || el.data[0] != 5 {
		t.Fatalf("Get(5) after RemoveBefore(5) = %+v, ok=%v", el, ok)
	}
	if _, ok := w.Get(9); !ok {
		t.Fatalf("Get(9) should still succeed after RemoveBefore(5)")
	}
}

func TestDecoderWindowHasBeforeWindowStartTreatedAsKnown(t *testing.T) {
	w := NewDecoderPacketWindow()
	for i := PacketNumber(0); i < 10; i++ {
		w.Store(i, []byte{byte(i)}, false)
	}
	w.RemoveBefore(5)

	if !w.Has(0) {
		t.Fatalf("evicted column 0 should read as known/already-seen")
	}
}

func TestDecoderWindowRecoveredFlag(t *testing.T) {
	w := NewDecoderPacketWindow()
	w.Store(3, []byte{9, 9}, true)
	el, ok := w.Get(3)
	if !ok || !el.recovered {
		t.Fatalf("expected recovered=true, got %+v ok=%v", el, ok)
	}
}
