package siamese

import "testing"

func TestEncoderRemoveBeforeDelegatesToWindow(t *testing.T) {
	e := NewEncoder()
	for i := PacketNumber(0); i < 5; i++ {
		if err := e.Add(i, []byte{byte(i)}); err != nil {
			t.Fatalf("Add(%d) error: %v", i, err)
		}
	}
	e.RemoveBefore(3)
	if e.window.unacknowledgedCount() != 2 {
		t.Fatalf("unacknowledgedCount after RemoveBefore(3) = %d, want 2", e.window.unacknowledgedCount())
	}
}

func TestEncoderIsDisabledReflectsLatch(t *testing.T) {
	e := NewEncoder()
	if e.IsDisabled() {
		t.Fatalf("fresh encoder reports disabled")
	}
	e.disable()
	if !e.IsDisabled() {
		t.Fatalf("IsDisabled() = false after disable()")
	}
}

func TestDecoderIsDisabledReflectsLatch(t *testing.T) {
	d := NewDecoder()
	if d.IsDisabled() {
		t.Fatalf("fresh decoder reports disabled")
	}
	d.disable()
	if !d.IsDisabled() {
		t.Fatalf("IsDisabled() = false after disable()")
	}
}
