package siamese

import "testing"

func TestPacketNumberNextWraps(t *testing.T) {
	var p PacketNumber = packetNumCount - 1
	if got := p.Next(); got != 0 {
		t.Fatalf("Next() at max = %d, want 0", got)
	}
}

func TestPacketNumberAddWraps(t *testing.T) {
	var p PacketNumber = packetNumCount - 3
	if got := p.Add(5); got != 2 {
		t.Fatalf("Add(5) = %d, want 2", got)
	}
}

func TestPacketNumDiffSimple(t *testing.T) {
	if got := packetNumDiff(10, 5); got != 5 {
		t.Fatalf("packetNumDiff(10,5) = %d, want 5", got)
	}
	if got := packetNumDiff(5, 10); got != -5 {
		t.Fatalf("packetNumDiff(5,10) = %d, want -5", got)
	}
}

func TestPacketNumDiffAcrossWrap(t *testing.T) {
	later := PacketNumber(2)
	earlier := PacketNumber(packetNumCount - 3)
	if got := packetNumDiff(later, earlier); got != 5 {
		t.Fatalf("packetNumDiff across wrap = %d, want 5", got)
	}
}

func TestPacketNumLess(t *testing.T) {
	if !packetNumLess(5, 10) {
		t.Fatalf("expected 5 < 10")
	}
	if packetNumLess(10, 5) {
		t.Fatalf("expected 10 !< 5")
	}

	later := PacketNumber(2)
	earlier := PacketNumber(packetNumCount - 3)
	if !packetNumLess(earlier, later) {
		t.Fatalf("expected wrap-around earlier < later")
	}
}
