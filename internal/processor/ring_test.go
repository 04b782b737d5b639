package processor

import (
	"fmt"
	"testing"
)

func TestLogRingEvictsOldest(t *testing.T) {
	ring := newLogRing(3)
	for i := 1; i <= 5; i++ {
		ring.Append(fmt.Sprintf("line %d", i))
	}
	lines := ring.Lines(0)
	want := []string{"line 3", "line 4", "line 5"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %v", len(want), lines)
	}
	for i, line := range want {
		if lines[i] != line {
			t.Errorf("line %d: expected %q, got %q", i, line, lines[i])
		}
	}
}

func TestLogRingLimitReturnsNewestOldestFirst(t *testing.T) {
	ring := newLogRing(10)
	for i := 1; i <= 4; i++ {
		ring.Append(fmt.Sprintf("line %d", i))
	}
	lines := ring.Lines(2)
	if len(lines) != 2 || lines[0] != "line 3" || lines[1] != "line 4" {
		t.Fatalf("unexpected tail: %v", lines)
	}
}

func TestLogRingClear(t *testing.T) {
	ring := newLogRing(4)
	ring.Append("one")
	ring.Clear()
	if lines := ring.Lines(0); len(lines) != 0 {
		t.Fatalf("expected empty ring, got %v", lines)
	}
	ring.Append("two")
	if lines := ring.Lines(0); len(lines) != 1 || lines[0] != "two" {
		t.Fatalf("expected ring to accept lines after clear, got %v", lines)
	}
}
