package id

import (
	"strings"
	"testing"
)

func TestPrefixes(t *testing.T) {
	if !strings.HasPrefix(NewBlockID().String(), "block_") {
		t.Error("block ID missing prefix")
	}
	if !strings.HasPrefix(NewSessionID().String(), "sess_") {
		t.Error("session ID missing prefix")
	}
	if !strings.HasPrefix(NewWorkflowID().String(), "wf_") {
		t.Error("workflow ID missing prefix")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[BlockID]bool)
	for i := 0; i < 1000; i++ {
		id := NewBlockID()
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestMonotonicOrder(t *testing.T) {
	prev := NewBlockID()
	for i := 0; i < 100; i++ {
		next := NewBlockID()
		if next.String() < prev.String() {
			t.Fatalf("IDs not monotonically ordered: %s < %s", next, prev)
		}
		prev = next
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid(NewBlockID().String()) {
		t.Error("generated block ID should be valid")
	}
	if IsValid("not-an-id") {
		t.Error("garbage should not validate")
	}
	if IsValid("") {
		t.Error("empty string should not validate")
	}
}
