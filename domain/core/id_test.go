package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

func TestParseRunID(t *testing.T) {
	id := NewRunID()
	parsed, err := ParseRunID(id.String())
	if err != nil {
		t.Fatalf("ParseRunID(%q) failed: %v", id, err)
	}
	if parsed != id {
		t.Errorf("Expected %s, got %s", id, parsed)
	}

	if _, err := ParseRunID("  "); err == nil {
		t.Error("Expected error for blank run ID")
	}
	if _, err := ParseRunID("not-a-uuid"); err == nil {
		t.Error("Expected error for malformed run ID")
	}
}

func TestPolityKey(t *testing.T) {
	key := NewPolityKey("Upper Egypt", "EgOldK1")
	if key.String() != "Upper Egypt | EgOldK1" {
		t.Errorf("Unexpected key %q", key)
	}

	nga, polity, ok := key.Split()
	if !ok || nga != "Upper Egypt" || polity != "EgOldK1" {
		t.Errorf("Split returned (%q, %q, %v)", nga, polity, ok)
	}

	if _, _, ok := PolityKey("no-separator").Split(); ok {
		t.Error("Expected Split to fail without separator")
	}
}

func TestHashFieldsDeterministic(t *testing.T) {
	a := HashFields(Field{"dataset", "seshat"}, Field{"seed", 42})
	b := HashFields(Field{"dataset", "seshat"}, Field{"seed", 42})
	c := HashFields(Field{"dataset", "seshat"}, Field{"seed", 43})

	if a != b {
		t.Errorf("Hashes differ for identical input: %s vs %s", a, b)
	}
	if a == c {
		t.Error("Expected different hash for different seed")
	}
	if len(a.Short()) != 12 {
		t.Errorf("Short hash should be 12 chars, got %q", a.Short())
	}
}
