// Package uuid includes tests for the scan id helpers.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestNewID ensures generated IDs are unique, valid and time ordered.
func TestNewID(t *testing.T) {
	t.Parallel()

	id1, err := NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	if id1 > id2 {
		t.Fatalf("expected %s to sort before %s", id1, id2)
	}
	if !Valid(id1) || !Valid(id2) {
		t.Fatalf("expected generated ids to be valid: %s %s", id1, id2)
	}
}

// TestValid rejects malformed and non-v7 ids.
func TestValid(t *testing.T) {
	t.Parallel()

	v4 := goUUID.NewString()
	for _, s := range []string{"", "scan-1", v4, "{" + v4 + "}"} {
		if Valid(s) {
			t.Fatalf("Valid(%q) = true", s)
		}
	}
}
