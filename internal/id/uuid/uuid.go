// Package uuid generates and checks the time-ordered identifiers given to scans.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a UUIDv7 string. Ids generated later sort after earlier ones.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Valid reports whether s is a canonical UUIDv7 string.
func Valid(s string) bool {
	id, err := uuid.Parse(s)
	if err != nil || len(s) != 36 {
		return false
	}
	return id.Version() == 7
}
