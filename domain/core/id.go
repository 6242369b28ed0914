package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// RunID identifies one training run
type RunID ID

// NewRunID creates a time-ordered run identifier
func NewRunID() RunID { return RunID(NewID()) }

func (id RunID) String() string { return ID(id).String() }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("run ID %q is not a UUID: %w", s, err)
	}
	return RunID(s), nil
}

// PolityKey identifies a polity as "<NGA> | <Polity>"
type PolityKey string

// PolityKeySeparator joins the NGA and polity name
const PolityKeySeparator = " | "

// NewPolityKey derives the composite key from its two parts
func NewPolityKey(nga, polity string) PolityKey {
	return PolityKey(nga + PolityKeySeparator + polity)
}

// Split returns the NGA and polity parts; ok is false when the key has no separator
func (k PolityKey) Split() (nga, polity string, ok bool) {
	return strings.Cut(string(k), PolityKeySeparator)
}

func (k PolityKey) String() string { return string(k) }
