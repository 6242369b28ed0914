package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, for logs
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// HashFields hashes labelled values in the given order as "label:value|..."
func HashFields(fields ...Field) Hash {
	var data strings.Builder
	for i, f := range fields {
		if i > 0 {
			data.WriteByte('|')
		}
		data.WriteString(f.Label)
		data.WriteByte(':')
		data.WriteString(fmt.Sprintf("%v", f.Value))
	}
	return NewHash([]byte(data.String()))
}

// Field is one labelled input to HashFields
type Field struct {
	Label string
	Value interface{}
}
