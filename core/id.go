package core

import (
	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID generates a fresh random identifier.
func NewID() uuid.UUID {
	return uuid.New()
}

// ParseID parses the string form of an identifier.
func ParseID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// IDFromContent generates a deterministic identifier from text content
// using BLAKE2b hashing. Identical content always produces the same ID,
// which lets ingest jobs dedupe items without a lookup first.
func IDFromContent(text string) uuid.UUID {
	h, _ := blake2b.New(16, nil) // 16 bytes = UUID size
	h.Write([]byte(text))
	var id uuid.UUID
	copy(id[:], h.Sum(nil))
	return id
}
