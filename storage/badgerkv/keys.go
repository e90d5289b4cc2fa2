package badgerkv

import (
	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"

	"github.com/poiesic/gostash/core"
)

// Key prefixes for different data types
const (
	itemPrefix     = "item"
	relationPrefix = "rel"
)

// makeItemKey generates a key for an item by ID.
// Format: prefix:uuid(16 bytes)
func makeItemKey(id uuid.UUID) []byte {
	prefix := itemPrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	copy(buf[offset:], id[:])
	return buf
}

// makeRelationKey generates a key for a relation edge.
// Format: prefix:fromID(16 bytes):tupleHash(16 bytes)
//
// The hash covers the whole (from, to, type) tuple, so storing the
// same edge twice lands on the same key and stays idempotent, while
// the from-ID segment keeps all outgoing edges of an item under one
// scannable prefix.
func makeRelationKey(edge core.RelationEdge) []byte {
	hasher, _ := blake2b.New(16, nil)
	hasher.Write([]byte(edge.Tuple()))
	sum := hasher.Sum(nil)

	prefix := relationPrefix + ":"
	buf := make([]byte, len(prefix)+16+1+16)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], edge.From[:])
	buf[offset] = ':'
	offset++
	copy(buf[offset:], sum)
	return buf
}

// makeRelationScanPrefix generates the prefix covering every outgoing
// edge of an item.
func makeRelationScanPrefix(from uuid.UUID) []byte {
	prefix := relationPrefix + ":"
	buf := make([]byte, len(prefix)+16+1)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], from[:])
	buf[offset] = ':'
	return buf
}
