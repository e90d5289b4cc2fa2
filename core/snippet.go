package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnippetItemType is the discriminator for Snippet values.
const SnippetItemType = "snippet"

func init() {
	RegisterItemType(SnippetItemType, decodeSnippet)
}

// Snippet is a titled piece of text with an ordered set of tags and an
// optional embedding vector.
type Snippet struct {
	Id       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Contents string    `json:"content"`
	Tags     []string  `json:"tags,omitempty"`
	Vector   []float32 `json:"vector,omitempty"`
	Created  time.Time `json:"created_at"`
	Updated  time.Time `json:"updated_at"`
}

var (
	_ MemoryItem = (*Snippet)(nil)
	_ Vectorized = (*Snippet)(nil)
	_ Embeddable = (*Snippet)(nil)
	_ Stampable  = (*Snippet)(nil)
)

// NewSnippet creates a snippet with a fresh random identifier and
// current timestamps.
func NewSnippet(title, contents string, tags ...string) *Snippet {
	now := time.Now().UTC()
	return &Snippet{
		Id:       NewID(),
		Title:    title,
		Contents: contents,
		Tags:     tags,
		Created:  now,
		Updated:  now,
	}
}

// ItemID implements MemoryItem.
func (s *Snippet) ItemID() uuid.UUID { return s.Id }

// ItemType implements MemoryItem.
func (s *Snippet) ItemType() string { return SnippetItemType }

// ItemContent implements MemoryItem.
func (s *Snippet) ItemContent() string { return s.Contents }

// ItemMetadata implements MemoryItem. Title and tags are exposed so
// backends can index them without knowing the concrete type.
func (s *Snippet) ItemMetadata() map[string]any {
	md := map[string]any{
		"title": s.Title,
		"tags":  s.Tags,
	}
	if len(s.Vector) > 0 {
		md["has_embedding"] = true
	}
	return md
}

// ItemCreatedAt implements MemoryItem.
func (s *Snippet) ItemCreatedAt() time.Time { return s.Created }

// ItemUpdatedAt implements MemoryItem.
func (s *Snippet) ItemUpdatedAt() time.Time { return s.Updated }

// MarshalItem implements MemoryItem.
func (s *Snippet) MarshalItem() ([]byte, error) {
	return json.Marshal(s)
}

// EmbeddingVector implements Vectorized.
func (s *Snippet) EmbeddingVector() []float32 { return s.Vector }

// SetEmbeddingVector implements Embeddable.
func (s *Snippet) SetEmbeddingVector(v []float32) { s.Vector = v }

// StampTimes implements Stampable.
func (s *Snippet) StampTimes(created, updated time.Time) {
	s.Created = created
	s.Updated = updated
}

// Touch refreshes the update timestamp. Identity and creation time are
// never changed.
func (s *Snippet) Touch() {
	s.Updated = time.Now().UTC()
}

// Validate checks the snippet for structural problems. Returned errors
// wrap ErrInvalidSnippet and the specific field error.
func (s *Snippet) Validate() error {
	if s.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSnippet, ErrEmptyTitle)
	}
	if s.Contents == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSnippet, ErrEmptyContent)
	}
	for _, tag := range s.Tags {
		if tag == "" {
			return fmt.Errorf("%w: %w", ErrInvalidSnippet, ErrEmptyTag)
		}
	}
	return nil
}

func decodeSnippet(data []byte) (MemoryItem, error) {
	var s Snippet
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
