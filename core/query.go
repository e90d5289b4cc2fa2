package core

import (
	"slices"
	"strings"
)

// Query describes filter criteria for listing memory items. The zero
// value matches everything up to the backend's default result cap.
type Query struct {
	// Text, when non-empty, requires a case-insensitive substring match
	// over the item's title or content.
	Text string

	// Tags, when non-empty, requires the item to carry every listed tag.
	Tags []string

	// Limit caps the number of results. Nil means the backend's default
	// cap; an explicit zero means "return nothing".
	Limit *int
}

// QueryText creates a query with the given text filter.
func QueryText(text string) Query {
	return Query{Text: text}
}

// QueryTags creates a query requiring all of the given tags.
func QueryTags(tags ...string) Query {
	return Query{Tags: tags}
}

// WithTags returns a copy of the query additionally requiring all of
// the given tags.
func (q Query) WithTags(tags ...string) Query {
	q.Tags = append(slices.Clone(q.Tags), tags...)
	return q
}

// WithLimit returns a copy of the query with an explicit result cap.
func (q Query) WithLimit(n int) Query {
	q.Limit = &n
	return q
}

// Validate checks the query parameters.
func (q Query) Validate() error {
	if q.Limit != nil && *q.Limit < 0 {
		return ErrNegativeLimit
	}
	return nil
}

// Matches reports whether an item satisfies the text and tag filters.
// The limit is intentionally not applied here; backends apply it after
// filtering. Used by backends that evaluate queries with a full scan.
func (q Query) Matches(item MemoryItem) bool {
	if q.Text != "" {
		needle := strings.ToLower(q.Text)
		title, _ := item.ItemMetadata()["title"].(string)
		if !strings.Contains(strings.ToLower(title), needle) &&
			!strings.Contains(strings.ToLower(item.ItemContent()), needle) {
			return false
		}
	}
	if len(q.Tags) > 0 {
		tags := MetadataTags(item)
		for _, want := range q.Tags {
			if !slices.Contains(tags, want) {
				return false
			}
		}
	}
	return true
}

// MetadataTags extracts the tag list from an item's metadata. Metadata
// round-tripped through JSON carries tags as []any, so both shapes are
// accepted.
func MetadataTags(item MemoryItem) []string {
	switch v := item.ItemMetadata()["tags"].(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	default:
		return nil
	}
}

// MetadataTitle extracts the title from an item's metadata, if present.
func MetadataTitle(item MemoryItem) string {
	title, _ := item.ItemMetadata()["title"].(string)
	return title
}
