package core

import (
	"errors"
	"testing"
	"time"
)

func TestSnippet_Validate(t *testing.T) {
	tests := []struct {
		name    string
		snippet *Snippet
		wantErr error
	}{
		{
			name:    "valid snippet",
			snippet: NewSnippet("title", "content", "tag"),
			wantErr: nil,
		},
		{
			name:    "empty title",
			snippet: NewSnippet("", "content"),
			wantErr: ErrEmptyTitle,
		},
		{
			name:    "empty content",
			snippet: NewSnippet("title", ""),
			wantErr: ErrEmptyContent,
		},
		{
			name:    "empty tag",
			snippet: NewSnippet("title", "content", "ok", ""),
			wantErr: ErrEmptyTag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snippet.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidSnippet) {
				t.Errorf("Validate() = %v, want wrapped ErrInvalidSnippet", err)
			}
		})
	}
}

func TestSnippet_Touch(t *testing.T) {
	s := NewSnippet("title", "content")
	before := s.Updated
	created := s.Created

	time.Sleep(2 * time.Millisecond)
	s.Touch()

	if !s.Updated.After(before) {
		t.Error("Touch() did not advance the update timestamp")
	}
	if !s.Created.Equal(created) {
		t.Error("Touch() changed the creation timestamp")
	}
}

func TestQuery_Matches(t *testing.T) {
	item := NewSnippet("Python List", "my_list = [1, 2, 3]", "python", "data-structures")

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{name: "empty query matches", query: Query{}, want: true},
		{name: "text in title", query: QueryText("python"), want: true},
		{name: "text in content", query: QueryText("my_list"), want: true},
		{name: "text case-insensitive", query: QueryText("PYTHON"), want: true},
		{name: "text absent", query: QueryText("rust"), want: false},
		{name: "all tags present", query: QueryTags("python", "data-structures"), want: true},
		{name: "one tag missing", query: QueryTags("python", "web"), want: false},
		{name: "text and tags", query: Query{Text: "list", Tags: []string{"python"}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(item); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuery_Validate(t *testing.T) {
	if err := (Query{}).Validate(); err != nil {
		t.Errorf("zero query should validate, got %v", err)
	}
	if err := (Query{}).WithLimit(0).Validate(); err != nil {
		t.Errorf("zero limit is valid, got %v", err)
	}
	neg := -1
	if err := (Query{Limit: &neg}).Validate(); !errors.Is(err, ErrNegativeLimit) {
		t.Errorf("negative limit should fail, got %v", err)
	}
}

func TestRelationEdge_Tuple(t *testing.T) {
	from := IDFromContent("a")
	to := IDFromContent("b")
	e1 := RelationEdge{From: from, To: to, Type: "references"}
	e2 := RelationEdge{From: from, To: to, Type: "references"}
	e3 := RelationEdge{From: from, To: to, Type: "contains"}

	if e1.Tuple() != e2.Tuple() {
		t.Error("identical edges produced different tuples")
	}
	if e1.Tuple() == e3.Tuple() {
		t.Error("different edge types produced the same tuple")
	}
}
