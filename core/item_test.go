package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same content produces same ID", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)
			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %s vs %s", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	if IDFromContent("content1") == IDFromContent("content2") {
		t.Error("IDFromContent() produced same ID for different content")
	}
}

func TestRegisterItemType_Duplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	RegisterItemType(SnippetItemType, decodeSnippet)
}

func TestDecodeItem_Unknown(t *testing.T) {
	_, err := DecodeItem("no-such-type", nil)
	if err == nil {
		t.Fatal("expected error for unknown item type")
	}
}

func TestSnippetRoundTrip(t *testing.T) {
	s := NewSnippet("Shell loop", "for f in *; do echo $f; done", "shell", "loop")

	data, err := s.MarshalItem()
	if err != nil {
		t.Fatalf("MarshalItem() failed: %v", err)
	}

	decoded, err := DecodeItem(s.ItemType(), data)
	if err != nil {
		t.Fatalf("DecodeItem() failed: %v", err)
	}

	got, ok := decoded.(*Snippet)
	if !ok {
		t.Fatalf("DecodeItem() returned %T, want *Snippet", decoded)
	}
	if got.Id != s.Id {
		t.Errorf("id mismatch: %s vs %s", got.Id, s.Id)
	}
	if got.Title != s.Title || got.Contents != s.Contents {
		t.Errorf("content mismatch: %+v", got)
	}
	if len(got.Tags) != 2 {
		t.Errorf("expected 2 tags, got %v", got.Tags)
	}
}
