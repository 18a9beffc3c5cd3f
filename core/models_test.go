package core

import (
	"testing"
)

func TestContentHash(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"same content produces same hash", "test content"},
		{"empty content", ""},
		{"long content", "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1 := ContentHash([]byte(tt.content))
			h2 := ContentHash([]byte(tt.content))

			if h1 != h2 {
				t.Errorf("ContentHash() produced different hashes for same content: %s vs %s", h1, h2)
			}
			if len(h1) != 64 {
				t.Errorf("ContentHash() length = %d, want 64 hex chars", len(h1))
			}
		})
	}
}

func TestContentHash_Different(t *testing.T) {
	if ContentHash([]byte("content1")) == ContentHash([]byte("content2")) {
		t.Error("ContentHash() produced same hash for different content")
	}
}

func TestMakeVectorID(t *testing.T) {
	id := MakeVectorID("file-abc", 7)
	if id != "file-abc:7" {
		t.Errorf("MakeVectorID() = %s, want file-abc:7", id)
	}

	fileID, idx, err := ParseVectorID(id)
	if err != nil {
		t.Fatalf("ParseVectorID() error = %v", err)
	}
	if fileID != "file-abc" || idx != 7 {
		t.Errorf("ParseVectorID() = (%s, %d), want (file-abc, 7)", fileID, idx)
	}
}

func TestParseVectorID_Malformed(t *testing.T) {
	for _, bad := range []string{"", "nocolon", ":5", "file:", "file:notanumber", "file:-1"} {
		if _, _, err := ParseVectorID(bad); err == nil {
			t.Errorf("ParseVectorID(%q) expected error", bad)
		}
	}
}
