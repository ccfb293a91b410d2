package core

import (
	"errors"
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "test content",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "This is a much longer piece of content that should still hash consistently",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestNewDocument_Fingerprint(t *testing.T) {
	a := NewDocument("a.txt", FormatPlainText, "same text", nil)
	b := NewDocument("b.txt", FormatPlainText, "same text", nil)
	c := NewDocument("c.txt", FormatPlainText, "other text", nil)

	if a.Fingerprint != b.Fingerprint {
		t.Errorf("identical text produced different fingerprints")
	}
	if a.Fingerprint == c.Fingerprint {
		t.Errorf("different text produced the same fingerprint")
	}
}

func TestFormat_String(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatPlainText, "text"},
		{FormatMarkdown, "markdown"},
		{FormatPDF, "pdf"},
		{Format(0), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.format.String(); got != tt.want {
				t.Errorf("Format.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocument_PageAt(t *testing.T) {
	doc := &Document{Pages: []int{0, 100, 250}}

	tests := []struct {
		name   string
		offset int
		want   int
	}{
		{"start of first page", 0, 1},
		{"inside first page", 99, 1},
		{"start of second page", 100, 2},
		{"inside third page", 400, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := doc.PageAt(tt.offset); got != tt.want {
				t.Errorf("PageAt(%d) = %d, want %d", tt.offset, got, tt.want)
			}
		})
	}

	t.Run("no pages", func(t *testing.T) {
		plain := &Document{}
		if got := plain.PageAt(10); got != 0 {
			t.Errorf("PageAt() = %d, want 0", got)
		}
	})
}

func TestChunk_Overlap(t *testing.T) {
	tests := []struct {
		name string
		a, b Chunk
		want int
	}{
		{
			name: "partial overlap",
			a:    Chunk{Path: "a", Start: 0, End: 100},
			b:    Chunk{Path: "a", Start: 80, End: 180},
			want: 20,
		},
		{
			name: "contained",
			a:    Chunk{Path: "a", Start: 0, End: 100},
			b:    Chunk{Path: "a", Start: 10, End: 20},
			want: 10,
		},
		{
			name: "adjacent",
			a:    Chunk{Path: "a", Start: 0, End: 100},
			b:    Chunk{Path: "a", Start: 100, End: 200},
			want: 0,
		},
		{
			name: "different documents",
			a:    Chunk{Path: "a", Start: 0, End: 100},
			b:    Chunk{Path: "b", Start: 0, End: 100},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlap(&tt.b); got != tt.want {
				t.Errorf("Overlap() = %d, want %d", got, tt.want)
			}
			if got := tt.b.Overlap(&tt.a); got != tt.want {
				t.Errorf("Overlap() is not symmetric: %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIngestionWarning(t *testing.T) {
	cause := errors.New("embedder down")
	w := IngestionWarning{Path: "docs/a.md", ChunkID: 7, Err: cause}

	if !errors.Is(w, ErrIngestionWarning) {
		t.Errorf("warning does not match ErrIngestionWarning")
	}
	if !errors.Is(w, cause) {
		t.Errorf("warning does not unwrap to its cause")
	}
	if got, want := w.Error(), "docs/a.md: chunk 7: embedder down"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	fileLevel := NewIngestionWarning("docs/b.bin", cause)
	if got, want := fileLevel.Error(), "docs/b.bin: embedder down"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConversationTurn_Failed(t *testing.T) {
	ok := ConversationTurn{Answer: "yes"}
	failed := ConversationTurn{Err: "generation failure"}

	if ok.Failed() {
		t.Errorf("successful turn reported as failed")
	}
	if !failed.Failed() {
		t.Errorf("failed turn not reported as failed")
	}
}
