package knowledge

import (
	"strings"
	"testing"
)

func TestSplitTextShortInputSingleChunk(t *testing.T) {
	chunks := splitText("short text", 100, 20)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Fatalf("splitText() = %v", chunks)
	}
}

func TestSplitTextEmpty(t *testing.T) {
	if chunks := splitText("   \n ", 100, 20); chunks != nil {
		t.Fatalf("splitText(blank) = %v, want nil", chunks)
	}
}

func TestSplitTextRespectsSize(t *testing.T) {
	text := strings.Repeat("word ", 200)
	chunks := splitText(text, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("splitText() chunks = %d, want >= 2", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d length = %d, want <= 100", i, len([]rune(c)))
		}
	}
}

func TestSplitTextPrefersParagraphBoundary(t *testing.T) {
	text := "first paragraph here.\n\nsecond paragraph follows and keeps going for a while longer."
	chunks := splitText(text, 40, 0)
	if len(chunks) < 2 {
		t.Fatalf("splitText() chunks = %d, want >= 2", len(chunks))
	}
	if chunks[0] != "first paragraph here." {
		t.Fatalf("first chunk = %q", chunks[0])
	}
}

func TestSplitTextCoversAllContent(t *testing.T) {
	text := strings.Repeat("sentence one. sentence two. ", 50)
	chunks := splitText(text, 120, 30)
	joined := strings.Join(chunks, " ")
	if !strings.Contains(joined, "sentence one") || !strings.Contains(joined, "sentence two") {
		t.Fatalf("content lost in chunking")
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(strings.TrimSpace(text), last) {
		t.Fatalf("tail of input missing from last chunk: %q", last)
	}
}
