package layout

import (
	"strings"
	"testing"
)

func TestChunkText(t *testing.T) {
	if got := ChunkText("", 10); got != nil {
		t.Errorf("empty text = %v, want nil", got)
	}
	if got := ChunkText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text = %v", got)
	}

	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40) + "\n \n" + strings.Repeat("c", 40)
	got := ChunkText(text, 90)
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "aaaa") || !strings.HasSuffix(got[0], "bbbb") {
		t.Errorf("first chunk = %q", got[0])
	}
	if got[1] != strings.Repeat("c", 40) {
		t.Errorf("second chunk = %q", got[1])
	}
}

func TestChunkTextKeepsOversizedParagraph(t *testing.T) {
	long := strings.Repeat("x", 50)
	got := ChunkText(long+"\n\nend", 20)
	if len(got) != 2 || got[0] != long || got[1] != "end" {
		t.Errorf("chunks = %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("abc", 10); got != "abc" {
		t.Errorf("Excerpt short = %q", got)
	}
	if got := Excerpt("para one\n\npara two is longer", 12); got != "para one" {
		t.Errorf("Excerpt paragraph = %q", got)
	}
	if got := Excerpt(strings.Repeat("é", 10), 5); got != "éé" {
		t.Errorf("Excerpt utf8 = %q", got)
	}
}
