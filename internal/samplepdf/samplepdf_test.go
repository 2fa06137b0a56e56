package samplepdf

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/local/marginalia/internal/mupdf"
)

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	if err := Fantasy().Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("output does not start with a PDF header")
	}
}

func TestWriteFileIsReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.pdf")
	if err := Fantasy().WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	n, err := mupdf.PageCount(path)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n < 2 {
		t.Errorf("pages = %d, want at least one per chapter", n)
	}

	doc, err := mupdf.NewExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(doc.Pages[0].Text, "Eldoria") {
		t.Errorf("first page text %q missing title", doc.Pages[0].Text)
	}
}
