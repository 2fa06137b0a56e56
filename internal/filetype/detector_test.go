package filetype

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

var minimalPDF = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << /Root 1 0 R >>\n%%EOF\n")

func TestAllowedName(t *testing.T) {
	d := New()
	tests := []struct {
		name string
		want bool
	}{
		{"book.pdf", true},
		{"BOOK.PDF", true},
		{"archive.tar.pdf", true},
		{"notes.txt", false},
		{"pdf", false},
		{"", false},
		{"book.pdf.exe", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.AllowedName(tt.name); got != tt.want {
				t.Errorf("AllowedName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	d := New()

	info, err := d.Detect(bytes.NewReader(minimalPDF))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !info.Supported || info.MIMEType != "application/pdf" {
		t.Errorf("pdf info = %+v", info)
	}

	info, err = d.Detect(bytes.NewReader([]byte("just some text pretending to be a pdf")))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if info.Supported {
		t.Errorf("plain text should be unsupported, got %+v", info)
	}
}

func TestDetectFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.pdf")
	if err := os.WriteFile(p, minimalPDF, 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := New().DetectFile(p)
	if err != nil {
		t.Fatalf("detect file: %v", err)
	}
	if !info.Supported {
		t.Errorf("expected supported pdf, got %+v", info)
	}
}
