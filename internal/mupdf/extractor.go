// Package mupdf extracts per-page text and layout from PDF files with MuPDF.
package mupdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/marginalia/internal/models"
)

// Page is the extracted content of one page.
type Page struct {
	Number int // 1-based
	Width  float64
	Height float64
	Text   string
	Blocks []models.TextBlock
}

// Document is the result of extracting a whole PDF.
type Document struct {
	PageCount int
	Pages     []Page
}

// Extractor uses go-fitz, so no external MuPDF tools are needed.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Extract reads every page of the PDF at path. The number of extracted pages
// must match the page count reported by pdfcpu.
func (e *Extractor) Extract(ctx context.Context, path string) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	out := &Document{PageCount: n, Pages: make([]Page, 0, n)}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := extractPage(doc, i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		log.Debug().Int("page", page.Number).Int("blocks", len(page.Blocks)).Int("chars", len(page.Text)).Msg("Extracted page")
		out.Pages = append(out.Pages, page)
	}

	want, err := PageCount(path)
	if err != nil {
		return nil, err
	}
	if len(out.Pages) != want {
		return nil, fmt.Errorf("extracted %d pages but PDF has %d", len(out.Pages), want)
	}
	return out, nil
}

func extractPage(doc *fitz.Document, i int) (Page, error) {
	page := Page{Number: i + 1}

	if b, err := doc.Bound(i); err == nil {
		page.Width = float64(b.Dx())
		page.Height = float64(b.Dy())
	}

	html, err := doc.HTML(i, false)
	if err != nil {
		log.Warn().Err(err).Int("page", i+1).Msg("Layout extraction failed, using plain text")
	} else {
		w, h, blocks, perr := parseLayout(html, page.Width, page.Height)
		if perr != nil {
			log.Warn().Err(perr).Int("page", i+1).Msg("Failed to parse page layout")
		} else {
			page.Width, page.Height, page.Blocks = w, h, blocks
		}
	}

	if len(page.Blocks) > 0 {
		texts := make([]string, len(page.Blocks))
		for j, b := range page.Blocks {
			texts[j] = b.Text
		}
		page.Text = strings.Join(texts, "\n")
		return page, nil
	}

	raw, err := doc.Text(i)
	if err != nil {
		return page, fmt.Errorf("failed to extract text: %w", err)
	}
	page.Text = cleanText(raw)
	return page, nil
}

// PageCount returns the number of pages as reported by pdfcpu.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// cleanText drops empty lines and joins lines broken mid-sentence.
func cleanText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			lines = append(lines, t)
		}
	}

	var fixed []string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		for i+1 < len(lines) && joinsNext(line, lines[i+1]) {
			line += " " + lines[i+1]
			i++
		}
		fixed = append(fixed, line)
	}
	return strings.Join(fixed, "\n")
}

func joinsNext(line, next string) bool {
	switch line[len(line)-1] {
	case '.', '!', '?', ':', ';', '-':
		return false
	}
	return next[0] >= 'a' && next[0] <= 'z'
}
