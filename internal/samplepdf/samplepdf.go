// Package samplepdf writes a small illustrated-story PDF for trying the reader.
package samplepdf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
)

// Chapter is a heading followed by body paragraphs.
type Chapter struct {
	Title      string
	Paragraphs []string
}

// Book is the content of a sample document.
type Book struct {
	Title    string
	Chapters []Chapter
}

const (
	margin     = 72.0 // one inch, in points
	indent     = 20.0
	bodySize   = 12.0
	bodyLeader = 16.0
)

// Render lays the book out on Letter pages, each chapter starting on a
// new page, and writes the PDF to w.
func (b Book) Render(w io.Writer) error {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(margin+indent, margin, margin+indent)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(b.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i, ch := range b.Chapters {
		pdf.AddPage()
		if i == 0 {
			pdf.SetFont("Times", "B", 18)
			pdf.CellFormat(0, 30, tr(b.Title), "", 1, "C", false, 0, "")
			pdf.Ln(20)
		}
		pdf.SetFont("Times", "B", 14)
		pdf.CellFormat(0, 20, tr(ch.Title), "", 1, "L", false, 0, "")
		pdf.Ln(12)

		pdf.SetFont("Times", "", bodySize)
		for _, p := range ch.Paragraphs {
			pdf.MultiCell(0, bodyLeader, tr(p), "", "J", false)
			pdf.Ln(bodySize)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render sample pdf: %w", err)
	}
	return nil
}

// WriteFile renders the book to path, creating parent directories.
func (b Book) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.Render(f); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// Fantasy is a two-chapter fantasy story.
func Fantasy() Book {
	return Book{
		Title: "The Enchanted Forest of Eldoria",
		Chapters: []Chapter{
			{
				Title: "Chapter 1: The Mysterious Portal",
				Paragraphs: []string{
					"In the heart of the ancient kingdom of Eldoria, where mystical creatures roamed freely and magic flowed through every leaf and stone, there stood a forest unlike any other. The Enchanted Forest was said to hold secrets that could change the fate of kingdoms, and legends spoke of a hidden portal that connected worlds.",
					"Young Aria, a brave apprentice mage with flowing auburn hair and eyes that sparkled like emeralds, had always been drawn to the mysteries of the forest. Her master, the wise wizard Theron, had warned her countless times about the dangers that lurked within the shadowy depths, but curiosity burned within her heart like an unquenchable flame.",
					"On this particular morning, as golden sunlight filtered through the ancient oak trees, Aria discovered something extraordinary. A shimmering portal, its edges crackling with purple lightning, had appeared in a clearing she had visited a thousand times before. The air around it hummed with magical energy, and she could hear faint whispers calling her name.",
					"Without hesitation, and perhaps against her better judgment, Aria stepped through the portal. The world around her dissolved into swirling colors and starlight, and when her vision cleared, she found herself in a realm beyond imagination. Crystal spires reached toward a sky painted in shades of violet and gold, and in the distance, she could see magnificent dragons soaring through clouds that sparkled like diamonds.",
				},
			},
			{
				Title: "Chapter 2: The Dragon's Wisdom",
				Paragraphs: []string{
					"As Aria explored this wondrous new realm, she encountered Zephyr, an ancient dragon with scales that shimmered like liquid silver. Unlike the fearsome beasts of legend, Zephyr possessed a gentle wisdom that had been cultivated over centuries of guarding the sacred knowledge of the realm.",
					"'Young mage,' Zephyr spoke, his voice resonating like distant thunder, 'you have been chosen to restore the balance between our worlds. The portal you discovered is one of seven, and each holds a piece of the Crystal of Eternal Harmony. Without this crystal, both our realms will fall into eternal darkness.'",
					"Aria felt the weight of destiny settling upon her shoulders. She thought of her home, of Master Theron, and of all the innocent lives that would be lost if she failed. With determination blazing in her heart, she accepted the quest that would test her courage, her magical abilities, and her belief in the power of friendship and love.",
					"Thus began an adventure that would take her through enchanted valleys where flowers sang lullabies, across treacherous mountains guarded by stone giants, and into the depths of underwater cities where mermaids held ancient secrets. Each challenge would teach her something new about the magic that flowed within her and the strength that comes from believing in oneself.",
				},
			},
		},
	}
}
