package layout

import (
	"regexp"
	"strings"
)

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

// ChunkText splits text at paragraph boundaries into chunks of at most
// maxSize bytes. A single paragraph longer than maxSize is kept whole.
func ChunkText(text string, maxSize int) []string {
	if text == "" {
		return nil
	}
	if maxSize <= 0 || len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, p := range paragraphSep.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(p)+1 > maxSize {
			chunks = append(chunks, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(cur.String()))
	}
	return chunks
}

// Excerpt returns at most maxSize bytes of text, cut at the last paragraph
// boundary that fits when there is one.
func Excerpt(text string, maxSize int) string {
	if len(text) <= maxSize {
		return text
	}
	chunks := ChunkText(text, maxSize)
	if len(chunks) > 0 && len(chunks[0]) <= maxSize {
		return chunks[0]
	}
	return truncateUTF8(text, maxSize)
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
