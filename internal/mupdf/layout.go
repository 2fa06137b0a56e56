package mupdf

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/local/marginalia/internal/models"
)

// glyphWidth approximates the average glyph advance as a fraction of the font size.
const glyphWidth = 0.5

type line struct {
	text       string
	top, left  float64
	width      float64
	lineHeight float64
}

// parseLayout reads MuPDF's positioned HTML for one page. Each <p> is a line
// with absolute top/left in points; lines are grouped into blocks by
// vertical gap. fallbackW and fallbackH are used when the page div carries
// no dimensions.
func parseLayout(html string, fallbackW, fallbackH float64) (float64, float64, []models.TextBlock, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, 0, nil, fmt.Errorf("parse layout html: %w", err)
	}

	width, height := fallbackW, fallbackH
	if div := doc.Find("div[id^=page]").First(); div.Length() > 0 {
		css := parseStyle(div.AttrOr("style", ""))
		if v, ok := css.points("width"); ok && v > 0 {
			width = v
		}
		if v, ok := css.points("height"); ok && v > 0 {
			height = v
		}
	}
	if width <= 0 || height <= 0 {
		return 0, 0, nil, fmt.Errorf("unknown page dimensions")
	}

	var lines []line
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.Join(strings.Fields(p.Text()), " ")
		if text == "" {
			return
		}
		css := parseStyle(p.AttrOr("style", ""))
		l := line{text: text}
		l.top, _ = css.points("top")
		l.left, _ = css.points("left")

		fontSize := 0.0
		estimated := 0.0
		p.Find("span").Each(func(_ int, s *goquery.Selection) {
			size, ok := parseStyle(s.AttrOr("style", "")).points("font-size")
			if !ok {
				return
			}
			fontSize = math.Max(fontSize, size)
			estimated += size * glyphWidth * float64(utf8.RuneCountInString(s.Text()))
		})
		if fontSize == 0 {
			fontSize = 12
			estimated = fontSize * glyphWidth * float64(utf8.RuneCountInString(text))
		}

		if lh, ok := css.points("line-height"); ok && lh > 0 {
			l.lineHeight = lh
		} else {
			l.lineHeight = fontSize * 1.2
		}
		if w, ok := css.points("width"); ok && w > 0 {
			l.width = w
		} else {
			l.width = estimated
		}
		l.width = math.Min(l.width, math.Max(0, width-l.left))
		lines = append(lines, l)
	})

	return width, height, groupLines(lines, width, height), nil
}

// groupLines starts a new block whenever the gap below the previous line is
// larger than the line height.
func groupLines(lines []line, pageW, pageH float64) []models.TextBlock {
	if len(lines) == 0 {
		return nil
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].top < lines[j].top })

	var blocks []models.TextBlock
	var texts []string
	var x0, y0, x1, y1 float64

	flush := func() {
		if len(texts) == 0 {
			return
		}
		blocks = append(blocks, models.TextBlock{
			Text: strings.Join(texts, " "),
			BBox: [4]float64{x0, y0, x1, y1},
			RelativePosition: models.Rect{
				X:      x0 / pageW * 100,
				Y:      y0 / pageH * 100,
				Width:  (x1 - x0) / pageW * 100,
				Height: (y1 - y0) / pageH * 100,
			},
		})
		texts = nil
	}

	for _, l := range lines {
		bottom := l.top + l.lineHeight
		if len(texts) > 0 && l.top-y1 > l.lineHeight {
			flush()
		}
		if len(texts) == 0 {
			x0, y0, x1, y1 = l.left, l.top, l.left+l.width, bottom
		} else {
			x0 = math.Min(x0, l.left)
			x1 = math.Max(x1, l.left+l.width)
			y1 = math.Max(y1, bottom)
		}
		texts = append(texts, l.text)
	}
	flush()
	return blocks
}

type style map[string]string

func parseStyle(s string) style {
	out := style{}
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// points returns a length in points; px values are converted at 96dpi.
func (s style) points(key string) (float64, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	scale := 1.0
	switch {
	case strings.HasSuffix(v, "pt"):
		v = strings.TrimSuffix(v, "pt")
	case strings.HasSuffix(v, "px"):
		v = strings.TrimSuffix(v, "px")
		scale = 0.75
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f * scale, true
}
