package ai

import (
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"html"
	"strings"
)

const mockSource = "mock"

// Mock answers every analysis call offline from keyword tables.
// Results depend only on the input, so repeated calls agree.
type Mock struct {
	t mockTables
}

func NewMock(p *Prompts) *Mock { return &Mock{t: p.file.Mock} }

func (m *Mock) Document(text string) DocumentAnalysis {
	lower := strings.ToLower(text)

	genre := firstMatch(m.t.Genres, lower, m.t.DefaultGenre)

	var themes []string
	for _, w := range m.t.Themes {
		if strings.Contains(lower, w) {
			themes = append(themes, w)
			if len(themes) == 3 {
				break
			}
		}
	}
	if len(themes) == 0 {
		themes = append([]string(nil), m.t.DefaultThemes...)
	}

	return DocumentAnalysis{
		Genre:  genre,
		Themes: themes,
		Mood:   firstMatch(m.t.Moods, lower, defaultMood),
		Title:  fmt.Sprintf("A %s Story", genre),
	}
}

func (m *Mock) Page(text, genre string) PageAnalysis {
	lower := strings.ToLower(text)

	candidates, ok := m.t.PageThemes[genre]
	if !ok {
		candidates = m.t.DefaultPageThemes
	}
	var themes []string
	for _, w := range candidates {
		if strings.Contains(lower, w) {
			themes = append(themes, w)
			if len(themes) == 2 {
				break
			}
		}
	}
	if len(themes) == 0 && len(candidates) > 0 {
		h := fnv.New32a()
		h.Write([]byte(text))
		themes = []string{candidates[h.Sum32()%uint32(len(candidates))]}
	}

	return PageAnalysis{Themes: themes, Mood: firstMatch(m.t.PageMoods, lower, defaultMood)}
}

func (m *Mock) Marginalia(genre string, themes []string, index int) MarginaliaImage {
	theme := themeFor(themes, index)
	return MarginaliaImage{
		ImageURL: placeholderSVG(theme),
		Prompt:   fmt.Sprintf("Mock %s marginalia for %s", genre, theme),
		Theme:    theme,
		Width:    marginaliaSize,
		Height:   marginaliaSize,
		Source:   mockSource,
	}
}

func firstMatch(rules []keywordRule, lower, def string) string {
	for _, r := range rules {
		for _, k := range r.Keywords {
			if strings.Contains(lower, k) {
				return r.Name
			}
		}
	}
	return def
}

// placeholderSVG renders an 80x80 tile labelled with the first three
// letters of the theme.
func placeholderSVG(theme string) string {
	label := []rune(strings.ToUpper(theme))
	if len(label) > 3 {
		label = label[:3]
	}
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="80" height="80" viewBox="0 0 80 80">`+
		`<rect width="80" height="80" rx="6" fill="#404040"/>`+
		`<text x="40" y="47" font-family="Georgia,serif" font-size="20" fill="#ffffff" text-anchor="middle">%s</text></svg>`,
		html.EscapeString(string(label)))
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}
