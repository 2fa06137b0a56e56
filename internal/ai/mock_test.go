package ai

import (
	"encoding/base64"
	"reflect"
	"strings"
	"testing"
)

func newTestMock(t *testing.T) *Mock {
	t.Helper()
	p, err := DefaultPrompts()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	return NewMock(p)
}

func TestMockDocument(t *testing.T) {
	m := newTestMock(t)
	tests := []struct {
		text   string
		genre  string
		themes []string
		mood   string
	}{
		{"The wizard began a quest with great joy.", "Fantasy", []string{"life", "experience", "story"}, "optimistic"},
		{"A robot in space faced danger.", "Science Fiction", []string{"life", "experience", "story"}, "tense"},
		{"The detective found the family secret after a death.", "Mystery", []string{"family"}, "melancholic"},
		{"Love and friendship on a journey of discovery and power.", "Romance", []string{"friendship", "power", "journey"}, "neutral"},
		{"An ancient war.", "Historical Fiction", []string{"life", "experience", "story"}, "neutral"},
		{"Nothing notable here.", "General", []string{"life", "experience", "story"}, "neutral"},
	}
	for _, tt := range tests {
		t.Run(tt.genre, func(t *testing.T) {
			got := m.Document(tt.text)
			if got.Genre != tt.genre || got.Mood != tt.mood || !reflect.DeepEqual(got.Themes, tt.themes) {
				t.Errorf("Document(%q) = %+v", tt.text, got)
			}
			if got.Title != "A "+tt.genre+" Story" {
				t.Errorf("title = %q", got.Title)
			}
		})
	}
}

func TestMockPage(t *testing.T) {
	m := newTestMock(t)

	got := m.Page("Magic filled the air, an exciting quest for power.", "Fantasy")
	if !reflect.DeepEqual(got.Themes, []string{"magic", "quest"}) || got.Mood != "joyful" {
		t.Errorf("fantasy page = %+v", got)
	}

	got = m.Page("A calm evening.", "Unknown")
	if len(got.Themes) != 1 || got.Mood != "peaceful" {
		t.Fatalf("default page = %+v", got)
	}
	defaults := []string{"experience", "knowledge", "growth", "challenge"}
	found := false
	for _, d := range defaults {
		if got.Themes[0] == d {
			found = true
		}
	}
	if !found {
		t.Errorf("theme %q not from default table", got.Themes[0])
	}
}

func TestMockIsDeterministic(t *testing.T) {
	m := newTestMock(t)
	text := "A plain page with no keywords at all."
	first := m.Page(text, "Mystery")
	for i := 0; i < 20; i++ {
		if got := m.Page(text, "Mystery"); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: %+v != %+v", i, got, first)
		}
	}
	if !reflect.DeepEqual(m.Document(text), m.Document(text)) {
		t.Error("document analysis differs between runs")
	}
}

func TestMockMarginalia(t *testing.T) {
	m := newTestMock(t)
	img := m.Marginalia("Fantasy", []string{"adventure", "magic"}, 3)
	if img.Theme != "magic" || img.Width != 80 || img.Height != 80 || img.Source != "mock" {
		t.Errorf("marginalia = %+v", img)
	}
	if img.Prompt != "Mock Fantasy marginalia for magic" {
		t.Errorf("prompt = %q", img.Prompt)
	}
	const prefix = "data:image/svg+xml;base64,"
	if !strings.HasPrefix(img.ImageURL, prefix) {
		t.Fatalf("image url = %q", img.ImageURL)
	}
	svg, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(img.ImageURL, prefix))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(string(svg), ">MAG</text>") {
		t.Errorf("svg label missing: %s", svg)
	}

	if got := m.Marginalia("Fantasy", nil, 0).Theme; got != "general" {
		t.Errorf("theme without themes = %q", got)
	}
}
