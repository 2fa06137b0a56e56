package ai

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type keywordRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type mockTables struct {
	Genres            []keywordRule       `yaml:"genres"`
	DefaultGenre      string              `yaml:"default_genre"`
	Themes            []string            `yaml:"themes"`
	DefaultThemes     []string            `yaml:"default_themes"`
	Moods             []keywordRule       `yaml:"moods"`
	PageThemes        map[string][]string `yaml:"page_themes"`
	DefaultPageThemes []string            `yaml:"default_page_themes"`
	PageMoods         []keywordRule       `yaml:"page_moods"`
}

type promptFile struct {
	System            string            `yaml:"system"`
	Document          string            `yaml:"document"`
	Page              string            `yaml:"page"`
	Image             string            `yaml:"image"`
	GenreStyles       map[string]string `yaml:"genre_styles"`
	DefaultGenreStyle string            `yaml:"default_genre_style"`
	MoodStyles        map[string]string `yaml:"mood_styles"`
	DefaultMoodStyle  string            `yaml:"default_mood_style"`
	Mock              mockTables        `yaml:"mock"`
}

// Prompts renders provider prompts from the embedded templates.
type Prompts struct {
	system   string
	document *template.Template
	page     *template.Template
	image    *template.Template
	file     promptFile
}

// LoadPrompts parses prompt templates and keyword tables from YAML.
func LoadPrompts(data []byte) (*Prompts, error) {
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	p := &Prompts{system: strings.TrimSpace(f.System), file: f}
	var err error
	if p.document, err = template.New("document").Parse(f.Document); err != nil {
		return nil, fmt.Errorf("document prompt: %w", err)
	}
	if p.page, err = template.New("page").Parse(f.Page); err != nil {
		return nil, fmt.Errorf("page prompt: %w", err)
	}
	if p.image, err = template.New("image").Parse(f.Image); err != nil {
		return nil, fmt.Errorf("image prompt: %w", err)
	}
	return p, nil
}

// DefaultPrompts returns the embedded prompt set.
func DefaultPrompts() (*Prompts, error) { return LoadPrompts(promptsYAML) }

func (p *Prompts) System() string { return p.system }

func (p *Prompts) Document(text string) string {
	return render(p.document, map[string]string{"Text": text})
}

func (p *Prompts) Page(text, genre string) string {
	return render(p.page, map[string]string{"Text": text, "Genre": genre})
}

// Image builds a marginalia prompt styled by genre and mood.
func (p *Prompts) Image(genre, mood, theme string) string {
	style, ok := p.file.GenreStyles[genre]
	if !ok {
		style = p.file.DefaultGenreStyle
	}
	moodStyle, ok := p.file.MoodStyles[mood]
	if !ok {
		moodStyle = p.file.DefaultMoodStyle
	}
	return render(p.image, map[string]string{"Style": style, "MoodStyle": moodStyle, "Theme": theme})
}

func render(t *template.Template, data map[string]string) string {
	var b strings.Builder
	// Templates only reference string keys of data; execution cannot fail.
	_ = t.Execute(&b, data)
	return strings.TrimSpace(b.String())
}
