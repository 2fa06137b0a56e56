package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/local/marginalia/internal/layout"
	"github.com/local/marginalia/internal/metrics"
)

const (
	defaultMood     = "neutral"
	defaultGenre    = "Unknown"
	defaultTitle    = "Untitled Document"
	generalTheme    = "general"
	marginaliaSize  = 80
	documentExcerpt = 4000
	pageExcerpt     = 1000

	// one marginalia per this many characters of page text, at most maxMarginalia
	charsPerMarginalia = 500
	maxMarginalia      = 3
)

type DocumentAnalysis struct {
	Genre  string   `json:"genre"`
	Themes []string `json:"themes"`
	Mood   string   `json:"mood"`
	Title  string   `json:"title"`
}

type PageAnalysis struct {
	Themes []string `json:"themes"`
	Mood   string   `json:"mood"`
}

// MarginaliaImage is one generated decoration, before placement.
type MarginaliaImage struct {
	ImageURL string
	Prompt   string
	Theme    string
	Width    float64
	Height   float64
	Source   string // provider name or "mock"
}

// Options wires providers into an Analyzer. A nil Text or Images falls back
// to the mock for that kind of call.
type Options struct {
	Text      Client
	Images    ImageGenerator
	RateLimit float64 // requests per second, <= 0 disables limiting
	Timeout   time.Duration
	Prompts   *Prompts
}

// Analyzer classifies documents and pages and generates marginalia.
// None of its methods return errors: any provider failure degrades to the
// mock result for the same input.
type Analyzer struct {
	text    Client
	images  ImageGenerator
	prompts *Prompts
	mock    *Mock
	limiter *rate.Limiter
	timeout time.Duration
}

func NewAnalyzer(opts Options) (*Analyzer, error) {
	p := opts.Prompts
	if p == nil {
		var err error
		if p, err = DefaultPrompts(); err != nil {
			return nil, err
		}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(2 * opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Analyzer{
		text:    opts.Text,
		images:  opts.Images,
		prompts: p,
		mock:    NewMock(p),
		limiter: limiter,
		timeout: opts.Timeout,
	}, nil
}

// Mode names the text provider in use, "mock" when none is configured.
func (a *Analyzer) Mode() string {
	if a.text == nil {
		return mockSource
	}
	return a.text.Name()
}

// ImageMode names the image provider in use, "mock" when none is configured.
func (a *Analyzer) ImageMode() string {
	if a.images == nil {
		return mockSource
	}
	return a.images.Name()
}

// AnalyzeDocument labels a whole document from its first characters.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, text string) DocumentAnalysis {
	if strings.TrimSpace(text) == "" {
		return DocumentAnalysis{Genre: defaultGenre, Themes: []string{}, Mood: defaultMood, Title: defaultTitle}
	}
	if a.text == nil {
		return a.mock.Document(text)
	}

	req := Request{
		Kind:   "document",
		System: a.prompts.System(),
		Prompt: a.prompts.Document(layout.Excerpt(text, documentExcerpt)),
		JSON:   true,
	}
	var out DocumentAnalysis
	if err := a.generateJSON(ctx, req, &out); err != nil {
		log.Warn().Err(err).Str("provider", a.text.Name()).Msg("Document analysis failed, using mock")
		return a.mock.Document(text)
	}
	if out.Genre == "" && len(out.Themes) == 0 {
		log.Warn().Str("provider", a.text.Name()).Msg("Document analysis missing fields, using mock")
		return a.mock.Document(text)
	}
	if out.Genre == "" {
		out.Genre = defaultGenre
	}
	if out.Mood == "" {
		out.Mood = defaultMood
	}
	if out.Title == "" {
		out.Title = defaultTitle
	}
	out.Themes = cleanThemes(out.Themes, 5)
	log.Info().Str("provider", a.text.Name()).Str("genre", out.Genre).Msg("Document analysis completed")
	return out
}

// AnalyzePage labels one page, given the document genre.
func (a *Analyzer) AnalyzePage(ctx context.Context, text, genre string) PageAnalysis {
	if strings.TrimSpace(text) == "" {
		return PageAnalysis{Themes: []string{}, Mood: defaultMood}
	}
	if a.text == nil {
		return a.mock.Page(text, genre)
	}

	req := Request{
		Kind:   "page",
		System: a.prompts.System(),
		Prompt: a.prompts.Page(layout.Excerpt(text, pageExcerpt), genre),
		JSON:   true,
	}
	var out PageAnalysis
	if err := a.generateJSON(ctx, req, &out); err != nil {
		log.Warn().Err(err).Str("provider", a.text.Name()).Msg("Page analysis failed, using mock")
		return a.mock.Page(text, genre)
	}
	if out.Mood == "" && len(out.Themes) == 0 {
		return a.mock.Page(text, genre)
	}
	if out.Mood == "" {
		out.Mood = defaultMood
	}
	out.Themes = cleanThemes(out.Themes, 3)
	return out
}

// MarginaliaCount is the number of images a page of text gets.
func MarginaliaCount(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	n := utf8.RuneCountInString(text) / charsPerMarginalia
	return min(maxMarginalia, max(1, n))
}

// GenerateMarginalia produces the decorations for one page.
func (a *Analyzer) GenerateMarginalia(ctx context.Context, text, genre, mood string, themes []string) []MarginaliaImage {
	n := MarginaliaCount(text)
	out := make([]MarginaliaImage, 0, n)
	for i := 0; i < n; i++ {
		if a.images == nil {
			out = append(out, a.mock.Marginalia(genre, themes, i))
			continue
		}
		theme := themeFor(themes, i)
		prompt := a.prompts.Image(genre, mood, theme)
		img, err := a.generateImage(ctx, prompt)
		if err != nil {
			log.Warn().Err(err).Str("provider", a.images.Name()).Str("theme", theme).Msg("Marginalia generation failed, using mock")
			out = append(out, a.mock.Marginalia(genre, themes, i))
			continue
		}
		out = append(out, MarginaliaImage{
			ImageURL: img.DataURL(),
			Prompt:   prompt,
			Theme:    theme,
			Width:    marginaliaSize,
			Height:   marginaliaSize,
			Source:   a.images.Name(),
		})
	}
	return out
}

func (a *Analyzer) generateJSON(ctx context.Context, req Request, v any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := a.text.Do(ctx, req)
	if err == nil {
		err = json.Unmarshal([]byte(stripFences(resp.Text)), v)
		if err != nil {
			err = fmt.Errorf("invalid JSON from %s: %w", a.text.Name(), err)
		}
	}
	metrics.ObserveProvider(a.text.Name(), req.Kind, resultLabel(err), time.Since(start))
	if err == nil {
		log.Debug().Str("provider", a.text.Name()).Str("kind", req.Kind).Int("tokens_in", resp.TokensIn).Int("tokens_out", resp.TokensOut).Msg("Provider call succeeded")
	}
	return err
}

func (a *Analyzer) generateImage(ctx context.Context, prompt string) (Image, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return Image{}, fmt.Errorf("rate limiter: %w", err)
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	img, err := a.images.GenerateImage(ctx, prompt)
	metrics.ObserveProvider(a.images.Name(), "image", resultLabel(err), time.Since(start))
	return img, err
}

func (a *Analyzer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsRateLimited(err):
		return "rate_limited"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func themeFor(themes []string, i int) string {
	if len(themes) == 0 {
		return generalTheme
	}
	return themes[i%len(themes)]
}

func cleanThemes(themes []string, limit int) []string {
	out := make([]string, 0, len(themes))
	for _, t := range themes {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

// stripFences removes a surrounding ```json code fence some providers add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
