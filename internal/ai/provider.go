package ai

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/local/marginalia/internal/config"
)

// NewFromConfig builds an Analyzer for the configured engine. A missing API
// key is not an error: the Analyzer runs on the mock instead.
func NewFromConfig(ctx context.Context, cfg config.AIConfig) (*Analyzer, func() error, error) {
	closer := func() error { return nil }
	httpClient := &http.Client{}
	opts := Options{RateLimit: cfg.RateLimit, Timeout: cfg.Timeout}

	switch cfg.Engine {
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			opts.Text = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, httpClient)
		}
	case "anthropic":
		if cfg.AnthropicAPIKey != "" {
			opts.Text = NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, httpClient)
		}
	case "mock":
	default:
		if cfg.GeminiAPIKey != "" {
			g, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiTextModel)
			if err != nil {
				return nil, closer, err
			}
			opts.Text = g
			closer = g.Close
		}
	}

	// Images always come from Gemini when a key is present, whichever engine handles text.
	if cfg.GenerateImages && cfg.GeminiAPIKey != "" && cfg.Engine != "mock" {
		opts.Images = NewGeminiImageClient(cfg.GeminiAPIKey, cfg.GeminiImageModel, httpClient)
	}

	a, err := NewAnalyzer(opts)
	if err != nil {
		_ = closer()
		return nil, func() error { return nil }, err
	}
	if opts.Text == nil {
		log.Warn().Str("engine", cfg.Engine).Msg("AI API key not found, using mock responses")
	} else {
		log.Info().Str("provider", opts.Text.Name()).Bool("images", opts.Images != nil).Msg("AI provider initialized")
	}
	return a, closer, nil
}
