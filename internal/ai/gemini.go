package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiClient is the text provider backed by the Gemini SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiClient, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	c, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: c, model: model}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Close() error { return c.client.Close() }

func (c *GeminiClient) Do(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	m := c.client.GenerativeModel(model)
	if req.System != "" {
		m.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.JSON {
		m.ResponseMIMEType = "application/json"
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return Response{}, &HTTPError{Provider: c.Name(), StatusCode: gerr.Code, Body: gerr.Message}
		}
		if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
			return Response{}, &HTTPError{Provider: c.Name(), StatusCode: http.StatusTooManyRequests, Body: err.Error()}
		}
		return Response{}, fmt.Errorf("gemini generate: %w", err)
	}

	var text strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}
	if text.Len() == 0 {
		return Response{}, ErrEmptyResponse
	}

	out := Response{Text: text.String()}
	if u := resp.UsageMetadata; u != nil {
		out.TokensIn = int(u.PromptTokenCount)
		out.TokensOut = int(u.CandidatesTokenCount)
	}
	return out, nil
}
