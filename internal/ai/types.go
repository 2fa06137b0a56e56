package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Request is a single text-generation call.
type Request struct {
	Kind   string // "document" or "page", used for metrics and logs
	Model  string
	System string
	Prompt string
	JSON   bool // ask the provider for a JSON object
}

type Response struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Client is a text provider like Gemini, OpenAI, Anthropic.
type Client interface {
	Name() string
	Do(ctx context.Context, req Request) (Response, error)
}

// Image is raw image bytes returned by a provider.
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURL encodes the image for direct use in an <img src>.
func (i Image) DataURL() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ImageGenerator produces a single image from a prompt.
type ImageGenerator interface {
	Name() string
	GenerateImage(ctx context.Context, prompt string) (Image, error)
}

var (
	ErrRateLimited   = errors.New("rate_limited")
	ErrEmptyResponse = errors.New("empty_response")
)

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// HTTPError is a non-2xx provider response.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrRateLimited) match 429 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// checkStatus turns a non-2xx response into an *HTTPError carrying a body excerpt.
func checkStatus(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &HTTPError{Provider: provider, StatusCode: resp.StatusCode, Body: string(b)}
}
