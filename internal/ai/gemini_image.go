package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiImageClient calls generateContent over REST because the SDK does not
// expose response modalities.
type GeminiImageClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

func NewGeminiImageClient(apiKey, model string, httpClient *http.Client) *GeminiImageClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GeminiImageClient{http: httpClient, apiKey: apiKey, model: model, baseURL: geminiBaseURL}
}

func (c *GeminiImageClient) Name() string { return "gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateReq struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
	} `json:"generationConfig"`
}

type geminiGenerateResp struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiImageClient) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	var payload geminiGenerateReq
	payload.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}
	payload.GenerationConfig.ResponseModalities = []string{"TEXT", "IMAGE"}

	body, _ := json.Marshal(payload)
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Image{}, err
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()
	if err := checkStatus(c.Name(), resp); err != nil {
		return Image{}, err
	}

	var r geminiGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Image{}, err
	}
	for _, cand := range r.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return Image{}, fmt.Errorf("decode inline image: %w", err)
			}
			return Image{MIMEType: part.InlineData.MIMEType, Data: data}, nil
		}
	}
	return Image{}, ErrEmptyResponse
}
