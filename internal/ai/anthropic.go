package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const anthropicBaseURL = "https://api.anthropic.com/v1"

type AnthropicClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

func NewAnthropicClient(apiKey, model string, httpClient *http.Client) *AnthropicClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &AnthropicClient{http: httpClient, apiKey: apiKey, model: model, baseURL: anthropicBaseURL}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMsgReq struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMsgResp struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *AnthropicClient) Do(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	prompt := req.Prompt
	if req.JSON {
		prompt += "\n\nReturn a single JSON object and nothing else."
	}
	payload := anthropicMsgReq{
		Model:     model,
		MaxTokens: 1024,
		System:    req.System,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}

	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	if err := checkStatus(c.Name(), resp); err != nil {
		return Response{}, err
	}

	var r anthropicMsgResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Response{}, err
	}
	var text strings.Builder
	for _, part := range r.Content {
		if part.Type == "" || part.Type == "text" {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return Response{}, ErrEmptyResponse
	}
	return Response{Text: text.String(), TokensIn: r.Usage.InputTokens, TokensOut: r.Usage.OutputTokens}, nil
}
