package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	anthropicAPIURL       = "https://api.anthropic.com"
	anthropicAPIVersion   = "2023-06-01"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
)

// AnthropicProvider implements the Provider interface for Anthropic's Claude models.
type AnthropicProvider struct {
	apiKey    string
	model     string
	url       string
	maxTokens int
	client    *http.Client
}

func newAnthropicProvider(s Settings, client *http.Client) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:    s.APIKey,
		model:     s.Model,
		url:       anthropicAPIURL,
		maxTokens: s.MaxTokens,
		client:    client,
	}
	if p.model == "" {
		p.model = defaultAnthropicModel
	}
	if s.BaseURL != "" {
		p.url = strings.TrimRight(s.BaseURL, "/")
	}
	return p
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Infer sends a prompt to Claude and returns the complete response.
func (p *AnthropicProvider) Infer(ctx context.Context, system string, messages []Message, opts InferOptions) (*InferResult, error) {
	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}

	msgs := make([]anthropicMessage, len(messages))
	for i, m := range messages {
		blocks := make([]anthropicBlock, 0, len(m.Images)+1)
		for _, u := range m.Images {
			blocks = append(blocks, anthropicBlock{Type: "image", Source: &anthropicSource{Type: "url", URL: u}})
		}
		blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Content})
		msgs[i] = anthropicMessage{Role: m.Role, Content: blocks}
	}

	reqBody := anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens(opts, p.maxTokens),
		System:      system,
		Messages:    msgs,
		Temperature: opts.Temperature,
	}

	return withRetry(ctx, func() (*InferResult, error) {
		return p.doRequest(ctx, reqBody)
	})
}

func (p *AnthropicProvider) doRequest(ctx context.Context, reqBody anthropicRequest) (*InferResult, error) {
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}
	respBody, status, err := postJSON(ctx, p.client, p.url+"/v1/messages", headers, reqBody)
	if err != nil {
		return nil, err
	}

	var apiResp anthropicResponse
	parseErr := json.Unmarshal(respBody, &apiResp)

	if status == http.StatusUnauthorized || (apiResp.Error != nil && apiResp.Error.Type == "authentication_error") {
		return nil, fmt.Errorf("invalid API key — check your ANTHROPIC_API_KEY environment variable or api_keys.anthropic setting")
	}
	if status < 200 || status > 299 {
		if apiResp.Error != nil && status < 500 && status != http.StatusTooManyRequests {
			return nil, fmt.Errorf("API error (%s): %s", apiResp.Error.Type, apiResp.Error.Message)
		}
		return nil, statusError("Anthropic API", status, respBody)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("could not parse API response: %w", parseErr)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("API returned empty response")
	}

	return &InferResult{
		Content:      text.String(),
		Model:        apiResp.Model,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}, nil
}
