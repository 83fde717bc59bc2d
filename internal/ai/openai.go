package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	openaiAPIURL    = "https://api.openai.com/v1"
	defaultGPTModel = "gpt-4o"
)

// OpenAIProvider implements the Provider interface for OpenAI models and any
// endpoint that speaks the chat completions API.
type OpenAIProvider struct {
	apiKey    string
	model     string
	url       string
	maxTokens int
	client    *http.Client
}

func newOpenAIProvider(s Settings, client *http.Client) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:    s.APIKey,
		model:     s.Model,
		url:       openaiAPIURL,
		maxTokens: s.MaxTokens,
		client:    client,
	}
	if p.model == "" {
		p.model = defaultGPTModel
	}
	if s.BaseURL != "" {
		p.url = strings.TrimRight(s.BaseURL, "/")
	}
	return p
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

// openaiMessage content is either a plain string or a list of parts when
// images are attached.
type openaiMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type openaiPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Infer sends a prompt to OpenAI and returns the complete response.
func (p *OpenAIProvider) Infer(ctx context.Context, system string, messages []Message, opts InferOptions) (*InferResult, error) {
	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}

	msgs := make([]openaiMessage, 0, len(messages)+1)
	if system != "" {
		msgs = append(msgs, openaiMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		if len(m.Images) == 0 {
			msgs = append(msgs, openaiMessage{Role: m.Role, Content: m.Content})
			continue
		}
		parts := []openaiPart{{Type: "text", Text: m.Content}}
		for _, u := range m.Images {
			parts = append(parts, openaiPart{Type: "image_url", ImageURL: &openaiImageURL{URL: u}})
		}
		msgs = append(msgs, openaiMessage{Role: m.Role, Content: parts})
	}

	reqBody := openaiRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens(opts, p.maxTokens),
		Temperature: opts.Temperature,
	}

	return withRetry(ctx, func() (*InferResult, error) {
		return p.doRequest(ctx, reqBody)
	})
}

func (p *OpenAIProvider) doRequest(ctx context.Context, reqBody openaiRequest) (*InferResult, error) {
	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}
	respBody, status, err := postJSON(ctx, p.client, p.url+"/chat/completions", headers, reqBody)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("invalid API key — check your OPENAI_API_KEY environment variable or api_keys.openai setting")
	}
	if status < 200 || status > 299 {
		return nil, statusError("OpenAI API", status, respBody)
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("could not parse response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("API returned no choices")
	}

	return &InferResult{
		Content:      apiResp.Choices[0].Message.Content,
		Model:        apiResp.Model,
		InputTokens:  apiResp.Usage.PromptTokens,
		OutputTokens: apiResp.Usage.CompletionTokens,
	}, nil
}
