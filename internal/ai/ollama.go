package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "llama3.1"
)

// OllamaProvider implements the Provider interface for local Ollama models.
type OllamaProvider struct {
	host      string
	model     string
	maxTokens int
	client    *http.Client
}

func newOllamaProvider(s Settings, client *http.Client) *OllamaProvider {
	p := &OllamaProvider{
		host:      defaultOllamaHost,
		model:     s.Model,
		maxTokens: s.MaxTokens,
		client:    client,
	}
	if p.model == "" {
		p.model = defaultOllamaModel
	}
	if s.BaseURL != "" {
		p.host = strings.TrimRight(s.BaseURL, "/")
	}
	return p
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Infer sends a prompt to Ollama and returns the complete response. Ollama
// only accepts base64 image data, and fetching the image would contact a host
// other than the model endpoint, so image URLs are rejected.
func (p *OllamaProvider) Infer(ctx context.Context, system string, messages []Message, opts InferOptions) (*InferResult, error) {
	if hasImages(messages) {
		return nil, fmt.Errorf("ollama: %w", ErrImagesUnsupported)
	}

	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}

	msgs := make([]ollamaMessage, 0, len(messages)+1)
	if system != "" {
		msgs = append(msgs, ollamaMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		msgs = append(msgs, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	reqBody := ollamaRequest{
		Model:    model,
		Messages: msgs,
		Stream:   false,
		Options:  &ollamaOptions{NumPredict: maxTokens(opts, p.maxTokens), Temperature: opts.Temperature},
	}

	return withRetry(ctx, func() (*InferResult, error) {
		respBody, status, err := postJSON(ctx, p.client, p.host+"/api/chat", nil, reqBody)
		if err != nil {
			if isRetryable(err) {
				return nil, &retryableError{msg: fmt.Sprintf("could not connect to Ollama at %s — is Ollama running? Start it with 'ollama serve'", p.host)}
			}
			return nil, err
		}
		if status < 200 || status > 299 {
			return nil, statusError("Ollama", status, respBody)
		}

		var apiResp ollamaResponse
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return nil, fmt.Errorf("could not parse response: %w", err)
		}
		if apiResp.Error != "" {
			return nil, fmt.Errorf("Ollama error: %s", apiResp.Error)
		}
		if apiResp.Message.Content == "" {
			return nil, fmt.Errorf("Ollama returned empty response")
		}

		return &InferResult{
			Content: apiResp.Message.Content,
			Model:   model,
		}, nil
	})
}
