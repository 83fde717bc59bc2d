// Package ai provides a unified interface to the LLM providers a run can be
// configured against.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Message represents a single message in a conversation with an AI model.
type Message struct {
	Role    string   `json:"role"` // "user" or "assistant"
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // image URLs, forwarded as-is
}

// InferOptions configures a single inference call.
type InferOptions struct {
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// InferResult holds the response from an inference call.
type InferResult struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"inputTokens,omitempty"`
	OutputTokens int    `json:"outputTokens,omitempty"`
}

// Provider defines the interface that all AI backends must implement.
type Provider interface {
	// Infer sends a prompt and returns the complete response.
	Infer(ctx context.Context, system string, messages []Message, opts InferOptions) (*InferResult, error)

	// Name returns the provider identifier.
	Name() string
}

// ErrImagesUnsupported is returned by providers that cannot accept image URLs.
var ErrImagesUnsupported = errors.New("provider does not support image input")

// Settings selects and configures a provider.
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the provider endpoint: an OpenAI-compatible gateway,
	// a remote Ollama host, or a test server.
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
}

const defaultMaxTokens = 4096

// NewProvider creates a provider instance from settings.
func NewProvider(s Settings) (Provider, error) {
	client := &http.Client{Timeout: s.Timeout}
	if s.Timeout <= 0 {
		client.Timeout = 120 * time.Second
	}

	switch strings.ToLower(s.Provider) {
	case "anthropic", "":
		if s.APIKey == "" {
			return nil, fmt.Errorf("no Anthropic API key configured — set ANTHROPIC_API_KEY or run 'smartsheet config set api_keys.anthropic <key>'. Get a key at https://console.anthropic.com/settings/keys")
		}
		return newAnthropicProvider(s, client), nil
	case "openai":
		if s.APIKey == "" && s.BaseURL == "" {
			return nil, fmt.Errorf("no OpenAI API key configured — set OPENAI_API_KEY or run 'smartsheet config set api_keys.openai <key>'")
		}
		return newOpenAIProvider(s, client), nil
	case "ollama":
		if s.Timeout <= 0 {
			client.Timeout = 300 * time.Second
		}
		return newOllamaProvider(s, client), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q — supported providers: anthropic, openai, ollama", s.Provider)
	}
}

// Endpoint returns the base URL the configured provider sends requests to.
// It is the only network peer a run contacts.
func Endpoint(s Settings) string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	switch strings.ToLower(s.Provider) {
	case "openai":
		return openaiAPIURL
	case "ollama":
		return defaultOllamaHost
	default:
		return anthropicAPIURL
	}
}

// StripFences removes a surrounding Markdown code fence such as ```json from
// model output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func hasImages(messages []Message) bool {
	for _, m := range messages {
		if len(m.Images) > 0 {
			return true
		}
	}
	return false
}

func maxTokens(opts InferOptions, fallback int) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	if fallback > 0 {
		return fallback
	}
	return defaultMaxTokens
}
