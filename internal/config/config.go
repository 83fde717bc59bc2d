// Package config manages application configuration from files and environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/klytics/smartsheet/internal/ai"
)

// Defaults applied before the config file and environment are read.
const (
	DefaultProvider    = "anthropic"
	DefaultModel       = "claude-sonnet-4-20250514"
	DefaultConcurrency = 4
	DefaultTimeout     = 120 * time.Second
	DefaultMaxTokens   = 4096
)

// Config holds the application configuration.
type Config struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKeys  struct {
		Anthropic string `mapstructure:"anthropic"`
		OpenAI    string `mapstructure:"openai"`
	} `mapstructure:"api_keys"`
	OpenAI struct {
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"openai"`
	Ollama struct {
		Host string `mapstructure:"host"`
	} `mapstructure:"ollama"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Output      struct {
		Dir   string `mapstructure:"dir"`
		Color bool   `mapstructure:"color"`
	} `mapstructure:"output"`
}

// Load reads the configuration from ~/.smartsheet/config.yaml and
// SMARTSHEET_* environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir())

	setDefaults()

	// SMARTSHEET_API_KEYS_ANTHROPIC overrides api_keys.anthropic, and so on.
	viper.SetEnvPrefix("SMARTSHEET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (non-fatal if missing)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("provider", DefaultProvider)
	viper.SetDefault("model", "")
	viper.SetDefault("api_keys.anthropic", "")
	viper.SetDefault("api_keys.openai", "")
	viper.SetDefault("openai.base_url", "")
	viper.SetDefault("ollama.host", "")
	viper.SetDefault("concurrency", DefaultConcurrency)
	viper.SetDefault("timeout", DefaultTimeout)
	viper.SetDefault("max_tokens", DefaultMaxTokens)
	viper.SetDefault("output.dir", "")
	viper.SetDefault("output.color", true)
}

// APIKey resolves the key for the configured provider. The provider's usual
// environment variable wins over the config file.
func (c *Config) APIKey() string {
	switch strings.ToLower(c.Provider) {
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return key
		}
		return c.APIKeys.OpenAI
	case "ollama":
		return ""
	default:
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			return key
		}
		return c.APIKeys.Anthropic
	}
}

// AISettings converts the configuration into provider settings.
func (c *Config) AISettings() ai.Settings {
	s := ai.Settings{
		Provider:  c.Provider,
		Model:     c.Model,
		APIKey:    c.APIKey(),
		Timeout:   c.Timeout,
		MaxTokens: c.MaxTokens,
	}
	switch strings.ToLower(c.Provider) {
	case "openai":
		s.BaseURL = c.OpenAI.BaseURL
	case "ollama":
		s.BaseURL = c.Ollama.Host
		if s.BaseURL == "" {
			s.BaseURL = os.Getenv("OLLAMA_HOST")
		}
	}
	return s
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".smartsheet"
	}
	return filepath.Join(home, ".smartsheet")
}
