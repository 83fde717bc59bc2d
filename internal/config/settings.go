package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigIssue represents a validation finding.
type ConfigIssue struct {
	Key      string `json:"key"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Wizard runs the interactive setup. If reader is nil, reads from os.Stdin.
func Wizard(reader io.Reader, out io.Writer) error {
	if reader == nil {
		reader = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	scanner := bufio.NewScanner(reader)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		scanner.Scan()
		return strings.TrimSpace(scanner.Text())
	}

	fmt.Fprintln(out, "smartsheet setup")
	fmt.Fprintln(out, strings.Repeat("-", 40))
	fmt.Fprintln(out, "Step 1/2: Model provider")
	fmt.Fprintln(out, "  [1] Anthropic Claude")
	fmt.Fprintln(out, "  [2] OpenAI or an OpenAI-compatible gateway")
	fmt.Fprintln(out, "  [3] Ollama (local)")
	fmt.Fprintln(out, "  [4] Skip for now")

	switch ask("  Choice: ") {
	case "1":
		viper.Set("provider", "anthropic")
		if key := ask("  Anthropic API key (sk-ant-...): "); key != "" {
			viper.Set("api_keys.anthropic", key)
		}
	case "2":
		viper.Set("provider", "openai")
		if base := ask("  Base URL (blank for api.openai.com): "); base != "" {
			viper.Set("openai.base_url", base)
		}
		if key := ask("  API key (blank if the gateway needs none): "); key != "" {
			viper.Set("api_keys.openai", key)
		}
	case "3":
		viper.Set("provider", "ollama")
		host := ask("  Ollama host (default: http://localhost:11434): ")
		if host == "" {
			host = "http://localhost:11434"
		}
		viper.Set("ollama.host", host)
	default:
		fmt.Fprintln(out, "  Skipped")
	}

	fmt.Fprintln(out, "Step 2/2: Model")
	if model := ask("  Model name (blank for the provider default): "); model != "" {
		viper.Set("model", model)
	}

	if err := SaveConfig(); err != nil {
		return fmt.Errorf("could not save config: %w", err)
	}
	fmt.Fprintf(out, "\nConfig file: %s\n", ConfigPath())
	fmt.Fprintln(out, "Run 'smartsheet doctor' to check the setup.")
	return nil
}

// Validate checks config values and returns a list of issues.
func Validate(cfg *Config) []ConfigIssue {
	var issues []ConfigIssue

	switch strings.ToLower(cfg.Provider) {
	case "", "anthropic":
		if cfg.APIKey() == "" {
			issues = append(issues, ConfigIssue{
				Key:      "api_keys.anthropic",
				Severity: "error",
				Message:  "provider is anthropic but no API key is set",
				Fix:      "export ANTHROPIC_API_KEY=sk-ant-...\nOr: smartsheet config set api_keys.anthropic sk-ant-...",
			})
		} else {
			issues = append(issues, ConfigIssue{Key: "api_keys.anthropic", Severity: "info", Message: "Anthropic API key configured"})
		}
	case "openai":
		switch {
		case cfg.APIKey() != "":
			issues = append(issues, ConfigIssue{Key: "api_keys.openai", Severity: "info", Message: "OpenAI API key configured"})
		case cfg.OpenAI.BaseURL != "":
			issues = append(issues, ConfigIssue{
				Key:      "api_keys.openai",
				Severity: "warning",
				Message:  "no API key set; requests to " + cfg.OpenAI.BaseURL + " will be unauthenticated",
			})
		default:
			issues = append(issues, ConfigIssue{
				Key:      "api_keys.openai",
				Severity: "error",
				Message:  "provider is openai but OPENAI_API_KEY is not set",
				Fix:      "export OPENAI_API_KEY=sk-...\nOr: smartsheet config set openai.base_url http://your-gateway/v1",
			})
		}
	case "ollama":
		issues = append(issues, ConfigIssue{Key: "provider", Severity: "info", Message: "Ollama configured (no API key needed)"})
	default:
		issues = append(issues, ConfigIssue{
			Key:      "provider",
			Severity: "error",
			Message:  fmt.Sprintf("unknown provider %q", cfg.Provider),
			Fix:      "smartsheet config set provider anthropic|openai|ollama",
		})
	}

	if cfg.Concurrency < 1 {
		issues = append(issues, ConfigIssue{
			Key:      "concurrency",
			Severity: "warning",
			Message:  fmt.Sprintf("concurrency %d is below 1, using %d", cfg.Concurrency, DefaultConcurrency),
			Fix:      "smartsheet config set concurrency 4",
		})
	}
	if cfg.Timeout > 0 && cfg.Timeout < 5*time.Second {
		issues = append(issues, ConfigIssue{
			Key:      "timeout",
			Severity: "warning",
			Message:  fmt.Sprintf("timeout %s is short for model calls", cfg.Timeout),
		})
	}
	if cfg.Output.Dir != "" {
		if info, err := os.Stat(cfg.Output.Dir); err != nil || !info.IsDir() {
			issues = append(issues, ConfigIssue{
				Key:      "output.dir",
				Severity: "error",
				Message:  fmt.Sprintf("output directory %s does not exist", cfg.Output.Dir),
				Fix:      "mkdir -p " + cfg.Output.Dir,
			})
		}
	}
	return issues
}

// Set sets a config value and saves to disk.
func Set(key, value string) error {
	viper.Set(key, value)
	return SaveConfig()
}

// Get retrieves a config value.
func Get(key string) string {
	return viper.GetString(key)
}

// ResetConfig deletes the config file and restores defaults.
func ResetConfig() error {
	path := ConfigPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete config: %w", err)
	}
	for _, key := range []string{"provider", "model", "api_keys.anthropic", "api_keys.openai", "openai.base_url", "ollama.host"} {
		viper.Set(key, "")
	}
	viper.Set("provider", DefaultProvider)
	setDefaults()
	return nil
}

// SaveConfig writes the current config to ~/.smartsheet/config.yaml.
func SaveConfig() error {
	dir := configDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}
	return os.Chmod(path, 0600)
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// ShowConfig returns a formatted view of the configuration with keys masked.
func ShowConfig(cfg *Config) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Config: %s\n\n", ConfigPath())
	sb.WriteString("Model\n")
	fmt.Fprintf(&sb, "  provider:    %s\n", cfg.Provider)
	fmt.Fprintf(&sb, "  model:       %s\n", orDefault(cfg.Model, "(provider default)"))
	fmt.Fprintf(&sb, "  endpoint:    %s\n", endpointOf(cfg))
	if key := cfg.APIKey(); key != "" {
		fmt.Fprintf(&sb, "  key:         %s\n", mask(key))
	}
	sb.WriteString("\nRuns\n")
	fmt.Fprintf(&sb, "  concurrency: %d\n", cfg.Concurrency)
	fmt.Fprintf(&sb, "  timeout:     %s\n", cfg.Timeout)
	fmt.Fprintf(&sb, "  max_tokens:  %d\n", cfg.MaxTokens)
	fmt.Fprintf(&sb, "  output.dir:  %s\n", orDefault(cfg.Output.Dir, "(next to input)"))
	return sb.String()
}

func mask(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "****"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
