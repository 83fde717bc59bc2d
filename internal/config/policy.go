package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/klytics/smartsheet/internal/ai"
)

// Policy is the administrator layer read from /etc/smartsheet/policy.yaml
// (or %ProgramData%\smartsheet\policy.yaml). It pins where row data may be
// sent and which commands users may run.
type Policy struct {
	Provider         string   `yaml:"provider" json:"provider"`
	Model            string   `yaml:"model" json:"model"`
	AllowedEndpoints []string `yaml:"allowed_endpoints" json:"allowed_endpoints"`
	AllowedCommands  []string `yaml:"allowed_commands" json:"allowed_commands"`

	Locked struct {
		Provider bool `yaml:"provider" json:"provider"`
		Model    bool `yaml:"model" json:"model"`
	} `yaml:"locked" json:"locked"`
}

// PolicyPath returns the platform-specific policy location. The
// SMARTSHEET_POLICY environment variable overrides it.
func PolicyPath() string {
	if p := os.Getenv("SMARTSHEET_POLICY"); p != "" {
		return p
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("ProgramData"), "smartsheet", "policy.yaml")
	}
	return "/etc/smartsheet/policy.yaml"
}

// LoadPolicy reads the policy file. Returns nil (not error) if it does not exist.
func LoadPolicy() (*Policy, error) {
	return LoadPolicyFrom(PolicyPath())
}

// LoadPolicyFrom reads a policy from a specific path.
func LoadPolicyFrom(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read policy at %s: %w", path, err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid policy at %s: %w", path, err)
	}
	if issues := ValidatePolicy(&p); len(issues) > 0 {
		return nil, fmt.Errorf("invalid policy at %s: %s", path, strings.Join(issues, "; "))
	}
	return &p, nil
}

// ValidatePolicy checks that a policy is well formed.
func ValidatePolicy(p *Policy) []string {
	var issues []string
	if p.Provider != "" {
		valid := map[string]bool{"anthropic": true, "openai": true, "ollama": true}
		if !valid[p.Provider] {
			issues = append(issues, fmt.Sprintf("provider must be anthropic, openai, or ollama, got %q", p.Provider))
		}
	}
	if p.Locked.Provider && p.Provider == "" {
		issues = append(issues, "locked.provider is set but provider is empty")
	}
	if p.Locked.Model && p.Model == "" {
		issues = append(issues, "locked.model is set but model is empty")
	}
	for _, e := range p.AllowedEndpoints {
		if _, err := url.Parse(e); err != nil || !strings.Contains(e, "://") {
			issues = append(issues, fmt.Sprintf("allowed_endpoints entry %q is not a URL", e))
		}
	}
	return issues
}

// Apply overrides locked values in cfg.
func (p *Policy) Apply(cfg *Config) {
	if p == nil {
		return
	}
	if p.Locked.Provider {
		cfg.Provider = p.Provider
	}
	if p.Locked.Model {
		cfg.Model = p.Model
	}
}

// CheckEndpoint returns an error when the settings would send data to an
// endpoint outside allowed_endpoints. Entries match by scheme, host and
// path prefix.
func (p *Policy) CheckEndpoint(s ai.Settings) error {
	if p == nil || len(p.AllowedEndpoints) == 0 {
		return nil
	}
	target := ai.Endpoint(s)
	for _, allowed := range p.AllowedEndpoints {
		if endpointMatches(strings.TrimRight(allowed, "/"), target) {
			return nil
		}
	}
	return fmt.Errorf("endpoint %s is not allowed by policy %s — allowed: %s",
		target, PolicyPath(), strings.Join(p.AllowedEndpoints, ", "))
}

// IsCommandAllowed checks a command path such as "smartsheet analyze text".
// Empty allowed_commands means all commands are allowed.
func (p *Policy) IsCommandAllowed(commandPath string) bool {
	if p == nil || len(p.AllowedCommands) == 0 {
		return true
	}
	parts := strings.Fields(commandPath)
	if len(parts) > 0 {
		parts = parts[1:]
	}
	for _, allowed := range p.AllowedCommands {
		want := strings.Fields(allowed)
		if len(want) <= len(parts) && strings.Join(parts[:len(want)], " ") == strings.Join(want, " ") {
			return true
		}
	}
	return false
}

func endpointMatches(allowed, target string) bool {
	a, err := url.Parse(allowed)
	if err != nil {
		return false
	}
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	if !strings.EqualFold(a.Scheme, t.Scheme) || !strings.EqualFold(a.Host, t.Host) {
		return false
	}
	return a.Path == "" || t.Path == a.Path || strings.HasPrefix(t.Path, a.Path+"/")
}

func endpointOf(cfg *Config) string {
	return ai.Endpoint(cfg.AISettings())
}

// PolicyTemplate returns a YAML template for administrators.
func PolicyTemplate() string {
	return fmt.Sprintf(`# smartsheet policy
# Deploy to: %s
# Permissions: readable by all users, writable only by root/Administrators

provider: openai
model: ""

# Row data may only be sent to these endpoints. Empty = no restriction.
allowed_endpoints:
  - https://llm-gateway.internal.example/v1

# allowed_commands: []  # empty = all allowed

locked:
  provider: true
  model: false
`, PolicyPath())
}
