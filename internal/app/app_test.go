package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klytics/smartsheet/internal/ai"
	"github.com/klytics/smartsheet/internal/config"
	"github.com/klytics/smartsheet/internal/coord"
	"github.com/klytics/smartsheet/internal/output"
	"github.com/klytics/smartsheet/internal/sheet"
	"github.com/klytics/smartsheet/internal/tools"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	viper.Reset()
	t.Setenv("HOME", dir)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SMARTSHEET_POLICY", filepath.Join(dir, "no-policy.yaml"))
	t.Cleanup(viper.Reset)
	return dir
}

// runEnv builds an Env the way a subcommand of the root would.
func runEnv(t *testing.T, args ...string) (*Env, error) {
	t.Helper()
	root := &cobra.Command{Use: "smartsheet", SilenceUsage: true, SilenceErrors: true}
	pf := root.PersistentFlags()
	pf.Bool("json", false, "")
	pf.Bool("verbose", false, "")
	pf.String("provider", "", "")
	pf.String("model", "", "")
	pf.String("out-dir", "", "")
	pf.Int("concurrency", 0, "")

	var env *Env
	root.AddCommand(&cobra.Command{
		Use: "text",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			env, err = FromCommand(cmd)
			return err
		},
	})
	root.SetArgs(append([]string{"text"}, args...))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	return env, err
}

func TestFromCommandFlagsOverrideConfig(t *testing.T) {
	isolate(t)
	t.Setenv("SMARTSHEET_MODEL", "from-env")

	env, err := runEnv(t, "--provider", "ollama", "--concurrency", "7", "--out-dir", "out", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if env.Config.Provider != "ollama" {
		t.Errorf("provider = %q", env.Config.Provider)
	}
	if env.Config.Model != "from-env" {
		t.Errorf("model = %q, want the env value when no flag is given", env.Config.Model)
	}
	if env.Config.Concurrency != 7 || env.Config.Output.Dir != "out" {
		t.Errorf("concurrency = %d, out-dir = %q", env.Config.Concurrency, env.Config.Output.Dir)
	}
	if !env.JSON || env.Verbose {
		t.Errorf("json = %t, verbose = %t", env.JSON, env.Verbose)
	}
}

func TestFromCommandRejectsBadConcurrency(t *testing.T) {
	isolate(t)
	_, err := runEnv(t, "--concurrency", "0")
	if output.ExitCode(err) != output.ExitUserError {
		t.Errorf("err = %v, want a user error", err)
	}
}

func TestFromCommandAppliesLockedPolicy(t *testing.T) {
	dir := isolate(t)
	policy := filepath.Join(dir, "policy.yaml")
	yaml := "provider: ollama\nmodel: llama3\nlocked:\n  provider: true\n  model: true\n"
	if err := os.WriteFile(policy, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SMARTSHEET_POLICY", policy)

	env, err := runEnv(t, "--provider", "openai", "--model", "gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	if env.Config.Provider != "ollama" || env.Config.Model != "llama3" {
		t.Errorf("locked policy not applied: %s/%s", env.Config.Provider, env.Config.Model)
	}
}

func TestProviderRespectsAllowedEndpoints(t *testing.T) {
	dir := isolate(t)
	policy := filepath.Join(dir, "policy.yaml")
	yaml := "allowed_endpoints:\n  - https://gateway.internal/v1\n"
	if err := os.WriteFile(policy, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SMARTSHEET_POLICY", policy)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	env, err := runEnv(t)
	if err != nil {
		t.Fatal(err)
	}
	called := false
	env.newProvider = func(ai.Settings) (ai.Provider, error) {
		called = true
		return nil, errors.New("unreachable")
	}
	_, err = env.Provider()
	if err == nil || !strings.Contains(err.Error(), "not allowed by policy") {
		t.Fatalf("err = %v", err)
	}
	if output.ExitCode(err) != output.ExitUserError {
		t.Error("a policy refusal should be a user error")
	}
	if called {
		t.Error("provider must not be built for a refused endpoint")
	}
}

func TestToolsUsesConfig(t *testing.T) {
	isolate(t)
	env, err := runEnv(t, "--provider", "ollama", "--concurrency", "3")
	if err != nil {
		t.Fatal(err)
	}
	r, err := env.Tools()
	if err != nil {
		t.Fatal(err)
	}
	if r.Provider.Name() != "ollama" || r.Concurrency != 3 {
		t.Errorf("provider = %s, concurrency = %d", r.Provider.Name(), r.Concurrency)
	}
	if r.Progress == nil {
		t.Error("progress factory should be set")
	}
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	env := &Env{Stdin: strings.NewReader("x,y\n")}

	in, err := env.ReadInput(path)
	if err != nil {
		t.Fatal(err)
	}
	if in.Name != "data.csv" || string(in.Data) != "a,b\n1,2\n" {
		t.Errorf("input = %s %q", in.Name, in.Data)
	}

	in, err = env.ReadInput("-")
	if err != nil {
		t.Fatal(err)
	}
	if in.Name != "stdin" || string(in.Data) != "x,y\n" {
		t.Errorf("stdin input = %s %q", in.Name, in.Data)
	}

	_, err = env.ReadInput(filepath.Join(dir, "missing.xlsx"))
	if output.ExitCode(err) != output.ExitUserError {
		t.Errorf("missing file: err = %v, want a user error", err)
	}

	env.Stdin = strings.NewReader("")
	if _, err := env.ReadInput("-"); output.ExitCode(err) != output.ExitUserError {
		t.Errorf("empty stdin: err = %v", err)
	}
}

func TestWriteResult(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in", "data.csv")
	res := &tools.Result{FileName: "smart_data.xlsx", Data: []byte("xlsx")}

	tests := []struct {
		name   string
		outDir string
		want   string
	}{
		{"next to input", "", filepath.Join(dir, "in", "smart_data.xlsx")},
		{"output dir", filepath.Join(dir, "out"), filepath.Join(dir, "out", "smart_data.xlsx")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &Env{Config: &config.Config{}, Logger: log.New(io.Discard, "", 0)}
			env.Config.Output.Dir = tt.outDir
			got, err := env.WriteResult(input, res)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("path = %s, want %s", got, tt.want)
			}
			data, err := os.ReadFile(got)
			if err != nil || string(data) != "xlsx" {
				t.Errorf("written = %q, %v", data, err)
			}
		})
	}
}

func TestParseSheet(t *testing.T) {
	tests := []struct {
		in      string
		want    sheet.Selector
		wantErr bool
	}{
		{"", sheet.Selector{}, false},
		{"2", sheet.Selector{Index: 2}, false},
		{" 3 ", sheet.Selector{Index: 3}, false},
		{"Q1 Sales", sheet.Selector{Name: "Q1 Sales"}, false},
		{"0", sheet.Selector{}, true},
		{"-1", sheet.Selector{}, true},
	}
	for _, tt := range tests {
		got, err := ParseSheet(tt.in)
		if tt.wantErr {
			if output.ExitCode(err) != output.ExitUserError {
				t.Errorf("ParseSheet(%q) error = %v, want a usage error", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseSheet(%q) = %+v, %v, want %+v", tt.in, got, err, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"coordinates", fmt.Errorf("bad: %w", coord.ErrInvalid), output.ExitUserError},
		{"format", fmt.Errorf("%w: x.pdf", sheet.ErrUnsupportedFormat), output.ExitUserError},
		{"images", fmt.Errorf("ollama: %w", ai.ErrImagesUnsupported), output.ExitUserError},
		{"already usage", output.Usagef("nope"), output.ExitUserError},
		{"network", errors.New("connection refused"), output.ExitSystemError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := output.ExitCode(Classify(tt.err)); got != tt.want {
				t.Errorf("exit code = %d, want %d", got, tt.want)
			}
		})
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestRequireFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "text"}
	cmd.Flags().String("input", "", "")
	cmd.Flags().String("prompt", "", "")
	if err := cmd.Flags().Set("input", "C2"); err != nil {
		t.Fatal(err)
	}

	err := RequireFlags(cmd, "input", "prompt")
	if err == nil || !strings.Contains(err.Error(), "--prompt") {
		t.Fatalf("err = %v", err)
	}
	if output.ExitCode(err) != output.ExitUserError {
		t.Error("missing flag should be a user error")
	}
	if err := RequireFlags(cmd, "input"); err != nil {
		t.Errorf("err = %v", err)
	}
}
