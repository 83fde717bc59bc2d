// Package app resolves the per-invocation runtime shared by every command:
// configuration merged with flags and policy, the logger, the tool runner
// and output helpers.
package app

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klytics/smartsheet/internal/ai"
	"github.com/klytics/smartsheet/internal/chart"
	"github.com/klytics/smartsheet/internal/config"
	"github.com/klytics/smartsheet/internal/coord"
	"github.com/klytics/smartsheet/internal/output"
	"github.com/klytics/smartsheet/internal/progress"
	"github.com/klytics/smartsheet/internal/sheet"
	"github.com/klytics/smartsheet/internal/tools"
)

// Env is the resolved runtime for one command.
type Env struct {
	Config  *config.Config
	Policy  *config.Policy
	Logger  *log.Logger
	JSON    bool
	Verbose bool
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer

	// newProvider is swapped in tests.
	newProvider func(ai.Settings) (ai.Provider, error)
}

// FromCommand loads config and policy, then applies the persistent flags
// the user set explicitly. Locked policy values win over both.
func FromCommand(cmd *cobra.Command) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	policy, err := config.LoadPolicy()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if f := flags.Lookup("provider"); f != nil && f.Changed {
		cfg.Provider = f.Value.String()
	}
	if f := flags.Lookup("model"); f != nil && f.Changed {
		cfg.Model = f.Value.String()
	}
	if f := flags.Lookup("out-dir"); f != nil && f.Changed {
		cfg.Output.Dir = f.Value.String()
	}
	if f := flags.Lookup("concurrency"); f != nil && f.Changed {
		n, err := strconv.Atoi(f.Value.String())
		if err != nil || n < 1 {
			return nil, output.Usagef("--concurrency must be a positive number, got %q", f.Value.String())
		}
		cfg.Concurrency = n
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = config.DefaultConcurrency
	}
	policy.Apply(cfg)

	jsonFlag, _ := flags.GetBool("json")
	verbose, _ := flags.GetBool("verbose")

	env := &Env{
		Config:      cfg,
		Policy:      policy,
		JSON:        jsonFlag,
		Verbose:     verbose,
		Stdin:       cmd.InOrStdin(),
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
		newProvider: ai.NewProvider,
	}
	env.Logger = log.New(io.Discard, "", 0)
	if verbose {
		env.Logger = log.New(env.Stderr, "[smartsheet] ", log.LstdFlags)
	}
	return env, nil
}

// Provider builds the configured model client after the policy check on
// its endpoint.
func (e *Env) Provider() (ai.Provider, error) {
	s := e.Config.AISettings()
	if err := e.Policy.CheckEndpoint(s); err != nil {
		return nil, output.Usage(err)
	}
	p, err := e.newProvider(s)
	if err != nil {
		return nil, output.Usage(err)
	}
	e.Logger.Printf("Using %s at %s", p.Name(), ai.Endpoint(s))
	return p, nil
}

// Tools returns a runner wired to the provider, logger and progress bars.
func (e *Env) Tools() (*tools.Runner, error) {
	p, err := e.Provider()
	if err != nil {
		return nil, err
	}
	return &tools.Runner{
		Provider:    p,
		Logger:      e.Logger,
		Concurrency: e.Config.Concurrency,
		Options:     ai.InferOptions{MaxTokens: e.Config.MaxTokens},
		Progress: func(label string, total int) tools.Tracker {
			bar := progress.New(label, total)
			bar.Out = e.Stderr
			bar.Enabled = bar.Enabled && !e.JSON
			return bar
		},
	}, nil
}

// Spinner returns a spinner for single model calls, silent under --json.
func (e *Env) Spinner(label string) *progress.Spinner {
	s := progress.NewSpinner(label)
	s.Out = e.Stderr
	s.Enabled = s.Enabled && !e.JSON
	return s
}

// ReadInput loads a spreadsheet from path, or from stdin when path is "-".
func (e *Env) ReadInput(path string) (tools.Input, error) {
	if path == "-" {
		data, err := io.ReadAll(e.Stdin)
		if err != nil {
			return tools.Input{}, fmt.Errorf("could not read from stdin: %w", err)
		}
		if len(data) == 0 {
			return tools.Input{}, output.Usagef("no input provided — pass a file path or pipe a spreadsheet to stdin")
		}
		return tools.Input{Name: "stdin", Data: data}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.Input{}, output.Usagef("file not found: %s — check that the path is correct", path)
		}
		return tools.Input{}, fmt.Errorf("could not read %s: %w", path, err)
	}
	return tools.Input{Name: filepath.Base(path), Data: data}, nil
}

// OutputPath is where a result for inputPath is written: the configured
// output directory, or the input's own directory.
func (e *Env) OutputPath(inputPath, fileName string) string {
	dir := e.Config.Output.Dir
	if dir == "" {
		dir = "."
		if inputPath != "-" {
			dir = filepath.Dir(inputPath)
		}
	}
	return filepath.Join(dir, fileName)
}

// WriteResult saves a handler's workbook and returns the path written.
func (e *Env) WriteResult(inputPath string, res *tools.Result) (string, error) {
	path := e.OutputPath(inputPath, res.FileName)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("could not create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, res.Data, 0644); err != nil {
		return "", fmt.Errorf("could not write %s: %w", path, err)
	}
	e.Logger.Printf("Wrote %s (%d bytes)", path, len(res.Data))
	return path, nil
}

// Emit prints data as a JSON envelope under --json, or calls text otherwise.
func (e *Env) Emit(command string, data interface{}, text func(w io.Writer)) error {
	if e.JSON {
		return output.PrintJSON(e.Stdout, command, data)
	}
	text(e.Stdout)
	return nil
}

// ParseSheet reads a --sheet value: a 1-based number or a sheet name.
func ParseSheet(v string) (sheet.Selector, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return sheet.Selector{}, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return sheet.Selector{}, output.Usagef("--sheet %d is not valid — sheet numbers start at 1", n)
		}
		return sheet.Selector{Index: n}, nil
	}
	return sheet.Selector{Name: v}, nil
}

// Classify marks errors the user can fix so they exit with the usage code.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ue *output.UserError
	if errors.As(err, &ue) {
		return err
	}
	for _, target := range []error{
		tools.ErrInvalidRequest,
		coord.ErrInvalid,
		sheet.ErrUnsupportedFormat,
		sheet.ErrNoSuchSheet,
		chart.ErrRequiresXLSX,
		ai.ErrImagesUnsupported,
	} {
		if errors.Is(err, target) {
			return output.Usage(err)
		}
	}
	return err
}

// RequireFlags reports the first of names the user left empty.
func RequireFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		f := cmd.Flags().Lookup(name)
		if f == nil || strings.TrimSpace(f.Value.String()) == "" {
			return output.Usagef("--%s is required", name)
		}
	}
	return nil
}

// Outcome is what a handler command reports after saving its workbook.
type Outcome struct {
	Output string `json:"output"`
	*tools.Result
}

// Finish saves res next to inputPath (or in the output directory) and
// prints the outcome.
func (e *Env) Finish(cmd *cobra.Command, inputPath string, res *tools.Result) error {
	path, err := e.WriteResult(inputPath, res)
	if err != nil {
		return err
	}
	out := Outcome{Output: path, Result: res}
	return e.Emit(cmd.CommandPath(), out, func(w io.Writer) {
		fields := [][2]string{{"Output", path}, {"Sheet", res.Sheet}}
		if res.Processed+res.Skipped+res.Failed > 0 {
			fields = append(fields,
				[2]string{"Processed", strconv.Itoa(res.Processed)},
				[2]string{"Skipped", strconv.Itoa(res.Skipped)},
				[2]string{"Failed", strconv.Itoa(res.Failed)},
			)
		}
		output.Summary(w, res.Message, fields)
	})
}
