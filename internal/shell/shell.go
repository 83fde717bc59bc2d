// Package shell provides the interactive smartsheet REPL. A session keeps a
// current file so tool commands can omit it. History stays in memory.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/mattn/go-shellwords"
)

// CommandRunner executes a smartsheet command line. cmd/shell supplies one
// backed by the cobra root command.
type CommandRunner func(ctx context.Context, args []string, stdout, stderr io.Writer) error

// fileCommands take the spreadsheet as their first positional argument.
var fileCommands = map[string]bool{
	"text": true, "text-multi": true, "image": true, "image-multi": true,
	"chart": true, "transform": true, "read": true,
}

// Session manages an interactive shell.
type Session struct {
	CurrentFile string
	LastOutput  string
	History     []string
	StartTime   time.Time

	// KnownCommands is the list of top-level commands for completion.
	KnownCommands []string

	Out io.Writer
	Err io.Writer

	runner CommandRunner
}

// NewSession creates a session that runs commands through runner.
func NewSession(runner CommandRunner) *Session {
	return &Session{
		StartTime: time.Now(),
		KnownCommands: []string{
			"text", "text-multi", "image", "image-multi", "chart", "transform",
			"read", "batch", "config", "doctor", "version",
			"open", "close", "file", "history", "help", "exit", "quit",
		},
		Out:    os.Stdout,
		Err:    os.Stderr,
		runner: runner,
	}
}

// Run starts the REPL loop. Blocks until 'exit', Ctrl+D or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if s.runner == nil {
		return fmt.Errorf("shell runner not configured")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		AutoComplete:    readline.NewPrefixCompleter(s.buildCompleter()...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryLimit:    500,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(s.Out, "smartsheet interactive shell")
	fmt.Fprintln(s.Out, "Type 'open <file>' to pick a spreadsheet, 'help' for commands, 'exit' to quit.")

	for ctx.Err() == nil {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			break
		}
		if s.Handle(ctx, line) {
			return nil
		}
		rl.SetPrompt(s.prompt())
	}
	s.printGoodbye()
	return nil
}

// Handle processes one input line and reports whether the session should end.
func (s *Session) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	s.History = append(s.History, line)

	fields := strings.Fields(line)
	switch fields[0] {
	case "exit", "quit":
		s.printGoodbye()
		return true
	case "help":
		s.printHelp()
	case "history":
		for i, cmd := range s.History {
			fmt.Fprintf(s.Out, "  %d  %s\n", i+1, cmd)
		}
	case "open":
		args, err := shellwords.Parse(line)
		if err != nil || len(args) != 2 {
			fmt.Fprintln(s.Err, "Usage: open <file.xlsx|file.xls|file.csv>")
			return false
		}
		if err := s.Open(args[1]); err != nil {
			fmt.Fprintf(s.Err, "Error: %s\n", err)
			return false
		}
		fmt.Fprintf(s.Out, "Current file: %s\n", s.CurrentFile)
	case "close":
		s.CurrentFile = ""
		fmt.Fprintln(s.Out, "No current file")
	case "file":
		if s.CurrentFile == "" {
			fmt.Fprintln(s.Out, "No current file — use 'open <file>'")
		} else {
			fmt.Fprintln(s.Out, s.CurrentFile)
		}
	case "shell":
		fmt.Fprintln(s.Err, "Already in the shell.")
	default:
		output, err := s.Eval(ctx, line)
		if output != "" {
			fmt.Fprint(s.Out, output)
			if !strings.HasSuffix(output, "\n") {
				fmt.Fprintln(s.Out)
			}
		}
		if err != nil {
			fmt.Fprintf(s.Err, "Error: %s\n", err)
		}
	}
	return false
}

// Open sets the current file after checking it exists.
func (s *Session) Open(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("file not found: %s — check that the path is correct", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".xlsx", ".xls", ".csv":
	default:
		return fmt.Errorf("unsupported file type: %s. Only CSV or Excel files are supported", path)
	}
	s.CurrentFile = abs
	return nil
}

// Eval runs one command line and returns its output.
func (s *Session) Eval(ctx context.Context, command string) (string, error) {
	if s.runner == nil {
		return "", fmt.Errorf("shell runner not configured")
	}

	args, err := s.Args(command)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", nil
	}

	var stdout, stderr bytes.Buffer
	err = s.runner(ctx, args, &stdout, &stderr)

	output := stdout.String()
	s.LastOutput = output

	if errOut := strings.TrimSpace(stderr.String()); errOut != "" && err != nil {
		return output, errors.New(strings.TrimPrefix(errOut, "Error: "))
	}
	return output, err
}

// Args splits a command line shell-style and inserts the current file for
// tool commands that were given none.
func (s *Session) Args(command string) ([]string, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("could not parse command: %w", err)
	}
	if len(args) == 0 || !fileCommands[args[0]] {
		return args, nil
	}
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		return args, nil
	}
	if s.CurrentFile == "" {
		return nil, fmt.Errorf("%s needs a file — pass one or run 'open <file>' first", args[0])
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0], s.CurrentFile)
	return append(out, args[1:]...), nil
}

// Complete returns tab-completion candidates for the given input.
func (s *Session) Complete(input string) []string {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return s.KnownCommands
	}
	if len(parts) == 1 && !strings.HasSuffix(input, " ") {
		var matches []string
		for _, cmd := range s.KnownCommands {
			if strings.HasPrefix(cmd, parts[0]) {
				matches = append(matches, cmd)
			}
		}
		sort.Strings(matches)
		return matches
	}

	last := parts[len(parts)-1]
	if strings.HasSuffix(input, " ") {
		last = ""
	}
	if strings.HasPrefix(last, "-") {
		var matches []string
		for _, f := range flagsFor(parts[0]) {
			if strings.HasPrefix(f, last) {
				matches = append(matches, f)
			}
		}
		return matches
	}
	if parts[0] == "config" && len(parts) <= 2 {
		var matches []string
		for _, sub := range []string{"init", "show", "set", "get", "path", "validate", "policy"} {
			if strings.HasPrefix(sub, last) {
				matches = append(matches, sub)
			}
		}
		return matches
	}
	return nil
}

func flagsFor(cmd string) []string {
	common := []string{"--json", "--verbose", "--provider", "--model", "--out-dir"}
	switch cmd {
	case "text", "text-multi", "image", "image-multi":
		return append([]string{"--input", "--output", "--prompt", "--sheet", "--output-name"}, common...)
	case "chart", "transform":
		return append([]string{"--prompt", "--sheet", "--output-name"}, common...)
	case "read":
		return []string{"--sheet", "--csv", "--limit", "--json"}
	}
	return nil
}

func (s *Session) prompt() string {
	if s.CurrentFile == "" {
		return "smartsheet> "
	}
	return fmt.Sprintf("smartsheet [%s]> ", filepath.Base(s.CurrentFile))
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.Out, "Available commands:")
	fmt.Fprintln(s.Out)
	fmt.Fprintln(s.Out, "  Analysis:   text, text-multi, image, image-multi")
	fmt.Fprintln(s.Out, "  Workbook:   chart, transform, read")
	fmt.Fprintln(s.Out, "  System:     batch, config, doctor, version")
	fmt.Fprintln(s.Out)
	fmt.Fprintln(s.Out, "Shell commands:")
	fmt.Fprintln(s.Out, "  open <file>  set the current file; tool commands use it when none is given")
	fmt.Fprintln(s.Out, "  file         show the current file")
	fmt.Fprintln(s.Out, "  close        clear the current file")
	fmt.Fprintln(s.Out, "  history      show command history")
	fmt.Fprintln(s.Out, "  exit         exit the shell")
}

func (s *Session) printGoodbye() {
	fmt.Fprintf(s.Out, "\nSession ended. %d commands run in %s.\n",
		len(s.History), formatDuration(time.Since(s.StartTime)))
}

func (s *Session) buildCompleter() []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range s.KnownCommands {
		switch {
		case cmd == "open" || fileCommands[cmd]:
			items = append(items, readline.PcItem(cmd, readline.PcItemDynamic(listSpreadsheets)))
		case cmd == "config":
			var subs []readline.PrefixCompleterInterface
			for _, sub := range []string{"init", "show", "set", "get", "path", "validate", "policy"} {
				subs = append(subs, readline.PcItem(sub))
			}
			items = append(items, readline.PcItem(cmd, subs...))
		default:
			items = append(items, readline.PcItem(cmd))
		}
	}
	return items
}

// listSpreadsheets offers spreadsheets in the working directory.
func listSpreadsheets(string) []string {
	entries, err := os.ReadDir(".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".xlsx", ".xls", ".csv":
			names = append(names, e.Name())
		}
	}
	return names
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	m := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, sec)
}
