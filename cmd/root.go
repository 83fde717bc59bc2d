// Package cmd contains all CLI commands for the smartsheet binary.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/smartsheet/cmd/analyze"
	"github.com/klytics/smartsheet/cmd/batch"
	cmdchart "github.com/klytics/smartsheet/cmd/chart"
	"github.com/klytics/smartsheet/cmd/completion"
	cmdconfig "github.com/klytics/smartsheet/cmd/config"
	"github.com/klytics/smartsheet/cmd/doctor"
	"github.com/klytics/smartsheet/cmd/read"
	cmdshell "github.com/klytics/smartsheet/cmd/shell"
	cmdtransform "github.com/klytics/smartsheet/cmd/transform"
	"github.com/klytics/smartsheet/cmd/version"
	cmdwatch "github.com/klytics/smartsheet/cmd/watch"
	"github.com/klytics/smartsheet/internal/app"
	"github.com/klytics/smartsheet/internal/config"
	"github.com/klytics/smartsheet/internal/output"
)

// NewRootCommand creates and returns the root cobra command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "smartsheet",
		Short: "AI-assisted spreadsheet analysis from the terminal",
		Long: `smartsheet — send spreadsheet cells to your configured model and write the answers back.

Analyze text and image columns, generate native Excel charts, and transform
sheets with plain-language prompts. Works on .xlsx, .xls and .csv; results are
saved as smart_<name>.xlsx next to the input or in --out-dir.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				color.NoColor = true
			}
			policy, err := config.LoadPolicy()
			if err != nil {
				return err
			}
			if !policy.IsCommandAllowed(cmd.CommandPath()) {
				return output.Usagef("%q is not allowed by policy %s", cmd.CommandPath(), config.PolicyPath())
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.Bool("json", false, "Output as machine-readable JSON")
	pf.Bool("verbose", false, "Enable debug logging")
	pf.String("provider", "", "AI provider: anthropic | openai | ollama")
	pf.String("model", "", "AI model name override")
	pf.Bool("no-color", false, "Disable ANSI color output")
	pf.String("out-dir", "", "Directory for output files (default: next to the input)")
	pf.Int("concurrency", 0, "Parallel model requests per run")

	rootCmd.AddCommand(analyze.NewCommands()...)
	rootCmd.AddCommand(cmdchart.NewCommand())
	rootCmd.AddCommand(cmdtransform.NewCommand())
	rootCmd.AddCommand(read.NewCommand())
	rootCmd.AddCommand(batch.NewCommand())
	rootCmd.AddCommand(cmdwatch.NewCommand())
	rootCmd.AddCommand(cmdshell.NewCommand(runLine))
	rootCmd.AddCommand(cmdconfig.NewCommand())
	rootCmd.AddCommand(doctor.NewCommand())
	rootCmd.AddCommand(completion.NewCommand(rootCmd))
	rootCmd.AddCommand(version.NewCommand())

	return rootCmd
}

// Execute runs the root command and exits with the mapped status code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Run executes one command line and returns its exit code. Errors raised
// before a command starts (unknown command, bad flags, wrong arguments)
// are user errors.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	started := false
	commandName := rootCmd.Name()
	preRun := rootCmd.PersistentPreRunE
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		started = true
		commandName = cmd.CommandPath()
		return preRun(cmd, args)
	}

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return output.ExitOK
	}
	if !started {
		err = output.Usage(err)
	}
	err = app.Classify(err)

	if output.IsReported(err) {
		return output.ExitCode(err)
	}
	if jsonOut, _ := rootCmd.PersistentFlags().GetBool("json"); jsonOut {
		_ = output.PrintJSONError(stdout, commandName, err)
	} else {
		fmt.Fprintf(stderr, "Error: %s\n", err)
	}
	return output.ExitCode(err)
}

// runLine backs the interactive shell with a fresh root command per line.
func runLine(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if code := Run(ctx, args, os.Stdin, stdout, stderr); code != output.ExitOK {
		return fmt.Errorf("exit status %d", code)
	}
	return nil
}
