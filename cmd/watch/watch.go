// Package watch provides the "smartsheet watch" command for inbox directories.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/smartsheet/internal/app"
	"github.com/klytics/smartsheet/internal/jobs"
	"github.com/klytics/smartsheet/internal/output"
	w "github.com/klytics/smartsheet/internal/watch"
)

// NewCommand creates the "watch" command.
func NewCommand() *cobra.Command {
	var (
		jobPath   string
		recursive bool
		pattern   string
		debounce  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <directory> [directory...]",
		Short: "Run a job on every spreadsheet dropped into a directory",
		Long: `Watch directories for new or modified .xlsx, .xls and .csv files and run a
job file's steps on each one. Office lock files, smart_* files and the outputs
the job writes are ignored.
The watcher runs in the foreground until interrupted; nothing is recorded on disk
besides the outputs.

Example:
  smartsheet watch ./inbox --job triage.yaml
  smartsheet watch ./inbox ./shared --job triage.yaml --recursive --pattern "sales_*"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.RequireFlags(cmd, "job"); err != nil {
				return err
			}
			job, err := jobs.Load(jobPath)
			if err != nil {
				return output.Usage(err)
			}
			env, err := app.FromCommand(cmd)
			if err != nil {
				return err
			}
			t, err := env.Tools()
			if err != nil {
				return err
			}
			var watcher *w.Watcher
			runner := &jobs.Runner{
				Tools:       t,
				Logger:      env.Logger,
				Concurrency: 1,
				OutDir:      env.Config.Output.Dir,
				OnOutput:    func(path string) { watcher.IgnoreOutput(path) },
			}
			if runner.OutDir != "" {
				if err := os.MkdirAll(runner.OutDir, 0755); err != nil {
					return fmt.Errorf("could not create output directory %s: %w", runner.OutDir, err)
				}
			}

			var mu sync.Mutex
			handler := func(ctx context.Context, path string) error {
				report, err := runner.RunFiles(ctx, job, []string{path})
				if report != nil && len(report.Files) == 1 {
					mu.Lock()
					printFile(env.Stdout, env.JSON, report.Files[0])
					mu.Unlock()
					if err == nil && report.Files[0].Status == "error" {
						err = fmt.Errorf("%s", report.Files[0].Error)
					}
				}
				return err
			}

			watcher, err = w.New(w.Config{
				Directories: args,
				Recursive:   recursive,
				Pattern:     pattern,
				Debounce:    debounce,
			}, handler)
			if err != nil {
				return output.Usage(err)
			}
			watcher.Logger = env.Logger

			if !env.JSON {
				fmt.Fprintf(env.Stdout, "Watching %s for spreadsheets (job %q)\n", strings.Join(args, ", "), job.Name)
				fmt.Fprintln(env.Stdout, "Press Ctrl+C to stop")
			}

			if err := watcher.Start(cmd.Context()); err != nil {
				return output.Usage(err)
			}

			status := watcher.Status()
			return env.Emit(cmd.CommandPath(), map[string]any{
				"status": status,
				"events": watcher.Events(),
			}, func(out io.Writer) {
				fmt.Fprintf(out, "\nStopped. %d processed, %d errors, %d skipped.\n", status.Processed, status.Errors, status.Skipped)
			})
		},
	}

	cmd.Flags().StringVar(&jobPath, "job", "", "Job file whose steps run on each new spreadsheet")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Watch directories recursively")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Only handle files whose name matches this glob, e.g. \"sales_*\"")
	cmd.Flags().DurationVar(&debounce, "debounce", w.DefaultDebounce, "Wait this long after the last change before processing")

	return cmd
}

func printFile(out io.Writer, jsonOut bool, f jobs.FileResult) {
	if jsonOut {
		return
	}
	ts := time.Now().Format("15:04:05")
	if f.Status == "error" {
		fmt.Fprintf(out, "[%s] %s %s: %s\n", ts, color.RedString("✗"), filepath.Base(f.File), f.Error)
		return
	}
	fmt.Fprintf(out, "[%s] %s %s → %s (%s)\n", ts, color.GreenString("✓"), filepath.Base(f.File), f.Output, f.Duration)
}
