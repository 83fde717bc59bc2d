// Package batch provides the batch command for running job files.
package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/smartsheet/internal/app"
	"github.com/klytics/smartsheet/internal/jobs"
	"github.com/klytics/smartsheet/internal/output"
)

// NewCommand returns the batch subcommand.
func NewCommand() *cobra.Command {
	var (
		dryRun   bool
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "batch <job.yaml> [files...]",
		Short: "Run a job file against many spreadsheets",
		Long: `Runs the steps of a job file against every spreadsheet its 'files' globs
match, or against the files given on the command line. Steps run in order on
each file and only the final workbook is written.

A failed step abandons that file unless the step sets on_failure: skip
(continue with the next step) or on_failure: stop (abort the whole run).

Example job.yaml:
  name: triage
  files: ["inbox/*.xlsx"]
  steps:
    - id: sentiment
      tool: text
      input: C2
      output: D2
      prompt: Classify the sentiment as positive, neutral or negative
    - id: chart
      tool: chart
      prompt: Count of rows per sentiment as a pie chart
      on_failure: skip`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := jobs.Load(args[0])
			if err != nil {
				return output.Usage(err)
			}
			env, err := app.FromCommand(cmd)
			if err != nil {
				return err
			}

			runner := &jobs.Runner{
				Logger:      env.Logger,
				Concurrency: parallel,
				OutDir:      env.Config.Output.Dir,
				DryRun:      dryRun,
			}
			if !dryRun {
				t, err := env.Tools()
				if err != nil {
					return err
				}
				runner.Tools = t
				if runner.OutDir != "" {
					if err := os.MkdirAll(runner.OutDir, 0755); err != nil {
						return fmt.Errorf("could not create output directory %s: %w", runner.OutDir, err)
					}
				}
			}

			paths, err := files(job, args[1:])
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return output.Usagef("no spreadsheets matched the job's files — pass files after the job path or set 'files' in %s", args[0])
			}

			report, runErr := runner.RunFiles(cmd.Context(), job, paths)
			if report == nil {
				return runErr
			}
			if err := env.Emit(cmd.CommandPath(), report, func(w io.Writer) { printReport(w, report) }); err != nil {
				return err
			}
			if runErr != nil {
				return output.Reported(runErr)
			}
			if report.Failed > 0 {
				return output.Reported(fmt.Errorf("%d of %d file(s) failed", report.Failed, len(report.Files)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the steps each file would go through without calling the model")
	cmd.Flags().IntVar(&parallel, "parallel", jobs.DefaultConcurrency, "Number of files processed at once")

	return cmd
}

// files resolves explicit arguments, falling back to the job's globs.
func files(job *jobs.Job, args []string) ([]string, error) {
	if len(args) == 0 {
		return job.Expand()
	}
	var paths []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, output.Usagef("file not found: %s — check that the path is correct", a)
		}
		if info.IsDir() || !jobs.IsSpreadsheet(a) {
			return nil, output.Usagef("%s is not a spreadsheet — expected .xlsx, .xls or .csv", a)
		}
		paths = append(paths, a)
	}
	return paths, nil
}

func printReport(w io.Writer, report *jobs.Report) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, f := range report.Files {
		switch f.Status {
		case "ok":
			fmt.Fprintf(w, "  %s %s → %s (%s)\n", green("✓"), filepath.Base(f.File), f.Output, f.Duration)
		case "planned":
			fmt.Fprintf(w, "  %s %s → %s\n", yellow("·"), filepath.Base(f.File), f.Output)
		default:
			fmt.Fprintf(w, "  %s %s: %s\n", red("✗"), filepath.Base(f.File), f.Error)
		}
		for _, s := range f.Steps {
			line := fmt.Sprintf("      %-12s %-11s %s", s.StepID, s.Tool, s.Status)
			if s.Processed+s.Skipped+s.Failed > 0 {
				line += fmt.Sprintf(" (%d processed, %d skipped, %d failed)", s.Processed, s.Skipped, s.Failed)
			}
			if s.Error != "" {
				line += ": " + s.Error
			}
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintf(w, "\nProcessed %d files. %d succeeded, %d failed.\n", len(report.Files), report.Succeeded, report.Failed)
}
