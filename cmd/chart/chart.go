// Package chart provides the chart generation command.
package chart

import (
	"github.com/spf13/cobra"

	"github.com/klytics/smartsheet/internal/app"
	"github.com/klytics/smartsheet/internal/tools"
)

// NewCommand returns the chart command.
func NewCommand() *cobra.Command {
	var prompt, sheetFlag, outputName string
	cmd := &cobra.Command{
		Use:   "chart <file>",
		Short: "Draw a native Excel chart described in plain language",
		Long: `Show the model the sheet's headers and a sample of rows, let it pick the
chart type and columns, then add a native chart next to the data.
Only .xlsx files are supported.

Example:
  smartsheet chart sales.xlsx --prompt "Monthly revenue as a line chart"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.RequireFlags(cmd, "prompt"); err != nil {
				return err
			}
			env, err := app.FromCommand(cmd)
			if err != nil {
				return err
			}
			in, err := env.ReadInput(args[0])
			if err != nil {
				return err
			}
			runner, err := env.Tools()
			if err != nil {
				return err
			}

			sel, err := app.ParseSheet(sheetFlag)
			if err != nil {
				return err
			}

			spin := env.Spinner("Designing chart")
			spin.Start()
			res, err := runner.Chart(cmd.Context(), tools.ChartRequest{
				File:       in,
				Sheet:      sel,
				Prompt:     prompt,
				OutputName: outputName,
			})
			if err != nil {
				spin.Stop("failed")
				return err
			}
			spin.Stop("done")
			return env.Finish(cmd, args[0], res)
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Chart description")
	cmd.Flags().StringVar(&sheetFlag, "sheet", "", "Sheet name or 1-based number (default: first sheet)")
	cmd.Flags().StringVar(&outputName, "output-name", "", "Output file name (default: smart_<input>.xlsx)")
	return cmd
}
