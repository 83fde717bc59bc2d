// Package transform provides the data manipulation command.
package transform

import (
	"github.com/spf13/cobra"

	"github.com/klytics/smartsheet/internal/app"
	"github.com/klytics/smartsheet/internal/tools"
)

// NewCommand returns the transform command.
func NewCommand() *cobra.Command {
	var (
		prompt     string
		sheetNum   int
		outputName string
	)
	cmd := &cobra.Command{
		Use:   "transform <file>",
		Short: "Filter, sort, group or compute columns from a plain-language instruction",
		Long: `Ask the model to turn an instruction into a plan of filter, sort, group,
derive and select steps, run the plan locally and replace the sheet with the
result. Other sheets are left untouched.

Examples:
  smartsheet transform orders.xlsx --prompt "Only rows where Status is Paid, newest first"
  smartsheet transform orders.xlsx --sheet 2 --prompt "Total Amount per Region"`,
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

			spin := env.Spinner("Planning transformation")
			spin.Start()
			res, err := runner.Transform(cmd.Context(), tools.TransformRequest{
				File:        in,
				SheetNumber: sheetNum,
				Prompt:      prompt,
				OutputName:  outputName,
			})
			if err != nil {
				spin.Stop("failed")
				return err
			}
			spin.Stop("done")
			return env.Finish(cmd, args[0], res)
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "What to do with the data")
	cmd.Flags().IntVar(&sheetNum, "sheet", 1, "1-based sheet number")
	cmd.Flags().StringVar(&outputName, "output-name", "", "Output file name (default: smart_<input>.xlsx)")
	return cmd
}
