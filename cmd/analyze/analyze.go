// Package analyze provides the row-by-row text and image analysis commands.
package analyze

import (
	"github.com/spf13/cobra"

	"github.com/klytics/smartsheet/internal/app"
	"github.com/klytics/smartsheet/internal/tools"
)

type kind int

const (
	singleText kind = iota
	multiText
	singleImage
	multiImage
)

type options struct {
	input      string
	output     string
	prompt     string
	sheet      string
	outputName string
}

// NewCommands returns the text, text-multi, image and image-multi commands.
func NewCommands() []*cobra.Command {
	return []*cobra.Command{
		newCommand("text", singleText,
			"Analyze one text column row by row",
			`Send each non-empty cell of the input column to the model and write the
answer into the output column on the same row.

Examples:
  smartsheet text reviews.xlsx --input "C2:C100" --output "D2" --prompt "Classify the sentiment"
  smartsheet text leads.csv --input B2 --output E2 --prompt "Extract the company name"`),
		newCommand("text-multi", multiText,
			"Analyze several text columns together row by row",
			`Send the values of several input columns, one row at a time, to the model
and write the answer into the output column.

Examples:
  smartsheet text-multi orders.xlsx --input "A2,C2,F2" --output G2 --prompt "Summarise the order"
  smartsheet text-multi orders.xlsx --input "A2:A50,C2:C50" --output "G2:G50" --prompt "..."`),
		newCommand("image", singleImage,
			"Describe the image linked in one column row by row",
			`Send the image URL in each input cell to the model and write its answer
into the output column. Cells that do not hold an http(s) URL are skipped.

Example:
  smartsheet image products.xlsx --input D2 --output E2 --prompt "Describe the product"`),
		newCommand("image-multi", multiImage,
			"Analyze images linked in several columns row by row",
			`Send every image URL found in the input columns of a row to the model
together and write the answer into the output column.

Example:
  smartsheet image-multi listings.xlsx --input "D2,E2,F2" --output G2 --prompt "Compare the photos"`),
	}
}

func newCommand(name string, k kind, short, long string) *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   name + " <file>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.RequireFlags(cmd, "input", "output", "prompt"); err != nil {
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

			sel, err := app.ParseSheet(o.sheet)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var res *tools.Result
			switch k {
			case singleText:
				res, err = runner.SingleColumnText(ctx, tools.TextRequest{
					File: in, Sheet: sel, Input: o.input, Output: o.output, Prompt: o.prompt, OutputName: o.outputName,
				})
			case multiText:
				res, err = runner.MultiColumnText(ctx, tools.TextRequest{
					File: in, Sheet: sel, Input: o.input, Output: o.output, Prompt: o.prompt, OutputName: o.outputName,
				})
			case singleImage:
				res, err = runner.SingleColumnImage(ctx, tools.ImageRequest{
					File: in, Sheet: sel, Input: o.input, Output: o.output, Prompt: o.prompt, OutputName: o.outputName,
				})
			case multiImage:
				res, err = runner.MultiColumnImage(ctx, tools.ImageRequest{
					File: in, Sheet: sel, Input: o.input, Output: o.output, Prompt: o.prompt, OutputName: o.outputName,
				})
			}
			if err != nil {
				return err
			}
			return env.Finish(cmd, args[0], res)
		},
	}

	inputHelp := "Input column or range, e.g. C2 or C2:C100"
	outputHelp := "Output column or range, e.g. D2 or D2:D100"
	if k == multiText || k == multiImage {
		inputHelp = "Comma-separated input columns or ranges, e.g. A2,C2,F2"
	}
	cmd.Flags().StringVarP(&o.input, "input", "i", "", inputHelp)
	cmd.Flags().StringVarP(&o.output, "output", "o", "", outputHelp)
	cmd.Flags().StringVarP(&o.prompt, "prompt", "p", "", "Instruction sent to the model with each row")
	cmd.Flags().StringVar(&o.sheet, "sheet", "", "Sheet name or 1-based number (default: first sheet)")
	cmd.Flags().StringVar(&o.outputName, "output-name", "", "Output file name (default: smart_<input>.xlsx)")
	return cmd
}
