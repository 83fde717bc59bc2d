// Package read provides the read command for inspecting spreadsheets.
package read

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klytics/smartsheet/internal/app"
	"github.com/klytics/smartsheet/internal/output"
	"github.com/klytics/smartsheet/internal/sheet"
)

// NewCommand returns the read command.
func NewCommand() *cobra.Command {
	var (
		sheetFlag string
		csvOutput bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Print the contents of a spreadsheet",
		Long: `Reads an .xlsx, .xls or .csv file and prints its sheets as a table, as CSV
or, with --json, as structured data. Pass '-' to read from stdin.

Nothing is sent to the model.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.FromCommand(cmd)
			if err != nil {
				return err
			}
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			in, err := env.ReadInput(path)
			if err != nil {
				return err
			}
			wb, err := sheet.ReadBytes(in.Name, in.Data)
			if err != nil {
				return err
			}
			if wb, err = selectSheets(wb, sheetFlag); err != nil {
				return err
			}

			if env.JSON {
				return output.PrintJSON(env.Stdout, cmd.CommandPath(), wb.Sheets)
			}
			if csvOutput {
				for _, s := range wb.Sheets {
					if len(wb.Sheets) > 1 {
						fmt.Fprintf(env.Stderr, "--- %s ---\n", s.Name)
					}
					if _, err := io.WriteString(env.Stdout, s.ToCSV()); err != nil {
						return err
					}
				}
				return nil
			}

			var b strings.Builder
			for i, s := range wb.Sheets {
				if i > 0 {
					b.WriteString("\n")
				}
				output.Table(&b, s.Name, s.Rows, limit)
			}
			return output.PageOrWrite(env.Stdout, b.String())
		},
	}

	cmd.Flags().StringVar(&sheetFlag, "sheet", "", "Read only this sheet (name or 1-based number)")
	cmd.Flags().BoolVar(&csvOutput, "csv", false, "Output as CSV")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many data rows per sheet")

	return cmd
}

func selectSheets(wb *sheet.Workbook, v string) (*sheet.Workbook, error) {
	sel, err := app.ParseSheet(v)
	if err != nil {
		return nil, err
	}
	switch {
	case sel.Name != "":
		s, err := wb.GetSheet(sel.Name)
		if err != nil {
			return nil, err
		}
		return &sheet.Workbook{Sheets: []sheet.Sheet{*s}}, nil
	case sel.Index != 0:
		if sel.Index < 1 || sel.Index > len(wb.Sheets) {
			return nil, output.Usagef("sheet %d is out of range — the file has %d sheets", sel.Index, len(wb.Sheets))
		}
		return &sheet.Workbook{Sheets: []sheet.Sheet{wb.Sheets[sel.Index-1]}}, nil
	}
	return wb, nil
}
