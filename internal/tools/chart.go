package tools

import (
	"context"
	"fmt"

	"github.com/klytics/smartsheet/internal/ai"
	"github.com/klytics/smartsheet/internal/chart"
	"github.com/klytics/smartsheet/internal/coord"
	"github.com/klytics/smartsheet/internal/sheet"
)

// ChartRequest asks for a chart over the selected sheet.
type ChartRequest struct {
	File       Input
	Sheet      sheet.Selector
	Prompt     string
	OutputName string
}

// Chart lets the model pick a chart type and columns, then draws a native
// chart into the workbook.
func (r *Runner) Chart(ctx context.Context, req ChartRequest) (*Result, error) {
	if err := checkPrompt(req.Prompt); err != nil {
		return nil, err
	}

	format, err := sheet.DetectFormat(req.File.Name, req.File.Data)
	if err != nil {
		return nil, err
	}
	if format != sheet.FormatXLSX {
		return nil, chart.ErrRequiresXLSX
	}

	doc, err := sheet.Load(req.File.Name, req.File.Data, req.Sheet)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	tbl := doc.Table()
	lastRow := doc.MaxRows() + 1
	lastCol := tbl.Width()

	bar := r.tracker("Designing chart", 1)
	res, err := r.Provider.Infer(ctx, "", []ai.Message{{
		Role:    "user",
		Content: chart.Prompt(req.Prompt, tbl, lastRow),
	}}, r.Options)
	if err != nil {
		bar.Finish("failed")
		return nil, fmt.Errorf("LLM Config Generation Failed: %w", err)
	}
	bar.Increment("config received")
	bar.Finish("chart config received")

	cfg, err := chart.ParseConfig(res.Content, lastCol)
	if err != nil {
		return nil, err
	}
	if len(cfg.YAxisCols) == 0 {
		cfg.YAxisCols = numericColumns(tbl, cfg.XAxisCol)
	}
	r.logger().Printf("chart: %s with %d series at %s on sheet %q", cfg.ChartType, len(cfg.YAxisCols), cfg.CellPosition, doc.SheetName())

	f, err := doc.File()
	if err != nil {
		return nil, err
	}
	if err := chart.Draw(f, doc.SheetName(), cfg, lastRow); err != nil {
		return nil, err
	}

	out := &Result{
		Message:   fmt.Sprintf("Generated %s chart '%s'.", cfg.ChartType, cfg.Title),
		Processed: 1,
	}
	return finish(doc, req.OutputName, out)
}

// numericColumns lists the letters of every numeric column other than x.
func numericColumns(t *sheet.Table, x string) []string {
	var cols []string
	for i, kind := range t.ColumnKinds() {
		name := coord.ColumnName(i)
		if kind == sheet.KindNumber && name != x {
			cols = append(cols, name)
		}
	}
	return cols
}
