package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/klytics/smartsheet/internal/ai"
	"github.com/klytics/smartsheet/internal/sheet"
	"github.com/klytics/smartsheet/internal/transform"
)

// TransformRequest asks for a change to one sheet in plain language.
// SheetName, when set, picks the sheet instead of SheetNumber.
type TransformRequest struct {
	File        Input
	SheetNumber int
	SheetName   string
	Prompt      string
	OutputName  string
}

// Transform has the model translate the instruction into a step plan, runs
// the plan locally and replaces the target sheet with the result.
func (r *Runner) Transform(ctx context.Context, req TransformRequest) (*Result, error) {
	if err := checkPrompt(req.Prompt); err != nil {
		return nil, err
	}
	if req.SheetName == "" && req.SheetNumber <= 0 {
		return nil, invalidf("sheet_number must be greater than 0.")
	}

	sel := sheet.Selector{Index: req.SheetNumber, Name: req.SheetName}
	format, err := sheet.DetectFormat(req.File.Name, req.File.Data)
	if err != nil {
		return nil, err
	}
	if format == sheet.FormatCSV && req.SheetName == "" {
		// A CSV file is a single sheet whatever number was asked for.
		sel = sheet.Selector{}
	}
	doc, err := sheet.Load(req.File.Name, req.File.Data, sel)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	sheetNumber := doc.SheetNumber()

	tbl := doc.Table()
	bar := r.tracker("Planning", 1)
	res, err := r.Provider.Infer(ctx, "", []ai.Message{{
		Role:    "user",
		Content: transform.Prompt(sheetNumber, tbl, req.Prompt),
	}}, r.Options)
	if err != nil {
		bar.Finish("failed")
		return nil, fmt.Errorf("AI Reasoning Failed: %w", err)
	}
	bar.Increment("plan received")
	bar.Finish("plan received")

	plan, err := transform.ParsePlan(res.Content)
	if err != nil {
		return nil, planError(err, res.Content)
	}

	next, err := transform.Apply(tbl, plan)
	if err != nil {
		return nil, planError(err, plan.String())
	}
	r.logger().Printf("transform: %d steps on sheet %d, %d rows -> %d rows",
		len(plan.Steps), sheetNumber, len(tbl.Rows), len(next.Rows))

	if err := doc.ReplaceTable(next); err != nil {
		return nil, err
	}

	out := &Result{
		Message:   fmt.Sprintf("Processing complete on Sheet %d.\n\nPlan applied:\n```json\n%s\n```", sheetNumber, plan.String()),
		Processed: len(next.Rows),
	}
	return finish(doc, req.OutputName, out)
}

func planError(err error, plan string) error {
	var stepErr *transform.StepError
	if errors.As(err, &stepErr) {
		return fmt.Errorf("Plan Execution Error: %w\n\nPlan:\n%s", err, plan)
	}
	return err
}
