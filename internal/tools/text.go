package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/klytics/smartsheet/internal/ai"
	"github.com/klytics/smartsheet/internal/coord"
	"github.com/klytics/smartsheet/internal/sheet"
)

// TextRequest drives the text analysis handlers. Input is a single
// expression ("D2", "D2:D50") for SingleColumnText and a comma-separated
// list ("A2,C2:C10") for MultiColumnText.
type TextRequest struct {
	File       Input
	Sheet      sheet.Selector
	Input      string
	Output     string
	Prompt     string
	OutputName string
}

// SingleColumnText sends each non-empty cell of one column to the model and
// writes the answer into the output column on the same row.
func (r *Runner) SingleColumnText(ctx context.Context, req TextRequest) (*Result, error) {
	if err := checkPrompt(req.Prompt); err != nil {
		return nil, err
	}
	if err := validateCoords(req.Input, req.Output, true); err != nil {
		return nil, err
	}

	doc, err := sheet.Load(req.File.Name, req.File.Data, req.Sheet)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	in, out, err := parseSingle(req.Input, req.Output, doc.MaxRows())
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var tasks []rowTask
	for _, i := range out.Rows() {
		content := doc.Cell(i, in.ColIndex)
		if isBlank(content) {
			res.Skipped++
			continue
		}
		prompt := fmt.Sprintf("%s\n\n[Content to analyze]:\n%s", req.Prompt, content)
		tasks = append(tasks, rowTask{row: i, messages: []ai.Message{{Role: "user", Content: prompt}}})
	}

	r.logger().Printf("text: sheet %q, %d rows queued, %d skipped", doc.SheetName(), len(tasks), res.Skipped)
	results, err := r.inferRows(ctx, "Analyzing", tasks)
	if err != nil {
		return nil, err
	}
	if err := writeResults(doc, out.ColIndex, tasks, results, res); err != nil {
		return nil, err
	}
	return finish(doc, req.OutputName, res)
}

// MultiColumnText joins, per output row, the values of every input range
// covering that row with " | " and sends them to the model.
func (r *Runner) MultiColumnText(ctx context.Context, req TextRequest) (*Result, error) {
	if err := checkPrompt(req.Prompt); err != nil {
		return nil, err
	}
	if err := validateCoords(req.Input, req.Output, false); err != nil {
		return nil, err
	}

	doc, err := sheet.Load(req.File.Name, req.File.Data, req.Sheet)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	ins, out, err := parseMulti(req.Input, req.Output, doc.MaxRows())
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var tasks []rowTask
	for _, i := range out.Rows() {
		var values []string
		empty := true
		for _, in := range ins {
			if in.Contains(i) {
				v := doc.Cell(i, in.ColIndex)
				values = append(values, v)
				if strings.TrimSpace(v) != "" {
					empty = false
				}
			}
		}
		if empty {
			res.Skipped++
			continue
		}
		prompt := fmt.Sprintf("%s\n\n[Data to analyze]: %s", req.Prompt, strings.Join(values, " | "))
		tasks = append(tasks, rowTask{row: i, messages: []ai.Message{{Role: "user", Content: prompt}}})
	}

	r.logger().Printf("text-multi: sheet %q, %d input ranges, %d rows queued, %d skipped", doc.SheetName(), len(ins), len(tasks), res.Skipped)
	results, err := r.inferRows(ctx, "Analyzing", tasks)
	if err != nil {
		return nil, err
	}
	if err := writeResults(doc, out.ColIndex, tasks, results, res); err != nil {
		return nil, err
	}
	return finish(doc, req.OutputName, res)
}

// isBlank also treats a literal "nan", common in exported sheets, as empty.
func isBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "nan")
}

func checkPrompt(p string) error {
	if strings.TrimSpace(p) == "" {
		return invalidf("prompt cannot be empty — pass --prompt \"...\"")
	}
	return nil
}

func validateCoords(input, output string, singleInput bool) error {
	if err := coord.Validate(input, singleInput); err != nil {
		return coordError(err)
	}
	if err := coord.Validate(output, true); err != nil {
		return coordError(err)
	}
	return nil
}

func parseSingle(input, output string, maxRows int) (coord.Range, coord.Range, error) {
	out, err := coord.Parse(output, maxRows)
	if err != nil {
		return coord.Range{}, coord.Range{}, coordError(err)
	}
	in, err := coord.Parse(input, maxRows)
	if err != nil {
		return coord.Range{}, coord.Range{}, coordError(err)
	}
	return in, out, nil
}

func parseMulti(inputs, output string, maxRows int) ([]coord.Range, coord.Range, error) {
	out, err := coord.Parse(output, maxRows)
	if err != nil {
		return nil, coord.Range{}, coordError(err)
	}
	ins, err := coord.ParseList(inputs, maxRows)
	if err != nil {
		return nil, coord.Range{}, coordError(err)
	}
	return ins, out, nil
}

func coordError(err error) error {
	return fmt.Errorf("Excel coordinate error: %w", err)
}

// ErrInvalidRequest matches errors the caller fixes by changing the request:
// a missing prompt, bad coordinates, an unknown sheet.
var ErrInvalidRequest = errors.New("invalid request")

type invalidError struct{ msg string }

func (e *invalidError) Error() string        { return e.msg }
func (e *invalidError) Is(target error) bool { return target == ErrInvalidRequest }

func invalidf(format string, args ...any) error {
	return &invalidError{msg: fmt.Sprintf(format, args...)}
}
