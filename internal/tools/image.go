package tools

import (
	"context"
	"strings"

	"github.com/klytics/smartsheet/internal/ai"
	"github.com/klytics/smartsheet/internal/sheet"
)

// ImageRequest drives the image analysis handlers. Input cells hold image
// URLs; only the URL text is sent to the model.
type ImageRequest struct {
	File       Input
	Sheet      sheet.Selector
	Input      string
	Output     string
	Prompt     string
	OutputName string
}

// SingleColumnImage asks the model about the image linked in each input cell.
func (r *Runner) SingleColumnImage(ctx context.Context, req ImageRequest) (*Result, error) {
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
		url := strings.TrimSpace(doc.Cell(i, in.ColIndex))
		if !isImageURL(url) {
			res.Skipped++
			continue
		}
		tasks = append(tasks, rowTask{row: i, messages: []ai.Message{{
			Role:    "user",
			Content: req.Prompt,
			Images:  []string{url},
		}}})
	}

	r.logger().Printf("image: sheet %q, %d rows queued, %d skipped", doc.SheetName(), len(tasks), res.Skipped)
	results, err := r.inferRows(ctx, "Analyzing images", tasks)
	if err != nil {
		return nil, err
	}
	if err := writeResults(doc, out.ColIndex, tasks, results, res); err != nil {
		return nil, err
	}
	return finish(doc, req.OutputName, res)
}

// MultiColumnImage sends every image URL found on a row, across all input
// ranges, in one message.
func (r *Runner) MultiColumnImage(ctx context.Context, req ImageRequest) (*Result, error) {
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
		var urls []string
		for _, in := range ins {
			if !in.Contains(i) {
				continue
			}
			if url := strings.TrimSpace(doc.Cell(i, in.ColIndex)); isImageURL(url) {
				urls = append(urls, url)
			}
		}
		if len(urls) == 0 {
			res.Skipped++
			continue
		}
		tasks = append(tasks, rowTask{row: i, messages: []ai.Message{{
			Role:    "user",
			Content: req.Prompt,
			Images:  urls,
		}}})
	}

	r.logger().Printf("image-multi: sheet %q, %d input ranges, %d rows queued, %d skipped", doc.SheetName(), len(ins), len(tasks), res.Skipped)
	results, err := r.inferRows(ctx, "Analyzing images", tasks)
	if err != nil {
		return nil, err
	}
	if err := writeResults(doc, out.ColIndex, tasks, results, res); err != nil {
		return nil, err
	}
	return finish(doc, req.OutputName, res)
}

func isImageURL(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "http")
}
