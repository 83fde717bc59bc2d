// Package tools implements the spreadsheet handlers: text and image analysis
// over columns, chart generation and data transformation. Each handler loads
// the input in memory, calls the configured model and returns the output
// workbook as bytes.
package tools

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/klytics/smartsheet/internal/ai"
	"github.com/klytics/smartsheet/internal/coord"
	"github.com/klytics/smartsheet/internal/sheet"
)

// DefaultConcurrency is the number of rows sent to the model at once when
// the Runner does not set one.
const DefaultConcurrency = 4

// Tracker receives per-row progress. *progress.Bar satisfies it.
type Tracker interface {
	Increment(status string)
	Finish(summary string)
}

// Runner executes handlers against one provider.
type Runner struct {
	Provider    ai.Provider
	Logger      *log.Logger
	Concurrency int
	Options     ai.InferOptions

	// Progress, when set, is called once per row-based run.
	Progress func(label string, total int) Tracker
}

// Input is an uploaded spreadsheet.
type Input struct {
	Name string
	Data []byte
}

// Result is a handler's output file plus a summary.
type Result struct {
	FileName  string `json:"fileName"`
	MIMEType  string `json:"mimeType"`
	Data      []byte `json:"-"`
	Message   string `json:"message,omitempty"`
	Sheet     string `json:"sheet"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

type rowTask struct {
	row      int
	messages []ai.Message
}

type rowResult struct {
	text string
	err  error
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return r.Logger
}

func (r *Runner) tracker(label string, total int) Tracker {
	if r.Progress == nil {
		return nopTracker{}
	}
	return r.Progress(label, total)
}

// inferRows sends every task to the model with bounded concurrency. Results
// come back indexed like tasks. A failed row carries its error; only context
// cancellation fails the whole run.
func (r *Runner) inferRows(ctx context.Context, label string, tasks []rowTask) ([]rowResult, error) {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]rowResult, len(tasks))
	bar := r.tracker(label, len(tasks))
	logger := r.logger()

	// Row failures are recorded in results, so the group never sees an error.
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			res, err := r.Provider.Infer(ctx, "", task.messages, r.Options)
			if err != nil {
				results[i] = rowResult{err: err}
				logger.Printf("row %d failed after %s", coord.SheetRow(task.row), time.Since(start).Round(time.Millisecond))
				bar.Increment(fmt.Sprintf("row %d failed", coord.SheetRow(task.row)))
				return nil
			}
			results[i] = rowResult{text: res.Content}
			logger.Printf("row %d done in %s", coord.SheetRow(task.row), time.Since(start).Round(time.Millisecond))
			bar.Increment(fmt.Sprintf("row %d", coord.SheetRow(task.row)))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		bar.Finish("cancelled")
		return nil, err
	}
	bar.Finish(fmt.Sprintf("%s: %d rows", label, len(tasks)))
	return results, nil
}

// writeResults stores each row's answer, or the error text, in column col.
func writeResults(doc *sheet.Document, col int, tasks []rowTask, results []rowResult, res *Result) error {
	for i, task := range tasks {
		value := results[i].text
		if results[i].err != nil {
			value = "LLM Error: " + results[i].err.Error()
			res.Failed++
		} else {
			res.Processed++
		}
		if err := doc.SetCell(task.row, col, value); err != nil {
			return err
		}
	}
	return nil
}

func finish(doc *sheet.Document, override string, res *Result) (*Result, error) {
	data, err := doc.Save()
	if err != nil {
		return nil, err
	}
	res.Data = data
	res.FileName = doc.OutputName(override)
	res.MIMEType = sheet.MIMEType
	res.Sheet = doc.SheetName()
	if res.Message == "" {
		res.Message = fmt.Sprintf("Processed %d rows (%d skipped, %d failed).", res.Processed, res.Skipped, res.Failed)
	}
	return res, nil
}

type nopTracker struct{}

func (nopTracker) Increment(string) {}
func (nopTracker) Finish(string)    {}
