package jobs

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/klytics/smartsheet/internal/sheet"
	"github.com/klytics/smartsheet/internal/tools"
)

// Tools is the set of handlers a job step can call. *tools.Runner
// satisfies it.
type Tools interface {
	SingleColumnText(ctx context.Context, req tools.TextRequest) (*tools.Result, error)
	MultiColumnText(ctx context.Context, req tools.TextRequest) (*tools.Result, error)
	SingleColumnImage(ctx context.Context, req tools.ImageRequest) (*tools.Result, error)
	MultiColumnImage(ctx context.Context, req tools.ImageRequest) (*tools.Result, error)
	Chart(ctx context.Context, req tools.ChartRequest) (*tools.Result, error)
	Transform(ctx context.Context, req tools.TransformRequest) (*tools.Result, error)
}

// DefaultConcurrency is the number of files processed at once.
const DefaultConcurrency = 2

// Runner executes jobs.
type Runner struct {
	Tools       Tools
	Logger      *log.Logger
	Concurrency int
	// OutDir receives outputs. Empty means next to each input file.
	OutDir string
	// DryRun lists the steps each file would go through without calling
	// the model or writing anything.
	DryRun bool
	// OnOutput, when set, is called with each output path just before the
	// file is written.
	OnOutput func(path string)

	now func() time.Time
}

// StepResult is the outcome of one step on one file.
type StepResult struct {
	StepID    string `json:"stepId"`
	Tool      string `json:"tool"`
	Status    string `json:"status"` // "ok", "error", "skipped", "planned"
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// FileResult is the outcome for one input file.
type FileResult struct {
	File     string       `json:"file"`
	Status   string       `json:"status"` // "ok", "error", "planned"
	Output   string       `json:"output,omitempty"`
	Error    string       `json:"error,omitempty"`
	Steps    []StepResult `json:"steps"`
	Duration string       `json:"duration"`
}

// Report summarises a run.
type Report struct {
	Job       string       `json:"job"`
	Files     []FileResult `json:"files"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// errStop marks a step failure with on_failure: stop.
type errStop struct {
	step string
	err  error
}

func (e *errStop) Error() string { return fmt.Sprintf("step %q failed: %v", e.step, e.err) }
func (e *errStop) Unwrap() error { return e.err }

// Run expands the job's globs and processes every file.
func (r *Runner) Run(ctx context.Context, job *Job) (*Report, error) {
	paths, err := job.Expand()
	if err != nil {
		return nil, err
	}
	return r.RunFiles(ctx, job, paths)
}

// RunFiles processes the given files, several at once. A step with
// on_failure: stop cancels the files that have not finished.
func (r *Runner) RunFiles(ctx context.Context, job *Job, paths []string) (*Report, error) {
	if r.Tools == nil && !r.DryRun {
		return nil, fmt.Errorf("job runner has no tools configured")
	}
	logger := r.logger()
	logger.Printf("Running job %q on %d file(s)", job.Name, len(paths))

	concurrency := r.Concurrency
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	results := make([]FileResult, len(paths))

	// A stop error cancels gctx, so files that have not started yet are
	// recorded as cancelled instead of run.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = FileResult{File: path, Status: "error", Error: err.Error()}
				return nil
			}
			res, err := r.runFile(gctx, job, path)
			results[i] = res
			return err
		})
	}
	stopErr := g.Wait()

	report := &Report{Job: job.Name, Files: results}
	for _, res := range results {
		if res.Status == "error" {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	logger.Printf("Job %q finished: %d succeeded, %d failed", job.Name, report.Succeeded, report.Failed)
	return report, stopErr
}

// runFile pushes one file through the job's steps. The returned error is
// non-nil only for on_failure: stop.
func (r *Runner) runFile(ctx context.Context, job *Job, path string) (res FileResult, stop error) {
	start := r.clock()
	res = FileResult{File: path}
	defer func() { res.Duration = r.clock().Sub(start).Round(time.Millisecond).String() }()

	var steps []Step
	for _, s := range job.Steps {
		if s.applies(path) {
			steps = append(steps, s)
		}
	}

	outPath := filepath.Join(r.outDir(path), job.OutputFor(path, r.clock()))

	if r.DryRun {
		for _, s := range steps {
			res.Steps = append(res.Steps, StepResult{StepID: s.ID, Tool: s.Tool, Status: "planned"})
		}
		res.Status = "planned"
		res.Output = outPath
		return res, nil
	}

	if len(steps) == 0 {
		res.Status = "ok"
		return res, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Status = "error"
		res.Error = err.Error()
		return res, nil
	}
	input := tools.Input{Name: filepath.Base(path), Data: data}

	logger := r.logger()
	changed := false
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			res.Status = "error"
			res.Error = err.Error()
			return res, nil
		}

		step.Prompt = interpolate(step.Prompt, path, r.clock())
		out, err := r.runStep(ctx, step, input)
		sr := StepResult{StepID: step.ID, Tool: step.Tool}
		if err != nil {
			sr.Status = "error"
			sr.Error = err.Error()
			res.Steps = append(res.Steps, sr)
			logger.Printf("%s: step %s failed: %v", filepath.Base(path), step.ID, err)

			switch step.OnFailure {
			case OnFailureSkip:
				continue
			case OnFailureStop:
				res.Status = "error"
				res.Error = sr.Error
				return res, &errStop{step: step.ID, err: err}
			default:
				res.Status = "error"
				res.Error = sr.Error
				return res, nil
			}
		}

		sr.Status = "ok"
		sr.Message = out.Message
		sr.Processed, sr.Skipped, sr.Failed = out.Processed, out.Skipped, out.Failed
		res.Steps = append(res.Steps, sr)
		logger.Printf("%s: step %s done (%d processed, %d failed)", filepath.Base(path), step.ID, out.Processed, out.Failed)

		// The next step reads this step's workbook. Keep the original base
		// name so output naming and format detection stay stable.
		input = tools.Input{Name: strings.TrimSuffix(input.Name, filepath.Ext(input.Name)) + ".xlsx", Data: out.Data}
		changed = true
	}

	if !changed {
		res.Status = "error"
		res.Error = "every step failed"
		return res, nil
	}
	if r.OnOutput != nil {
		r.OnOutput(outPath)
	}
	if err := os.WriteFile(outPath, input.Data, 0644); err != nil {
		res.Status = "error"
		res.Error = fmt.Sprintf("could not write %s: %v", outPath, err)
		return res, nil
	}
	res.Status = "ok"
	res.Output = outPath
	return res, nil
}

func (r *Runner) runStep(ctx context.Context, step Step, in tools.Input) (*tools.Result, error) {
	sel := sheet.Selector{Index: step.SheetNumber, Name: step.Sheet}
	switch step.Tool {
	case ToolText, ToolTextMulti:
		req := tools.TextRequest{File: in, Sheet: sel, Input: step.Input, Output: step.Output, Prompt: step.Prompt}
		if step.Tool == ToolText {
			return r.Tools.SingleColumnText(ctx, req)
		}
		return r.Tools.MultiColumnText(ctx, req)
	case ToolImage, ToolImageMulti:
		req := tools.ImageRequest{File: in, Sheet: sel, Input: step.Input, Output: step.Output, Prompt: step.Prompt}
		if step.Tool == ToolImage {
			return r.Tools.SingleColumnImage(ctx, req)
		}
		return r.Tools.MultiColumnImage(ctx, req)
	case ToolChart:
		return r.Tools.Chart(ctx, tools.ChartRequest{File: in, Sheet: sel, Prompt: step.Prompt})
	case ToolTransform:
		req := tools.TransformRequest{File: in, SheetNumber: step.SheetNumber, SheetName: step.Sheet, Prompt: step.Prompt}
		if req.SheetName == "" && req.SheetNumber == 0 {
			req.SheetNumber = 1
		}
		return r.Tools.Transform(ctx, req)
	}
	return nil, fmt.Errorf("unknown tool %q", step.Tool)
}

func (r *Runner) outDir(path string) string {
	if r.OutDir != "" {
		return r.OutDir
	}
	return filepath.Dir(path)
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return r.Logger
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

var interpolationPattern = regexp.MustCompile(`\$\{\{\s*([^}]+?)\s*\}\}`)

// interpolate fills ${{ file.name }}, ${{ file.stem }}, ${{ date.today }}
// and ${{ env.NAME }} placeholders. Unknown placeholders are left as is.
func interpolate(s, path string, now time.Time) string {
	if !strings.Contains(s, "${{") {
		return s
	}
	base := filepath.Base(path)
	return interpolationPattern.ReplaceAllStringFunc(s, func(match string) string {
		expr := interpolationPattern.FindStringSubmatch(match)[1]
		switch {
		case expr == "file.name":
			return base
		case expr == "file.stem":
			return strings.TrimSuffix(base, filepath.Ext(base))
		case expr == "date.today":
			return now.Format("2006-01-02")
		case strings.HasPrefix(expr, "env."):
			return os.Getenv(strings.TrimPrefix(expr, "env."))
		}
		return match
	})
}
