// Package jobs runs YAML job files: a list of tool steps applied to every
// spreadsheet matched by a set of globs.
package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/klytics/smartsheet/internal/sheet"
)

// Tool names accepted in a step.
const (
	ToolText       = "text"
	ToolTextMulti  = "text-multi"
	ToolImage      = "image"
	ToolImageMulti = "image-multi"
	ToolChart      = "chart"
	ToolTransform  = "transform"
)

// Failure policies for a step.
const (
	// OnFailureFile abandons the current file and moves on to the next one.
	OnFailureFile = ""
	// OnFailureSkip ignores the failed step and keeps going on the same file.
	OnFailureSkip = "skip"
	// OnFailureStop aborts the whole run.
	OnFailureStop = "stop"
)

var knownTools = map[string]bool{
	ToolText: true, ToolTextMulti: true,
	ToolImage: true, ToolImageMulti: true,
	ToolChart: true, ToolTransform: true,
}

// Job is a complete job file.
type Job struct {
	Name       string   `yaml:"name" json:"name"`
	Files      []string `yaml:"files" json:"files"`
	OutputName string   `yaml:"output_name,omitempty" json:"outputName,omitempty"`
	Steps      []Step   `yaml:"steps" json:"steps"`
}

// Step is one tool invocation. Steps run in order on each file and each
// step sees the previous step's output; only the final workbook is saved.
type Step struct {
	ID          string `yaml:"id" json:"id"`
	Tool        string `yaml:"tool" json:"tool"`
	Files       string `yaml:"files,omitempty" json:"files,omitempty"`
	Sheet       string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	SheetNumber int    `yaml:"sheet_number,omitempty" json:"sheetNumber,omitempty"`
	Input       string `yaml:"input,omitempty" json:"input,omitempty"`
	Output      string `yaml:"output,omitempty" json:"output,omitempty"`
	Prompt      string `yaml:"prompt" json:"prompt"`
	OutputName  string `yaml:"output_name,omitempty" json:"outputName,omitempty"`
	OnFailure   string `yaml:"on_failure,omitempty" json:"onFailure,omitempty"`
}

// Load reads and validates a job file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job file not found: %s — check that the path is correct", path)
		}
		return nil, fmt.Errorf("could not read job file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates a job from YAML bytes.
func Parse(data []byte) (*Job, error) {
	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("invalid job YAML: %w", err)
	}
	if err := Validate(&j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Validate checks step IDs, tools and the fields each tool needs.
func Validate(j *Job) error {
	if len(j.Steps) == 0 {
		return fmt.Errorf("job %q has no steps defined", j.Name)
	}

	seen := make(map[string]bool)
	for i := range j.Steps {
		step := &j.Steps[i]
		if step.ID == "" {
			return fmt.Errorf("step %d is missing an 'id' field", i+1)
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate step ID %q — each step must have a unique ID", step.ID)
		}
		seen[step.ID] = true

		step.Tool = strings.ToLower(strings.TrimSpace(step.Tool))
		if !knownTools[step.Tool] {
			return fmt.Errorf("step %q has unknown tool %q — use one of: text, text-multi, image, image-multi, chart, transform", step.ID, step.Tool)
		}
		if strings.TrimSpace(step.Prompt) == "" {
			return fmt.Errorf("step %q is missing a 'prompt'", step.ID)
		}
		switch step.Tool {
		case ToolText, ToolTextMulti, ToolImage, ToolImageMulti:
			if step.Input == "" || step.Output == "" {
				return fmt.Errorf("step %q (%s) needs both 'input' and 'output' coordinates", step.ID, step.Tool)
			}
		}
		if step.Sheet != "" && step.SheetNumber != 0 {
			return fmt.Errorf("step %q sets both 'sheet' and 'sheet_number'", step.ID)
		}
		if step.SheetNumber < 0 {
			return fmt.Errorf("step %q: sheet_number must be greater than 0", step.ID)
		}
		switch step.OnFailure {
		case OnFailureFile, OnFailureSkip, OnFailureStop:
		default:
			return fmt.Errorf("step %q: on_failure must be 'skip' or 'stop', got %q", step.ID, step.OnFailure)
		}
		if step.Files != "" {
			if _, err := filepath.Match(step.Files, ""); err != nil {
				return fmt.Errorf("step %q: bad files pattern %q: %w", step.ID, step.Files, err)
			}
		}
	}

	for _, g := range j.Files {
		if _, err := filepath.Match(g, ""); err != nil {
			return fmt.Errorf("bad files pattern %q: %w", g, err)
		}
	}
	return nil
}

// Expand resolves the job's globs to spreadsheet paths, sorted and without
// duplicates. Office lock files and outputs from earlier runs are left out:
// smart_* files and any file this job would write for another match.
func (j *Job) Expand() ([]string, error) {
	if len(j.Files) == 0 {
		return nil, fmt.Errorf("job %q has no 'files' patterns — pass files on the command line or add a files list", j.Name)
	}
	seen := make(map[string]bool)
	var paths []string
	for _, g := range j.Files {
		matches, err := filepath.Glob(g)
		if err != nil {
			return nil, fmt.Errorf("bad files pattern %q: %w", g, err)
		}
		for _, m := range matches {
			if seen[m] || !IsSpreadsheet(m) {
				continue
			}
			if info, err := os.Stat(m); err != nil || info.IsDir() {
				continue
			}
			seen[m] = true
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)

	now := time.Now()
	producedBy := make(map[string]string, len(paths))
	for _, p := range paths {
		producedBy[filepath.Join(filepath.Dir(p), j.OutputFor(p, now))] = p
	}
	inputs := paths[:0]
	for _, p := range paths {
		if src, ok := producedBy[p]; ok && src != p {
			continue
		}
		inputs = append(inputs, p)
	}
	return inputs, nil
}

// OutputFor is the file name written for the input at path: the last
// applicable step's output_name, else the job's, else smart_<base>.xlsx.
func (j *Job) OutputFor(path string, now time.Time) string {
	name := j.OutputName
	for _, s := range j.Steps {
		if s.applies(path) && s.OutputName != "" {
			name = s.OutputName
		}
	}
	return sheet.OutputName(path, interpolate(name, path, now))
}

// IsSpreadsheet reports whether path looks like an input this tool accepts.
func IsSpreadsheet(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".~") || strings.HasPrefix(base, "smart_") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".xlsx", ".xls", ".csv":
		return true
	}
	return false
}

// applies reports whether the step's files pattern selects path. Patterns
// with a directory part match the full path; bare patterns match the base name.
func (s Step) applies(path string) bool {
	if s.Files == "" {
		return true
	}
	target := filepath.Base(path)
	if strings.ContainsAny(s.Files, `/\`) {
		target = path
	}
	ok, _ := filepath.Match(s.Files, target)
	return ok
}
