// Package transform applies a model-written plan of declarative steps to a
// table. The model never produces code: each step is one of a fixed set of
// operations, and row expressions run in the expr-lang VM, which has no file,
// network or process access.
package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klytics/smartsheet/internal/ai"
)

// Step operations.
const (
	OpAddColumn   = "add_column"
	OpSetColumn   = "set_column"
	OpFilter      = "filter"
	OpDropColumns = "drop_columns"
	OpKeepColumns = "keep_columns"
	OpRename      = "rename"
	OpSort        = "sort"
	OpDedupe      = "dedupe"
	OpFillEmpty   = "fill_empty"
	OpReplace     = "replace"
	OpGroup       = "group"
)

var knownOps = map[string]bool{
	OpAddColumn: true, OpSetColumn: true, OpFilter: true, OpDropColumns: true,
	OpKeepColumns: true, OpRename: true, OpSort: true, OpDedupe: true,
	OpFillEmpty: true, OpReplace: true, OpGroup: true,
}

// Aggregate functions accepted by the group step.
var aggregateFuncs = map[string]bool{"sum": true, "count": true, "avg": true, "min": true, "max": true}

// Plan is the model's answer: an ordered list of steps.
type Plan struct {
	Explanation string `json:"explanation,omitempty"`
	Steps       []Step `json:"steps"`
}

// Step is one operation. Only the fields its Op uses are read.
type Step struct {
	Op         string      `json:"op"`
	Name       string      `json:"name,omitempty"`
	Expr       string      `json:"expr,omitempty"`
	Columns    []string    `json:"columns,omitempty"`
	From       string      `json:"from,omitempty"`
	To         string      `json:"to,omitempty"`
	By         []string    `json:"by,omitempty"`
	Desc       bool        `json:"desc,omitempty"`
	Value      string      `json:"value,omitempty"`
	Column     string      `json:"column,omitempty"`
	Find       string      `json:"find,omitempty"`
	With       string      `json:"with,omitempty"`
	Aggregates []Aggregate `json:"aggregates,omitempty"`
}

// Aggregate is one output column of a group step.
type Aggregate struct {
	Column string `json:"column"`
	Func   string `json:"func"`
	As     string `json:"as,omitempty"`
}

// StepError reports which step failed.
type StepError struct {
	Index int // 1-based
	Op    string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ParsePlan decodes the model's JSON, tolerating a Markdown fence and a bare
// array of steps.
func ParsePlan(raw string) (*Plan, error) {
	body := ai.StripFences(raw)

	var plan Plan
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &plan.Steps); err != nil {
			return nil, fmt.Errorf("Failed to parse LLM Response. Raw: %s", raw)
		}
	} else if err := json.Unmarshal([]byte(body), &plan); err != nil {
		return nil, fmt.Errorf("Failed to parse LLM Response. Raw: %s", raw)
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks each step has the fields its operation needs.
func (p *Plan) Validate() error {
	for i := range p.Steps {
		s := &p.Steps[i]
		s.Op = strings.ToLower(strings.TrimSpace(s.Op))
		if err := s.validate(); err != nil {
			return &StepError{Index: i + 1, Op: s.Op, Err: err}
		}
	}
	return nil
}

func (s *Step) validate() error {
	if !knownOps[s.Op] {
		return fmt.Errorf("unknown operation %q", s.Op)
	}
	switch s.Op {
	case OpAddColumn, OpSetColumn:
		if s.Name == "" || s.Expr == "" {
			return fmt.Errorf("requires name and expr")
		}
	case OpFilter:
		if s.Expr == "" {
			return fmt.Errorf("requires expr")
		}
	case OpDropColumns, OpKeepColumns:
		if len(s.Columns) == 0 {
			return fmt.Errorf("requires columns")
		}
	case OpRename:
		if s.From == "" || s.To == "" {
			return fmt.Errorf("requires from and to")
		}
	case OpSort:
		if len(s.By) == 0 {
			return fmt.Errorf("requires by")
		}
	case OpReplace:
		if s.Find == "" {
			return fmt.Errorf("requires find")
		}
	case OpGroup:
		if len(s.By) == 0 {
			return fmt.Errorf("requires by")
		}
		for _, a := range s.Aggregates {
			if !aggregateFuncs[strings.ToLower(a.Func)] {
				return fmt.Errorf("unknown aggregate function %q", a.Func)
			}
			if a.Column == "" && strings.ToLower(a.Func) != "count" {
				return fmt.Errorf("aggregate %s requires a column", a.Func)
			}
		}
	}
	return nil
}

// String renders the plan as indented JSON.
func (p *Plan) String() string {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", *p)
	}
	return string(b)
}
