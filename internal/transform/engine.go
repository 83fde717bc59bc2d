package transform

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/klytics/smartsheet/internal/sheet"
)

// Apply runs the plan over a copy of t and returns the result. t itself is
// never modified.
func Apply(t *sheet.Table, p *Plan) (*sheet.Table, error) {
	out := t.Clone()
	normalize(out)

	for i, s := range p.Steps {
		var err error
		switch s.Op {
		case OpAddColumn:
			err = addColumn(out, s, false)
		case OpSetColumn:
			err = addColumn(out, s, true)
		case OpFilter:
			err = filter(out, s)
		case OpDropColumns:
			err = dropColumns(out, s.Columns)
		case OpKeepColumns:
			err = keepColumns(out, s.Columns)
		case OpRename:
			err = rename(out, s.From, s.To)
		case OpSort:
			err = sortRows(out, s.By, s.Desc)
		case OpDedupe:
			err = dedupe(out, s.Columns)
		case OpFillEmpty:
			err = fillEmpty(out, s.Columns, s.Value)
		case OpReplace:
			err = replace(out, s.Column, s.Find, s.With)
		case OpGroup:
			out, err = group(out, s.By, s.Aggregates)
		default:
			err = fmt.Errorf("unknown operation %q", s.Op)
		}
		if err != nil {
			return nil, &StepError{Index: i + 1, Op: s.Op, Err: err}
		}
	}
	return out, nil
}

// normalize pads every row to the header width so column operations can
// index freely.
func normalize(t *sheet.Table) {
	w := t.Width()
	for len(t.Header) < w {
		t.Header = append(t.Header, "")
	}
	for i, r := range t.Rows {
		for len(r) < w {
			r = append(r, "")
		}
		t.Rows[i] = r
	}
}

func columns(t *sheet.Table, names []string) ([]int, error) {
	idx := make([]int, 0, len(names))
	for _, n := range names {
		j := t.ColumnIndex(n)
		if j < 0 {
			return nil, fmt.Errorf("column %q not found", n)
		}
		idx = append(idx, j)
	}
	return idx, nil
}

// allOr returns the named columns, or every column when names is empty.
func allOr(t *sheet.Table, names []string) ([]int, error) {
	if len(names) > 0 {
		return columns(t, names)
	}
	idx := make([]int, len(t.Header))
	for j := range idx {
		idx[j] = j
	}
	return idx, nil
}

func addColumn(t *sheet.Table, s Step, mustExist bool) error {
	program, err := compile(s.Expr)
	if err != nil {
		return err
	}

	col := t.ColumnIndex(s.Name)
	if col < 0 {
		if mustExist {
			return fmt.Errorf("column %q not found", s.Name)
		}
		t.Header = append(t.Header, s.Name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], "")
		}
		col = len(t.Header) - 1
	}

	values := make([]string, len(t.Rows))
	for i := range t.Rows {
		v, err := eval(program, t, i)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		values[i] = format(v)
	}
	for i, v := range values {
		t.Rows[i][col] = v
	}
	return nil
}

func filter(t *sheet.Table, s Step) error {
	program, err := compile(s.Expr)
	if err != nil {
		return err
	}

	kept := t.Rows[:0:0]
	for i := range t.Rows {
		v, err := eval(program, t, i)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expression must return true or false, got %T", v)
		}
		if b {
			kept = append(kept, t.Rows[i])
		}
	}
	t.Rows = kept
	return nil
}

func dropColumns(t *sheet.Table, names []string) error {
	idx, err := columns(t, names)
	if err != nil {
		return err
	}
	drop := make(map[int]bool, len(idx))
	for _, j := range idx {
		drop[j] = true
	}

	var keep []int
	for j := range t.Header {
		if !drop[j] {
			keep = append(keep, j)
		}
	}
	project(t, keep)
	return nil
}

func keepColumns(t *sheet.Table, names []string) error {
	idx, err := columns(t, names)
	if err != nil {
		return err
	}
	project(t, idx)
	return nil
}

// project rebuilds the table with the given columns in the given order.
func project(t *sheet.Table, idx []int) {
	header := make([]string, len(idx))
	for k, j := range idx {
		header[k] = t.Header[j]
	}
	t.Header = header
	for i, r := range t.Rows {
		row := make([]string, len(idx))
		for k, j := range idx {
			row[k] = r[j]
		}
		t.Rows[i] = row
	}
}

func rename(t *sheet.Table, from, to string) error {
	j := t.ColumnIndex(from)
	if j < 0 {
		return fmt.Errorf("column %q not found", from)
	}
	t.Header[j] = to
	return nil
}

func sortRows(t *sheet.Table, by []string, desc bool) error {
	idx, err := columns(t, by)
	if err != nil {
		return err
	}
	// Blank cells stay at the bottom in either direction.
	sort.SliceStable(t.Rows, func(a, b int) bool {
		for _, j := range idx {
			va, vb := strings.TrimSpace(t.Rows[a][j]), strings.TrimSpace(t.Rows[b][j])
			switch {
			case va == vb:
				continue
			case va == "":
				return false
			case vb == "":
				return true
			}
			c := compare(va, vb)
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

// compare orders numbers numerically and everything else as text. Empty
// values sort after everything else.
func compare(a, b string) int {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}
	if sheet.IsNumber(a) && sheet.IsNumber(b) {
		fa, _ := strconv.ParseFloat(a, 64)
		fb, _ := strconv.ParseFloat(b, 64)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func dedupe(t *sheet.Table, names []string) error {
	idx, err := allOr(t, names)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(t.Rows))
	kept := t.Rows[:0:0]
	for _, r := range t.Rows {
		key := rowKey(r, idx)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, r)
	}
	t.Rows = kept
	return nil
}

func fillEmpty(t *sheet.Table, names []string, value string) error {
	idx, err := allOr(t, names)
	if err != nil {
		return err
	}
	for _, r := range t.Rows {
		for _, j := range idx {
			if strings.TrimSpace(r[j]) == "" {
				r[j] = value
			}
		}
	}
	return nil
}

func replace(t *sheet.Table, column, find, with string) error {
	var names []string
	if column != "" {
		names = []string{column}
	}
	idx, err := allOr(t, names)
	if err != nil {
		return err
	}
	for _, r := range t.Rows {
		for _, j := range idx {
			r[j] = strings.ReplaceAll(r[j], find, with)
		}
	}
	return nil
}

// group collapses rows sharing the by-columns into one row per key, in
// first-seen order, followed by one column per aggregate.
func group(t *sheet.Table, by []string, aggs []Aggregate) (*sheet.Table, error) {
	keyIdx, err := columns(t, by)
	if err != nil {
		return nil, err
	}
	aggIdx := make([]int, len(aggs))
	for k, a := range aggs {
		aggIdx[k] = -1
		if a.Column == "" {
			continue
		}
		j := t.ColumnIndex(a.Column)
		if j < 0 {
			return nil, fmt.Errorf("column %q not found", a.Column)
		}
		aggIdx[k] = j
	}

	var order []string
	members := map[string][]int{}
	for i, r := range t.Rows {
		key := rowKey(r, keyIdx)
		if _, ok := members[key]; !ok {
			order = append(order, key)
		}
		members[key] = append(members[key], i)
	}

	out := &sheet.Table{}
	for _, j := range keyIdx {
		out.Header = append(out.Header, t.Header[j])
	}
	for _, a := range aggs {
		out.Header = append(out.Header, aggregateName(a))
	}

	for _, key := range order {
		rows := members[key]
		first := t.Rows[rows[0]]
		row := make([]string, 0, len(out.Header))
		for _, j := range keyIdx {
			row = append(row, first[j])
		}
		for k, a := range aggs {
			row = append(row, aggregate(t, rows, aggIdx[k], strings.ToLower(a.Func)))
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func aggregateName(a Aggregate) string {
	if a.As != "" {
		return a.As
	}
	if a.Column == "" {
		return strings.ToLower(a.Func)
	}
	return strings.ToLower(a.Func) + "_" + a.Column
}

func aggregate(t *sheet.Table, rows []int, col int, fn string) string {
	if fn == "count" {
		if col < 0 {
			return strconv.Itoa(len(rows))
		}
		n := 0
		for _, i := range rows {
			if strings.TrimSpace(t.Rows[i][col]) != "" {
				n++
			}
		}
		return strconv.Itoa(n)
	}

	var nums []float64
	for _, i := range rows {
		v := strings.TrimSpace(t.Rows[i][col])
		if sheet.IsNumber(v) {
			f, _ := strconv.ParseFloat(v, 64)
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		if fn == "sum" {
			return "0"
		}
		return ""
	}

	var result float64
	switch fn {
	case "sum", "avg":
		for _, f := range nums {
			result += f
		}
		if fn == "avg" {
			result /= float64(len(nums))
		}
	case "min":
		result = math.Inf(1)
		for _, f := range nums {
			result = math.Min(result, f)
		}
	case "max":
		result = math.Inf(-1)
		for _, f := range nums {
			result = math.Max(result, f)
		}
	}
	return format(result)
}

func rowKey(r []string, idx []int) string {
	parts := make([]string, len(idx))
	for k, j := range idx {
		parts[k] = r[j]
	}
	return strings.Join(parts, "\x1f")
}

// Expressions see the current row as row["Header"]. Numeric cells arrive as
// float64, everything else as string.
func compile(src string) (*vm.Program, error) {
	program, err := expr.Compile(src, exprOptions()...)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", src, err)
	}
	return program, nil
}

func eval(program *vm.Program, t *sheet.Table, i int) (interface{}, error) {
	row := make(map[string]interface{}, len(t.Header))
	for j, h := range t.Header {
		v := t.Rows[i][j]
		if s := strings.TrimSpace(v); sheet.IsNumber(s) {
			f, _ := strconv.ParseFloat(s, 64)
			row[h] = f
		} else {
			row[h] = v
		}
	}
	return expr.Run(program, map[string]interface{}{"row": row})
}

func exprOptions() []expr.Option {
	return []expr.Option{
		expr.Env(map[string]interface{}{"row": map[string]interface{}{}}),
		expr.Function("num", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("num expects one argument")
			}
			return toNumber(params[0]), nil
		}),
		expr.Function("str", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("str expects one argument")
			}
			return format(params[0]), nil
		}),
		expr.Function("empty", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("empty expects one argument")
			}
			return strings.TrimSpace(format(params[0])) == "", nil
		}),
	}
}

// toNumber is lenient: blanks and text become 0.
func toNumber(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case bool:
		if n {
			return 1
		}
	}
	return 0
}

func format(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
