package sheet

import (
	"regexp"
	"strconv"
	"strings"
)

// Table is one sheet seen as a header row plus data rows. Rows may be ragged;
// accessors treat missing cells as empty.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Column kinds reported by ColumnKinds.
const (
	KindNumber = "number"
	KindText   = "text"
	KindEmpty  = "empty"
)

var numberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][-+]?[0-9]+)?$`)

// NewTable splits a raw grid into header and data rows.
func NewTable(grid [][]string) *Table {
	t := &Table{}
	if len(grid) == 0 {
		return t
	}
	t.Header = grid[0]
	t.Rows = grid[1:]
	return t
}

// Width is the number of columns of the widest row.
func (t *Table) Width() int {
	w := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Cell returns the value at data row i, column j, or "" when out of bounds.
func (t *Table) Cell(i, j int) string {
	if i < 0 || i >= len(t.Rows) || j < 0 || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}

// Set writes a value, growing the row as needed. Rows beyond the table are not created.
func (t *Table) Set(i, j int, value string) {
	if i < 0 || i >= len(t.Rows) || j < 0 {
		return
	}
	for len(t.Rows[i]) <= j {
		t.Rows[i] = append(t.Rows[i], "")
	}
	t.Rows[i][j] = value
}

// Grid returns header and rows as a single padded grid.
func (t *Table) Grid() [][]string {
	w := t.Width()
	grid := make([][]string, 0, len(t.Rows)+1)
	if len(t.Header) > 0 || len(t.Rows) > 0 {
		grid = append(grid, pad(t.Header, w))
	}
	for _, r := range t.Rows {
		grid = append(grid, pad(r, w))
	}
	return grid
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{Header: append([]string(nil), t.Header...)}
	c.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		c.Rows[i] = append([]string(nil), r...)
	}
	return c
}

// ColumnIndex finds a header by name, case-insensitively after trimming.
func (t *Table) ColumnIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// ColumnKinds classifies each column by its data rows.
func (t *Table) ColumnKinds() []string {
	w := t.Width()
	kinds := make([]string, w)
	for j := 0; j < w; j++ {
		kind := KindEmpty
		for i := range t.Rows {
			v := strings.TrimSpace(t.Cell(i, j))
			if v == "" {
				continue
			}
			if IsNumber(v) {
				if kind == KindEmpty {
					kind = KindNumber
				}
				continue
			}
			kind = KindText
			break
		}
		kinds[j] = kind
	}
	return kinds
}

// Preview renders the header and the first n data rows as a Markdown table.
func (t *Table) Preview(n int) string {
	w := t.Width()
	if w == 0 {
		return "(empty sheet)"
	}

	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(pad(t.Header, w), " | "))
	b.WriteString(" |\n|")
	for j := 0; j < w; j++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for i := 0; i < n && i < len(t.Rows); i++ {
		b.WriteString("| ")
		b.WriteString(strings.Join(pad(t.Rows[i], w), " | "))
		b.WriteString(" |\n")
	}
	return b.String()
}

// IsNumber reports whether s is a plain decimal number. Values with leading
// zeros such as "007" stay text.
func IsNumber(s string) bool {
	return numberPattern.MatchString(s)
}

// TypedValue converts numeric strings to int64 or float64 for writing.
func TypedValue(s string) interface{} {
	if !IsNumber(s) {
		return s
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func pad(row []string, w int) []string {
	out := make([]string, w)
	copy(out, row)
	return out
}
