// Package coord parses the cell coordinate expressions users give to the
// analysis tools: "D2", "D2:D40", or comma-separated lists like "A2,C2:C9".
//
// Spreadsheet row 1 is the header. Parsed ranges are expressed in data-row
// indices, so spreadsheet row 2 is data row 0.
package coord

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrInvalid is wrapped by every validation and parse failure.
var ErrInvalid = errors.New("invalid coordinate expression")

var (
	partPattern = regexp.MustCompile(`^[A-Z]+[0-9]+(:[A-Z]+[0-9]+)?$`)
	cellPattern = regexp.MustCompile(`^([A-Z]+)([0-9]+)$`)
	digits      = regexp.MustCompile(`[0-9]`)
)

// Range is one column span over data rows.
type Range struct {
	Column   string `json:"column"`
	ColIndex int    `json:"colIndex"` // 0-based
	StartRow int    `json:"startRow"` // 0-based data row
	EndRow   int    `json:"endRow"`   // inclusive; EndRow < StartRow means empty
}

// Contains reports whether data row i falls inside the range.
func (r Range) Contains(i int) bool {
	return i >= r.StartRow && i <= r.EndRow
}

// Len returns the number of data rows covered.
func (r Range) Len() int {
	if r.EndRow < r.StartRow {
		return 0
	}
	return r.EndRow - r.StartRow + 1
}

// Rows returns the data-row indices covered, in order.
func (r Range) Rows() []int {
	rows := make([]int, 0, r.Len())
	for i := r.StartRow; i <= r.EndRow; i++ {
		rows = append(rows, i)
	}
	return rows
}

// Normalize upper-cases the expression and maps full-width separators to ASCII.
func Normalize(expr string) string {
	expr = strings.TrimSpace(strings.ToUpper(expr))
	expr = strings.ReplaceAll(expr, "：", ":")
	expr = strings.ReplaceAll(expr, "，", ",")
	return expr
}

// Validate checks the expression syntax. Single-column tools reject lists
// and ranges that span two columns.
func Validate(expr string, singleColumn bool) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("%w: Column expression cannot be empty", ErrInvalid)
	}

	expr = Normalize(expr)
	if singleColumn && strings.Contains(expr, ",") {
		return fmt.Errorf("%w: Single column analysis tool does not support multi-column syntax (e.g., 'A,B'). Please use 'D2' format", ErrInvalid)
	}

	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if !digits.MatchString(part) {
			return fmt.Errorf("%w: Expression '%s' is missing starting row number (e.g., 'H2')", ErrInvalid, part)
		}
		if !partPattern.MatchString(part) {
			return fmt.Errorf("%w: Unable to parse '%s'. Please check the format (examples: 'A2' or 'A2:A10')", ErrInvalid, part)
		}
		if singleColumn && strings.Contains(part, ":") {
			ends := strings.SplitN(part, ":", 2)
			a := cellPattern.FindStringSubmatch(ends[0])
			b := cellPattern.FindStringSubmatch(ends[1])
			if a[1] != b[1] {
				return fmt.Errorf("%w: Single column tool does not support cross-column ranges. Please use multi-column analysis tool", ErrInvalid)
			}
		}
	}
	return nil
}

// Parse turns a single "D2" or "D2:D10" expression into a Range over a sheet
// with maxRows data rows. An open expression runs to the last data row; a
// closed one is clamped to it.
func Parse(expr string, maxRows int) (Range, error) {
	expr = Normalize(expr)
	ends := strings.SplitN(expr, ":", 2)

	col, colIdx, start, err := parseCell(ends[0])
	if err != nil {
		return Range{}, err
	}

	end := maxRows - 1
	if len(ends) == 2 {
		_, _, rawEnd, err := parseCell(ends[1])
		if err != nil {
			return Range{}, err
		}
		if rawEnd < end {
			end = rawEnd
		}
	}

	return Range{Column: col, ColIndex: colIdx, StartRow: start, EndRow: end}, nil
}

// ParseList parses a comma-separated list of expressions.
func ParseList(expr string, maxRows int) ([]Range, error) {
	expr = Normalize(expr)
	var ranges []Range
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := Parse(part, maxRows)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: no ranges in %q", ErrInvalid, expr)
	}
	return ranges, nil
}

// ColumnIndex converts column letters ("A", "AB") to a 0-based index.
func ColumnIndex(letters string) (int, error) {
	n, err := excelize.ColumnNameToNumber(strings.ToUpper(strings.TrimSpace(letters)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return n - 1, nil
}

// ColumnName converts a 0-based column index to letters.
func ColumnName(idx int) string {
	name, err := excelize.ColumnNumberToName(idx + 1)
	if err != nil {
		return ""
	}
	return name
}

// SheetRow maps a 0-based data row to its 1-based spreadsheet row.
func SheetRow(dataRow int) int {
	return dataRow + 2
}

func parseCell(s string) (string, int, int, error) {
	m := cellPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", 0, 0, fmt.Errorf("%w: Unable to parse '%s'. Please check the format (examples: 'A2' or 'A2:A10')", ErrInvalid, s)
	}
	colIdx, err := ColumnIndex(m[1])
	if err != nil {
		return "", 0, 0, err
	}
	rowNum, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: row number in %q: %v", ErrInvalid, s, err)
	}
	row := rowNum - 2
	if row < 0 {
		row = 0
	}
	return m[1], colIdx, row, nil
}
