// Package sheet loads CSV and Excel files into an editable document and
// saves the result as .xlsx.
//
// Everything happens in memory. An .xlsx input is edited in place so cells,
// styles, sheets and charts the caller does not touch are written back
// unchanged. CSV and .xls inputs are rebuilt as a new workbook on save.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Selector picks the working sheet. Index is 1-based; a zero Selector picks
// the first sheet.
type Selector struct {
	Index int    `json:"index,omitempty" yaml:"index,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Document is a loaded spreadsheet with one selected sheet.
type Document struct {
	Name   string
	Format Format

	names    []string
	tables   []*Table
	selected int
	file     *excelize.File

	// literal holds cells set through SetCell before a workbook exists.
	// They are saved as text, like SetCell on a live workbook.
	literal map[cellRef]bool
}

type cellRef struct{ sheet, row, col int }

// Open reads a spreadsheet from disk.
func Open(path string, sel Selector) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s — check that the path is correct", path)
		}
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	return Load(path, data, sel)
}

// Load parses spreadsheet bytes. name supplies the extension and the base
// of the output file name.
func Load(name string, data []byte, sel Selector) (*Document, error) {
	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}

	d := &Document{Name: baseName(name), Format: format}

	switch format {
	case FormatXLSX:
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("could not open %s — is this a valid .xlsx file? %w", d.Name, err)
		}
		d.file = f
		d.names = f.GetSheetList()
		d.tables = make([]*Table, len(d.names))
	case FormatXLS:
		sheets, err := readXLS(data)
		if err != nil {
			return nil, err
		}
		for _, s := range sheets {
			d.names = append(d.names, s.name)
			d.tables = append(d.tables, NewTable(s.grid))
		}
	case FormatCSV:
		grid, err := readCSV(data)
		if err != nil {
			return nil, err
		}
		d.names = []string{"Sheet1"}
		d.tables = []*Table{NewTable(grid)}
	}

	if err := d.selectSheet(sel); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// ErrNoSuchSheet matches errors from a Selector that names no sheet.
var ErrNoSuchSheet = errors.New("no such sheet")

type selectError struct{ msg string }

func (e *selectError) Error() string        { return e.msg }
func (e *selectError) Is(target error) bool { return target == ErrNoSuchSheet }

func selectErrorf(format string, args ...any) error {
	return &selectError{msg: fmt.Sprintf(format, args...)}
}

func (d *Document) selectSheet(sel Selector) error {
	if len(d.names) == 0 {
		return fmt.Errorf("no sheets found in %s", d.Name)
	}

	switch {
	case sel.Name != "":
		found := -1
		for i, n := range d.names {
			if n == sel.Name {
				found = i
				break
			}
		}
		if found < 0 {
			return selectErrorf("sheet %q not found — available sheets: %v", sel.Name, d.names)
		}
		d.selected = found
	case sel.Index < 0:
		return selectErrorf("sheet number must be greater than 0")
	case sel.Index > len(d.names):
		return selectErrorf("Sheet index %d is out of range. File has %d sheets", sel.Index, len(d.names))
	case sel.Index > 0:
		d.selected = sel.Index - 1
	default:
		d.selected = 0
	}

	if d.tables[d.selected] == nil {
		rows, err := d.file.GetRows(d.names[d.selected])
		if err != nil {
			return fmt.Errorf("could not read sheet %q: %w", d.names[d.selected], err)
		}
		d.tables[d.selected] = NewTable(rows)
	}
	return nil
}

// SheetName returns the selected sheet's name.
func (d *Document) SheetName() string {
	return d.names[d.selected]
}

// SheetNumber returns the selected sheet's 1-based position.
func (d *Document) SheetNumber() int {
	return d.selected + 1
}

// SheetNames lists every sheet in workbook order.
func (d *Document) SheetNames() []string {
	return append([]string(nil), d.names...)
}

// Table returns the selected sheet's data. Mutate it through SetCell or
// ReplaceTable so the workbook stays in sync.
func (d *Document) Table() *Table {
	return d.tables[d.selected]
}

// MaxRows is the number of data rows in the selected sheet.
func (d *Document) MaxRows() int {
	return len(d.Table().Rows)
}

// Cell reads a value by data row and 0-based column.
func (d *Document) Cell(row, col int) string {
	return d.Table().Cell(row, col)
}

// SetCell writes a text value by data row and 0-based column.
func (d *Document) SetCell(row, col int, value string) error {
	d.Table().Set(row, col, value)
	if d.file == nil {
		if d.literal == nil {
			d.literal = make(map[cellRef]bool)
		}
		d.literal[cellRef{d.selected, row, col}] = true
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(col+1, row+2)
	if err != nil {
		return fmt.Errorf("invalid cell coordinates: %w", err)
	}
	if err := d.file.SetCellValue(d.SheetName(), cell, value); err != nil {
		return fmt.Errorf("could not set cell %s: %w", cell, err)
	}
	return nil
}

// ReplaceTable swaps the selected sheet's contents for t. Other sheets are
// left alone.
func (d *Document) ReplaceTable(t *Table) error {
	old := d.Table()
	d.tables[d.selected] = t
	for ref := range d.literal {
		if ref.sheet == d.selected {
			delete(d.literal, ref)
		}
	}
	if d.file == nil {
		return nil
	}

	name := d.SheetName()
	grid := t.Grid()
	if err := writeGrid(d.file, name, grid, nil); err != nil {
		return err
	}

	newWidth := t.Width()
	oldWidth := old.Width()
	for r := 0; r < len(old.Rows)+1; r++ {
		for c := 0; c < oldWidth; c++ {
			if r < len(grid) && c < newWidth {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("invalid cell coordinates: %w", err)
			}
			if err := d.file.SetCellValue(name, cell, nil); err != nil {
				return fmt.Errorf("could not clear cell %s: %w", cell, err)
			}
		}
	}
	return nil
}

// File returns the workbook backing the document. CSV and .xls documents are
// converted to a new workbook on first use.
func (d *Document) File() (*excelize.File, error) {
	if d.file != nil {
		return d.file, nil
	}

	f := excelize.NewFile()
	for i, name := range d.names {
		sheetName := safeSheetName(name, i)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
				f.Close()
				return nil, fmt.Errorf("could not rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not create sheet %q: %w", sheetName, err)
		}
		d.names[i] = sheetName

		sheetIdx := i
		literal := func(r, c int) bool { return d.literal[cellRef{sheetIdx, r - 1, c}] }
		if err := writeGrid(f, sheetName, d.tables[i].Grid(), literal); err != nil {
			f.Close()
			return nil, err
		}
	}
	d.file = f
	return f, nil
}

// Save serialises the workbook to .xlsx bytes.
func (d *Document) Save() ([]byte, error) {
	f, err := d.File()
	if err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// OutputName is the file name Save's bytes should be stored under.
func (d *Document) OutputName(override string) string {
	return OutputName(d.Name, override)
}

// Close releases the workbook, including any spill files excelize created
// for very large sheets.
func (d *Document) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// writeGrid stores grid from A1. Numeric strings become numbers unless
// literal reports the grid cell as text.
func writeGrid(f *excelize.File, sheet string, grid [][]string, literal func(r, c int) bool) error {
	for r, row := range grid {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("invalid cell coordinates: %w", err)
			}
			var value interface{}
			switch {
			case v == "":
			case literal != nil && literal(r, c):
				value = v
			default:
				value = TypedValue(v)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("could not set cell %s: %w", cell, err)
			}
		}
	}
	return nil
}

// safeSheetName falls back to "SheetN" for names Excel would reject.
func safeSheetName(name string, i int) string {
	if name == "" || utf8.RuneCountInString(name) > 31 ||
		strings.ContainsAny(name, `:\/?*[]`) ||
		strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return fmt.Sprintf("Sheet%d", i+1)
	}
	return name
}
