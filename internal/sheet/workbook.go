package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet's raw rows, header included.
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// Workbook holds every sheet of a file, for read-only use.
type Workbook struct {
	Sheets []Sheet `json:"sheets"`
}

// ReadFile reads every sheet of a spreadsheet on disk.
func ReadFile(path string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s — check that the path is correct", path)
		}
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	return ReadBytes(path, data)
}

// ReadBytes reads every sheet from spreadsheet bytes.
func ReadBytes(name string, data []byte) (*Workbook, error) {
	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}

	wb := &Workbook{}
	switch format {
	case FormatXLSX:
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("could not read Excel data: %w", err)
		}
		defer f.Close()

		for _, name := range f.GetSheetList() {
			rows, err := f.GetRows(name)
			if err != nil {
				return nil, fmt.Errorf("could not read sheet %q: %w", name, err)
			}
			wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
		}
	case FormatXLS:
		sheets, err := readXLS(data)
		if err != nil {
			return nil, err
		}
		for _, s := range sheets {
			wb.Sheets = append(wb.Sheets, Sheet{Name: s.name, Rows: s.grid})
		}
	case FormatCSV:
		grid, err := readCSV(data)
		if err != nil {
			return nil, err
		}
		wb.Sheets = []Sheet{{Name: "Sheet1", Rows: grid}}
	}
	return wb, nil
}

// GetSheet returns a specific sheet by name.
func (wb *Workbook) GetSheet(name string) (*Sheet, error) {
	for i := range wb.Sheets {
		if wb.Sheets[i].Name == name {
			return &wb.Sheets[i], nil
		}
	}

	available := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		available[i] = s.Name
	}
	return nil, selectErrorf("sheet %q not found — available sheets: %v", name, available)
}

// ToCSV renders the sheet as CSV text.
func (s *Sheet) ToCSV() string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	for _, row := range s.Rows {
		_ = w.Write(row)
	}
	w.Flush()
	return b.String()
}

// RowCount returns the number of rows that hold at least one value.
func (s *Sheet) RowCount() int {
	count := 0
	for _, row := range s.Rows {
		for _, cell := range row {
			if cell != "" {
				count++
				break
			}
		}
	}
	return count
}
