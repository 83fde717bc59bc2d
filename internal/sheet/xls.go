package sheet

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
)

type rawSheet struct {
	name string
	grid [][]string
}

// readXLS reads every sheet of a legacy BIFF workbook. The decoder panics on
// some corrupt inputs, so panics are turned into errors.
func readXLS(data []byte) (sheets []rawSheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			sheets = nil
			err = fmt.Errorf("could not read .xls data: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("could not read .xls data: %w", err)
	}
	if wb == nil {
		return nil, fmt.Errorf("could not read .xls data: no Workbook stream found")
	}

	for i := 0; i < wb.NumSheets(); i++ {
		s := wb.GetSheet(i)
		if s == nil {
			continue
		}
		var grid [][]string
		for r := 0; r <= int(s.MaxRow); r++ {
			row := sheetRow(s, r)
			if row == nil {
				grid = append(grid, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c] = row.Col(c)
			}
			grid = append(grid, cells)
		}
		sheets = append(sheets, rawSheet{name: s.Name, grid: trimTrailingEmpty(grid)})
	}

	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in .xls data")
	}
	return sheets, nil
}

// sheetRow returns row r, or nil when the sheet has no record for it. The
// decoder's own Row dereferences missing rows.
func sheetRow(s *xls.WorkSheet, r int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return s.Row(r)
}
