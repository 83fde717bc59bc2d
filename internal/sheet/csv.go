package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV parses CSV bytes into a grid. Input that is not valid UTF-8 is
// decoded as GBK, the usual encoding of Chinese-locale Excel exports.
func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("CSV is neither UTF-8 nor GBK: %w", err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	grid, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not parse CSV: %w", err)
	}
	return trimTrailingEmpty(grid), nil
}

// trimTrailingEmpty drops blank rows at the end of a grid.
func trimTrailingEmpty(grid [][]string) [][]string {
	for len(grid) > 0 {
		last := grid[len(grid)-1]
		blank := true
		for _, c := range last {
			if c != "" {
				blank = false
				break
			}
		}
		if !blank {
			break
		}
		grid = grid[:len(grid)-1]
	}
	return grid
}
