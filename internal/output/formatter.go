// Package output renders command results for terminals and scripts.
package output

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// maxColumnWidth caps a rendered column; longer cells end in "~".
const maxColumnWidth = 40

// Table renders rows as an aligned text table. The first row is the header.
// limit caps the data rows shown; zero shows all.
func Table(w io.Writer, title string, rows [][]string, limit int) {
	headerStyle := color.New(color.Bold, color.FgCyan)
	dim := color.New(color.FgHiBlack)

	if title != "" {
		headerStyle.Fprintf(w, "Sheet: %s\n", title)
	}
	if len(rows) == 0 {
		dim.Fprintln(w, "  (empty)")
		return
	}

	widths := columnWidths(rows)
	writeRow(w, rows[0], widths, color.New(color.Bold))

	dim.Fprint(w, "  ")
	for j, width := range widths {
		if j > 0 {
			dim.Fprint(w, "+-")
		}
		dim.Fprint(w, strings.Repeat("-", width+1))
	}
	fmt.Fprintln(w)

	data := rows[1:]
	shown := len(data)
	if limit > 0 && shown > limit {
		shown = limit
	}
	for _, row := range data[:shown] {
		writeRow(w, row, widths, nil)
	}
	if shown < len(data) {
		dim.Fprintf(w, "  ... %d more rows\n", len(data)-shown)
	}
	dim.Fprintf(w, "  (%d rows)\n", len(data))
}

func columnWidths(rows [][]string) []int {
	var widths []int
	for _, row := range rows {
		for j, cell := range row {
			for len(widths) <= j {
				widths = append(widths, 3)
			}
			if n := utf8.RuneCountInString(cell); n > widths[j] {
				widths[j] = n
			}
		}
	}
	for i := range widths {
		if widths[i] > maxColumnWidth {
			widths[i] = maxColumnWidth
		}
	}
	return widths
}

func writeRow(w io.Writer, row []string, widths []int, style *color.Color) {
	fmt.Fprint(w, "  ")
	for j, width := range widths {
		if j > 0 {
			fmt.Fprint(w, "| ")
		}
		cell := ""
		if j < len(row) {
			cell = strings.ReplaceAll(row[j], "\n", " ")
		}
		runes := []rune(cell)
		if len(runes) > width {
			cell = string(runes[:width-1]) + "~"
			runes = []rune(cell)
		}
		padded := cell + strings.Repeat(" ", width-len(runes)+1)
		if style != nil {
			style.Fprint(w, padded)
		} else {
			fmt.Fprint(w, padded)
		}
	}
	fmt.Fprintln(w)
}

// Summary prints a labelled result block such as a tool outcome.
func Summary(w io.Writer, message string, fields [][2]string) {
	green := color.New(color.FgGreen)
	green.Fprintf(w, "%s\n", message)
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		fmt.Fprintf(w, "  %-10s %s\n", f[0]+":", f[1])
	}
}
