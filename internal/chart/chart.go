// Package chart asks the model for a chart configuration and draws it as a
// native Excel chart.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/smartsheet/internal/ai"
	"github.com/klytics/smartsheet/internal/coord"
	"github.com/klytics/smartsheet/internal/sheet"
)

// ErrRequiresXLSX is returned for CSV and .xls inputs.
var ErrRequiresXLSX = errors.New("Chart generation is only supported for .xlsx files.")

// Config is the model's answer.
type Config struct {
	ChartType    string   `json:"chart_type"`
	Title        string   `json:"title"`
	XAxisCol     string   `json:"x_axis_col"`
	YAxisCols    []string `json:"y_axis_cols"`
	CellPosition string   `json:"cell_position"`
}

// Types lists the supported chart_type values with a description for the prompt.
var Types = []struct {
	Name        string
	Description string
	excel       excelize.ChartType
}{
	{"column", "Vertical Bar Chart (Clustered)", excelize.Col},
	{"column_stacked", "Vertical Bar Chart (Stacked)", excelize.ColStacked},
	{"bar", "Horizontal Bar Chart", excelize.Bar},
	{"line", "Line Chart", excelize.Line},
	{"line_3d", "3D Line Chart", excelize.Line3D},
	{"pie", "Pie Chart", excelize.Pie},
	{"doughnut", "Doughnut Chart", excelize.Doughnut},
	{"area", "Area Chart", excelize.Area},
	{"radar", "Radar Chart", excelize.Radar},
	{"scatter", "Scatter Chart (XY)", excelize.Scatter},
	{"bubble", "Bubble Chart", excelize.Bubble},
	{"surface", "Surface Chart", excelize.Surface3D},
}

// ExcelType maps a chart_type name onto excelize. Unknown names fall back to
// a clustered column chart.
func ExcelType(name string) excelize.ChartType {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range Types {
		if t.Name == name {
			return t.excel
		}
	}
	return excelize.Col
}

// Prompt builds the instruction sent to the model. lastRow is the last used
// sheet row, header included.
func Prompt(request string, t *sheet.Table, lastRow int) string {
	var types strings.Builder
	for _, ct := range Types {
		fmt.Fprintf(&types, "- '%s': %s\n", ct.Name, ct.Description)
	}

	columns := make([]string, len(t.Header))
	for i, h := range t.Header {
		columns[i] = fmt.Sprintf("%s=%q", coord.ColumnName(i), h)
	}

	return fmt.Sprintf(`You are an Excel Data Visualization Expert.

User Request: "%s"

Data Preview (Top 3 rows):
%s
Columns detected: [%s]
Total Data Rows: %d (Header is row 1, Data starts row 2)

TASK:
Analyze the data and the user's intent. Generate a JSON configuration to create the most appropriate Excel chart.

Supported 'chart_type' values:
%s
RETURN JSON FORMAT ONLY (No markdown, no comments):
{
    "chart_type": "one of the supported types above",
    "title": "Chart Title String",
    "x_axis_col": "Column letter for Category/X-axis (e.g., 'A')",
    "y_axis_cols": ["List of Column letters for Values/Y-axis", "e.g., 'B'", "e.g., 'C'"],
    "cell_position": "Top-left cell to insert chart (e.g., 'E2')"
}

LOGIC RULES:
1. For 'scatter' or 'bubble' charts, 'x_axis_col' is numerical X-values. For others, it is Categories/Labels.
2. 'y_axis_cols' must contain numerical columns.
3. 'cell_position' should be to the right of the data to avoid overlapping.
`, request, t.Preview(3), strings.Join(columns, ", "), lastRow, types.String())
}

// ParseConfig decodes the model's JSON and applies defaults. lastCol is the
// number of used columns, for placing the chart beside the data.
func ParseConfig(raw string, lastCol int) (Config, error) {
	var cfg Config
	if err := json.Unmarshal([]byte(ai.StripFences(raw)), &cfg); err != nil {
		return Config{}, fmt.Errorf("Failed to parse LLM Response. Raw: %s", raw)
	}

	cfg.ChartType = strings.ToLower(strings.TrimSpace(cfg.ChartType))
	if cfg.ChartType == "" {
		cfg.ChartType = "column"
	}
	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = "Chart"
	}
	cfg.XAxisCol = strings.ToUpper(strings.TrimSpace(cfg.XAxisCol))
	if cfg.XAxisCol == "" {
		cfg.XAxisCol = "A"
	}
	for i, y := range cfg.YAxisCols {
		cfg.YAxisCols[i] = strings.ToUpper(strings.TrimSpace(y))
	}
	cfg.CellPosition = strings.ToUpper(strings.TrimSpace(cfg.CellPosition))
	if _, _, err := excelize.CellNameToCoordinates(cfg.CellPosition); err != nil {
		cfg.CellPosition = DefaultPosition(lastCol)
	}
	return cfg, nil
}

// DefaultPosition is two columns right of the data, never past Z, on row 2.
func DefaultPosition(lastCol int) string {
	col := lastCol + 2
	if col > 26 {
		col = 26
	}
	if col < 1 {
		col = 1
	}
	cell, _ := excelize.CoordinatesToCellName(col, 2)
	return cell
}

// Draw adds the chart to sheetName. Values run from row 2 to lastRow; the
// series name is the header cell of each Y column.
func Draw(f *excelize.File, sheetName string, cfg Config, lastRow int) error {
	if len(cfg.YAxisCols) == 0 {
		return fmt.Errorf("no Y axis columns to plot")
	}
	if lastRow < 2 {
		return fmt.Errorf("sheet %q has no data rows", sheetName)
	}

	x, err := coord.ColumnIndex(cfg.XAxisCol)
	if err != nil {
		return fmt.Errorf("invalid x_axis_col %q: %w", cfg.XAxisCol, err)
	}
	categories, err := reference(sheetName, x+1, 2, lastRow)
	if err != nil {
		return err
	}

	typ := ExcelType(cfg.ChartType)
	var series []excelize.ChartSeries
	for _, letters := range cfg.YAxisCols {
		y, err := coord.ColumnIndex(letters)
		if err != nil {
			return fmt.Errorf("invalid y_axis_cols entry %q: %w", letters, err)
		}
		name, err := reference(sheetName, y+1, 1, 1)
		if err != nil {
			return err
		}
		values, err := reference(sheetName, y+1, 2, lastRow)
		if err != nil {
			return err
		}
		s := excelize.ChartSeries{Name: name, Categories: categories, Values: values}
		if typ == excelize.Bubble {
			s.Sizes = values
		}
		series = append(series, s)
	}

	chart := &excelize.Chart{
		Type:   typ,
		Series: series,
		Title:  []excelize.RichTextRun{{Text: cfg.Title}},
	}
	if err := f.AddChart(sheetName, cfg.CellPosition, chart); err != nil {
		return fmt.Errorf("Error drawing chart '%s': %w", cfg.ChartType, err)
	}
	return nil
}

// reference builds an absolute range such as 'Sales'!$B$2:$B$20.
func reference(sheetName string, col, fromRow, toRow int) (string, error) {
	from, err := excelize.CoordinatesToCellName(col, fromRow, true)
	if err != nil {
		return "", fmt.Errorf("invalid cell reference: %w", err)
	}
	quoted := "'" + strings.ReplaceAll(sheetName, "'", "''") + "'!"
	if fromRow == toRow {
		return quoted + from, nil
	}
	to, err := excelize.CoordinatesToCellName(col, toRow, true)
	if err != nil {
		return "", fmt.Errorf("invalid cell reference: %w", err)
	}
	return quoted + from + ":" + to, nil
}
