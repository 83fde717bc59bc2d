package chart

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/smartsheet/internal/sheet"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig("```json\n{\"y_axis_cols\": [\" b \", \"c\"]}\n```", 3)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.ChartType != "column" || cfg.Title != "Chart" || cfg.XAxisCol != "A" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.CellPosition != "E2" {
		t.Errorf("expected chart placed at E2, got %s", cfg.CellPosition)
	}
	if strings.Join(cfg.YAxisCols, ",") != "B,C" {
		t.Errorf("unexpected y columns %v", cfg.YAxisCols)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	_, err := ParseConfig("sure, here is a chart", 2)
	if err == nil || !strings.HasPrefix(err.Error(), "Failed to parse LLM Response. Raw: sure") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestDefaultPosition(t *testing.T) {
	tests := []struct {
		lastCol int
		want    string
	}{
		{0, "B2"},
		{3, "E2"},
		{24, "Z2"},
		{40, "Z2"},
	}
	for _, tt := range tests {
		if got := DefaultPosition(tt.lastCol); got != tt.want {
			t.Errorf("DefaultPosition(%d) = %s, want %s", tt.lastCol, got, tt.want)
		}
	}
}

func TestExcelType(t *testing.T) {
	tests := []struct {
		name string
		want excelize.ChartType
	}{
		{"column", excelize.Col},
		{"Column_Stacked", excelize.ColStacked},
		{"pie", excelize.Pie},
		{"bubble", excelize.Bubble},
		{"surface", excelize.Surface3D},
		{"hologram", excelize.Col},
	}
	for _, tt := range tests {
		if got := ExcelType(tt.name); got != tt.want {
			t.Errorf("ExcelType(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPromptListsColumnsAndTypes(t *testing.T) {
	tbl := sheet.NewTable([][]string{{"Month", "Sales"}, {"Jan", "10"}})
	p := Prompt("sales by month", tbl, 2)
	for _, want := range []string{`"sales by month"`, `A="Month"`, `B="Sales"`, "'doughnut'", "Total Data Rows: 2", "| Jan | 10 |"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestDraw(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "Q1 Sales"); err != nil {
		t.Fatalf("SetSheetName: %v", err)
	}
	rows := [][]interface{}{{"Month", "North", "South"}, {"Jan", 10, 7}, {"Feb", 12, 9}, {"Mar", 8, 11}}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Q1 Sales", cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	cfg := Config{ChartType: "line", Title: "Monthly", XAxisCol: "A", YAxisCols: []string{"B", "C"}, CellPosition: "E2"}
	if err := Draw(f, "Q1 Sales", cfg, 4); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	xml := chartXML(t, buf.Bytes())
	for _, want := range []string{"<c:lineChart>", "'Q1 Sales'!$B$2:$B$4", "'Q1 Sales'!$C$1", "'Q1 Sales'!$A$2:$A$4", "Monthly"} {
		if !strings.Contains(xml, want) {
			t.Errorf("chart XML missing %q", want)
		}
	}
}

func TestDrawErrors(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	if err := Draw(f, "Sheet1", Config{ChartType: "column", XAxisCol: "A", CellPosition: "E2"}, 5); err == nil {
		t.Error("expected error without y columns")
	}
	if err := Draw(f, "Sheet1", Config{ChartType: "column", XAxisCol: "A", YAxisCols: []string{"B"}, CellPosition: "E2"}, 1); err == nil {
		t.Error("expected error without data rows")
	}
	if err := Draw(f, "Sheet1", Config{ChartType: "column", XAxisCol: "1", YAxisCols: []string{"B"}, CellPosition: "E2"}, 5); err == nil {
		t.Error("expected error for invalid x column")
	}
}

func chartXML(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	for _, zf := range zr.File {
		if strings.HasPrefix(zf.Name, "xl/charts/chart") && strings.HasSuffix(zf.Name, ".xml") {
			rc, err := zf.Open()
			if err != nil {
				t.Fatalf("open %s: %v", zf.Name, err)
			}
			defer rc.Close()
			b, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read %s: %v", zf.Name, err)
			}
			return strings.NewReplacer("&#39;", "'", "&apos;", "'").Replace(string(b))
		}
	}
	t.Fatal("no chart part in workbook")
	return ""
}
