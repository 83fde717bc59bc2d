package sheet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// buildWorkbook returns .xlsx bytes with a data sheet and a second untouched
// sheet carrying a styled cell.
func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]interface{}{
		{"Review", "Score", "Label"},
		{"great product", 5, ""},
		{"terrible", 1, ""},
		{"okay I guess", 3, ""},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	if _, err := f.NewSheet("Notes"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	if err := f.SetCellValue("Notes", "B3", "keep me"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		t.Fatalf("NewStyle: %v", err)
	}
	if err := f.SetCellStyle("Notes", "B3", "B3", style); err != nil {
		t.Fatalf("SetCellStyle: %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestLoadXLSXAndSave(t *testing.T) {
	doc, err := Load("reviews.xlsx", buildWorkbook(t), Selector{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer doc.Close()

	if doc.Format != FormatXLSX {
		t.Errorf("expected xlsx, got %s", doc.Format)
	}
	if doc.SheetName() != "Sheet1" || doc.SheetNumber() != 1 {
		t.Errorf("unexpected selected sheet %q (%d)", doc.SheetName(), doc.SheetNumber())
	}
	if doc.MaxRows() != 3 {
		t.Fatalf("expected 3 data rows, got %d", doc.MaxRows())
	}
	if got := doc.Cell(1, 0); got != "terrible" {
		t.Errorf("expected 'terrible', got %q", got)
	}

	if err := doc.SetCell(1, 2, "negative"); err != nil {
		t.Fatalf("SetCell failed: %v", err)
	}
	data, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue("Sheet1", "C3"); v != "negative" {
		t.Errorf("expected C3 'negative', got %q", v)
	}
	if v, _ := f.GetCellValue("Sheet1", "A2"); v != "great product" {
		t.Errorf("expected A2 untouched, got %q", v)
	}
	if v, _ := f.GetCellValue("Sheet1", "B2"); v != "5" {
		t.Errorf("expected B2 '5', got %q", v)
	}
	if v, _ := f.GetCellValue("Notes", "B3"); v != "keep me" {
		t.Errorf("expected other sheet preserved, got %q", v)
	}
	style, err := f.GetCellStyle("Notes", "B3")
	if err != nil || style == 0 {
		t.Errorf("expected style on Notes!B3 to survive, got %d (%v)", style, err)
	}
}

func TestLoadSelectsSheet(t *testing.T) {
	data := buildWorkbook(t)

	doc, err := Load("book.xlsx", data, Selector{Index: 2})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.SheetName() != "Notes" {
		t.Errorf("expected Notes, got %q", doc.SheetName())
	}
	doc.Close()

	doc, err = Load("book.xlsx", data, Selector{Name: "Notes"})
	if err != nil {
		t.Fatalf("Load by name failed: %v", err)
	}
	if doc.SheetNumber() != 2 {
		t.Errorf("expected sheet 2, got %d", doc.SheetNumber())
	}
	doc.Close()

	if _, err := Load("book.xlsx", data, Selector{Index: 5}); !errors.Is(err, ErrNoSuchSheet) {
		t.Errorf("expected ErrNoSuchSheet for out-of-range index, got %v", err)
	}
	if _, err := Load("book.xlsx", data, Selector{Name: "Missing"}); !errors.Is(err, ErrNoSuchSheet) {
		t.Errorf("expected ErrNoSuchSheet for unknown name, got %v", err)
	}
}

func TestReplaceTableClearsLeftovers(t *testing.T) {
	doc, err := Load("reviews.xlsx", buildWorkbook(t), Selector{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer doc.Close()

	next := &Table{
		Header: []string{"Review"},
		Rows:   [][]string{{"great product"}},
	}
	if err := doc.ReplaceTable(next); err != nil {
		t.Fatalf("ReplaceTable failed: %v", err)
	}

	data, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue("Sheet1", "A2"); v != "great product" {
		t.Errorf("expected A2 'great product', got %q", v)
	}
	for _, cell := range []string{"B1", "C1", "B2", "A3", "A4", "B4"} {
		if v, _ := f.GetCellValue("Sheet1", cell); v != "" {
			t.Errorf("expected %s cleared, got %q", cell, v)
		}
	}
	if v, _ := f.GetCellValue("Notes", "B3"); v != "keep me" {
		t.Errorf("expected other sheet preserved, got %q", v)
	}
}

func TestLoadCSV(t *testing.T) {
	csv := "\xEF\xBB\xBFName,Age\nAlice,30\nBob,25\n\n"
	doc, err := Load("people.csv", []byte(csv), Selector{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer doc.Close()

	if doc.Table().Header[0] != "Name" {
		t.Errorf("expected BOM stripped, got %q", doc.Table().Header[0])
	}
	if doc.MaxRows() != 2 {
		t.Errorf("expected 2 data rows, got %d", doc.MaxRows())
	}

	if err := doc.SetCell(0, 2, "ok"); err != nil {
		t.Fatalf("SetCell failed: %v", err)
	}
	data, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue("Sheet1", "C2"); v != "ok" {
		t.Errorf("expected C2 'ok', got %q", v)
	}
	if v, _ := f.GetCellValue("Sheet1", "B3"); v != "25" {
		t.Errorf("expected B3 '25', got %q", v)
	}
	if doc.OutputName("") != "smart_people.xlsx" {
		t.Errorf("unexpected output name %q", doc.OutputName(""))
	}
}

func TestLoadCSVGBK(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("姓名,城市\n张三,北京\n"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc, err := Load("users.csv", encoded, Selector{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer doc.Close()

	if doc.Table().Header[0] != "姓名" {
		t.Errorf("expected decoded header, got %q", doc.Table().Header[0])
	}
	if doc.Cell(0, 1) != "北京" {
		t.Errorf("expected 北京, got %q", doc.Cell(0, 1))
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.xlsx"), Selector{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSaveLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reviews.xlsx")
	if err := os.WriteFile(path, buildWorkbook(t), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	doc, err := Open(path, Selector{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := doc.SetCell(0, 2, "positive"); err != nil {
		t.Fatalf("SetCell failed: %v", err)
	}
	if _, err := doc.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := doc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the input file, found %d entries", len(entries))
	}
}

func TestSafeSheetName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Data", "Data"},
		{"", "Sheet1"},
		{"a/b", "Sheet1"},
		{"'quoted'", "Sheet1"},
		{"this name is far too long for excel to accept", "Sheet1"},
	}
	for _, tt := range tests {
		if got := safeSheetName(tt.in, 0); got != tt.want {
			t.Errorf("safeSheetName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadXLS(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "orders.xls"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	doc, err := Load("orders.xls", data, Selector{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer doc.Close()

	if doc.Format != FormatXLS {
		t.Errorf("Format = %q", doc.Format)
	}
	if got := doc.SheetNames(); len(got) != 2 || got[0] != "Orders" || got[1] != "Notes" {
		t.Fatalf("SheetNames = %v", got)
	}
	tbl := doc.Table()
	if len(tbl.Header) != 2 || tbl.Header[0] != "Region" || tbl.Header[1] != "Amount" {
		t.Errorf("Header = %v", tbl.Header)
	}
	if doc.MaxRows() != 2 {
		t.Fatalf("MaxRows = %d, want 2", doc.MaxRows())
	}
	for _, tt := range []struct {
		row, col int
		want     string
	}{
		{0, 0, "North"}, {0, 1, "1200"}, {1, 0, "South"}, {1, 1, "3.5"},
	} {
		if got := doc.Cell(tt.row, tt.col); got != tt.want {
			t.Errorf("Cell(%d, %d) = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}

	// The second sheet has no record for its second row.
	notes, err := Load("orders.xls", data, Selector{Name: "Notes"})
	if err != nil {
		t.Fatalf("Load Notes: %v", err)
	}
	defer notes.Close()
	if notes.MaxRows() != 2 || notes.Cell(0, 0) != "" || notes.Cell(1, 0) != "later" {
		t.Errorf("Notes rows = %v", notes.Table().Rows)
	}

	saved, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(saved))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); len(got) != 2 || got[1] != "Notes" {
		t.Errorf("saved sheets = %v", got)
	}
	if v, _ := f.GetCellValue("Orders", "B2"); v != "1200" {
		t.Errorf("Orders!B2 = %q", v)
	}
}

func TestLoadXLSCorrupt(t *testing.T) {
	fixture, err := os.ReadFile(filepath.Join("..", "..", "testdata", "orders.xls"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	// Point the first shared-string cell past the end of the string table.
	badIndex := append([]byte(nil), fixture...)
	i := bytes.Index(badIndex, []byte{0xFD, 0x00, 0x0A, 0x00})
	if i < 0 {
		t.Fatal("fixture has no LABELSST record")
	}
	binary.LittleEndian.PutUint32(badIndex[i+10:], 999)

	tests := []struct {
		name string
		data []byte
	}{
		{"not ole", []byte("definitely not a spreadsheet")},
		{"truncated", fixture[:600]},
		{"bad string index", badIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("orders.xls", tt.data, Selector{})
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), ".xls") {
				t.Errorf("error should name the format: %v", err)
			}
		})
	}
}

func TestSetCellWritesText(t *testing.T) {
	inputs := map[string][]byte{
		"scores.csv":  []byte("name,score\nA,7\n"),
		"scores.xlsx": buildWorkbook(t),
	}
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			doc, err := Load(name, data, Selector{})
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			defer doc.Close()
			if err := doc.SetCell(0, 2, "42"); err != nil {
				t.Fatalf("SetCell failed: %v", err)
			}
			saved, err := doc.Save()
			if err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			f, err := excelize.OpenReader(bytes.NewReader(saved))
			if err != nil {
				t.Fatalf("OpenReader: %v", err)
			}
			defer f.Close()

			sheet := f.GetSheetName(0)
			typ, err := f.GetCellType(sheet, "C2")
			if err != nil {
				t.Fatal(err)
			}
			if typ != excelize.CellTypeSharedString && typ != excelize.CellTypeInlineString {
				t.Errorf("C2 type = %v, want a text cell", typ)
			}
			if v, _ := f.GetCellValue(sheet, "C2"); v != "42" {
				t.Errorf("C2 = %q", v)
			}
		})
	}

	// Source numbers from a CSV still become numbers.
	doc, err := Load("scores.csv", []byte("name,score\nA,7\n"), Selector{})
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()
	saved, err := doc.Save()
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(saved))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if typ, _ := f.GetCellType("Sheet1", "B2"); typ == excelize.CellTypeSharedString || typ == excelize.CellTypeInlineString {
		t.Errorf("B2 type = %v, want a number", typ)
	}
}
