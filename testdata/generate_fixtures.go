//go:build ignore

// This program generates test fixture files for smartsheet.
package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"unicode/utf16"

	"github.com/xuri/excelize/v2"
)

func main() {
	if err := generateXlsx(); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating sample.xlsx: %v\n", err)
		os.Exit(1)
	}

	if err := generateCSV(); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating sample.csv: %v\n", err)
		os.Exit(1)
	}

	if err := generateXLS(); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating orders.xls: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Test fixtures generated successfully.")
}

var reviews = [][]interface{}{
	{"Product", "Review", "Photo", "Rating"},
	{"Kettle", "Boils fast and looks great on the counter.", "https://example.com/img/kettle.jpg", 5},
	{"Toaster", "Burnt the bread twice in the first week.", "https://example.com/img/toaster.jpg", 2},
	{"Blender", "", "", 4},
	{"Mixer", "Loud, but does the job.", "https://example.com/img/mixer.jpg", 3},
}

var revenue = [][]interface{}{
	{"Month", "Region", "Revenue", "Units"},
	{"2024-01", "North", 12500.5, 310},
	{"2024-01", "South", 9800, 240},
	{"2024-02", "North", 13100, 325},
	{"2024-02", "South", 10250.75, 251},
	{"2024-03", "North", 14020, 349},
	{"2024-03", "South", 11900, 290},
}

func generateXlsx() error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Reviews"); err != nil {
		return err
	}
	if _, err := f.NewSheet("Revenue"); err != nil {
		return err
	}
	for name, rows := range map[string][][]interface{}{"Reviews": reviews, "Revenue": revenue} {
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return err
			}
		}
	}
	return f.SaveAs("testdata/sample.xlsx")
}

func generateCSV() error {
	out := "Month,Region,Revenue,Units\n"
	for _, row := range revenue[1:] {
		out += fmt.Sprintf("%v,%v,%v,%v\n", row...)
	}
	return os.WriteFile("testdata/sample.csv", []byte(out), 0644)
}

// generateXLS writes orders.xls: a BIFF8 workbook in a compound file with
// an "Orders" sheet and a "Notes" sheet whose second row has no record.
// No Go library writes BIFF, so the records are laid out by hand.
func generateXLS() error {
	strs := []string{"Region", "Amount", "North", "South", "Note", "later"}
	var sst bytes.Buffer
	le(&sst, uint32(len(strs)), uint32(len(strs)))
	for _, s := range strs {
		le(&sst, uint16(len(s)), uint8(0))
		sst.WriteString(s)
	}

	var orders bytes.Buffer
	orders.Write(bofRecord(0x10))
	for r := uint16(0); r < 3; r++ {
		orders.Write(rowRecord(r, 2))
	}
	orders.Write(labelRecord(0, 0, 0))
	orders.Write(labelRecord(0, 1, 1))
	orders.Write(labelRecord(1, 0, 2))
	orders.Write(numberRecord(1, 1, 1200))
	orders.Write(labelRecord(2, 0, 3))
	orders.Write(numberRecord(2, 1, 3.5))
	orders.Write(record(0x000A, nil))

	var notes bytes.Buffer
	notes.Write(bofRecord(0x10))
	notes.Write(rowRecord(0, 1))
	notes.Write(rowRecord(2, 1))
	notes.Write(labelRecord(0, 0, 4))
	notes.Write(labelRecord(2, 0, 5))
	notes.Write(record(0x000A, nil))

	globals := func(ordersPos, notesPos uint32) []byte {
		var b bytes.Buffer
		b.Write(bofRecord(0x05))
		b.Write(boundsheetRecord(ordersPos, "Orders"))
		b.Write(boundsheetRecord(notesPos, "Notes"))
		b.Write(record(0x00FC, sst.Bytes()))
		b.Write(record(0x000A, nil))
		return b.Bytes()
	}
	ordersPos := uint32(len(globals(0, 0)))
	notesPos := ordersPos + uint32(orders.Len())

	// Streams under 4096 bytes would go to the mini stream.
	stream := make([]byte, 4096)
	n := copy(stream, globals(ordersPos, notesPos))
	n += copy(stream[n:], orders.Bytes())
	copy(stream[n:], notes.Bytes())

	const (
		free       = 0xFFFFFFFF
		endOfChain = 0xFFFFFFFE
		fatSect    = 0xFFFFFFFD
	)
	var out bytes.Buffer
	le(&out, uint32(0xE011CFD0), uint32(0xE11AB1A1), [16]byte{},
		uint16(0x3E), uint16(3), uint16(0xFFFE), uint16(9), uint16(6), [10]byte{},
		uint32(1), uint32(1), uint32(0), uint32(4096), uint32(endOfChain), uint32(0), uint32(endOfChain), uint32(0),
		uint32(0))
	for i := 0; i < 108; i++ {
		le(&out, uint32(free))
	}

	// Sector 0 is the FAT, 1 the directory and 2-9 the Workbook stream.
	fat := make([]uint32, 128)
	for i := range fat {
		fat[i] = free
	}
	fat[0], fat[1] = fatSect, endOfChain
	for i := 2; i < 9; i++ {
		fat[i] = uint32(i + 1)
	}
	fat[9] = endOfChain
	le(&out, fat)

	dir := make([]byte, 0, 512)
	dir = append(dir, dirEntry("Root Entry", 5, endOfChain, 0, 1)...)
	dir = append(dir, dirEntry("Workbook", 2, 2, 4096, free)...)
	out.Write(dir[:cap(dir)])
	out.Write(stream)

	return os.WriteFile("testdata/orders.xls", out.Bytes(), 0644)
}

func le(b *bytes.Buffer, values ...interface{}) {
	for _, v := range values {
		_ = binary.Write(b, binary.LittleEndian, v)
	}
}

func record(id uint16, body []byte) []byte {
	var b bytes.Buffer
	le(&b, id, uint16(len(body)))
	b.Write(body)
	return b.Bytes()
}

func bofRecord(kind uint16) []byte {
	var b bytes.Buffer
	le(&b, uint16(0x0600), kind, uint16(0), uint16(0x07CC), uint32(0), uint32(0x0600))
	return record(0x0809, b.Bytes())
}

func boundsheetRecord(pos uint32, name string) []byte {
	var b bytes.Buffer
	le(&b, pos, uint8(0), uint8(0), uint8(len(name)), uint8(0))
	b.WriteString(name)
	return record(0x0085, b.Bytes())
}

func rowRecord(row, lastCol uint16) []byte {
	var b bytes.Buffer
	le(&b, row, uint16(0), lastCol, uint16(0xFF), uint16(0), uint16(0), uint32(0x100))
	return record(0x0208, b.Bytes())
}

func labelRecord(row, col uint16, sst uint32) []byte {
	var b bytes.Buffer
	le(&b, row, col, uint16(0x0F), sst)
	return record(0x00FD, b.Bytes())
}

func numberRecord(row, col uint16, v float64) []byte {
	var b bytes.Buffer
	le(&b, row, col, uint16(0x0F), v)
	return record(0x0203, b.Bytes())
}

func dirEntry(name string, typ uint8, start, size, child uint32) []byte {
	var nameBuf [32]uint16
	units := utf16.Encode([]rune(name))
	copy(nameBuf[:], units)
	var b bytes.Buffer
	le(&b, nameBuf, uint16((len(units)+1)*2), typ, uint8(1),
		uint32(0xFFFFFFFF), uint32(0xFFFFFFFF), child,
		[16]byte{}, uint32(0), [16]byte{}, start, size, uint32(0))
	return b.Bytes()
}
