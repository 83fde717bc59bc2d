package sheet

import (
	"errors"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    Format
		wantErr bool
	}{
		{"data.xlsx", nil, FormatXLSX, false},
		{"DATA.XLSX", nil, FormatXLSX, false},
		{"legacy.xls", nil, FormatXLS, false},
		{"export.csv", nil, FormatCSV, false},
		{"upload", []byte("PK\x03\x04rest"), FormatXLSX, false},
		{"upload", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, FormatXLS, false},
		{"upload", []byte("a,b\n1,2\n"), FormatCSV, false},
		{"notes.txt", nil, "", true},
		{"report.docx", nil, "", true},
	}

	for _, tt := range tests {
		got, err := DetectFormat(tt.name, tt.data)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("DetectFormat(%q): expected ErrUnsupportedFormat, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("DetectFormat(%q): unexpected error %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DetectFormat(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		original string
		override string
		want     string
	}{
		{"reviews.xlsx", "", "smart_reviews.xlsx"},
		{"/tmp/in/data.csv", "", "smart_data.xlsx"},
		{`C:\Users\me\book.xls`, "", "smart_book.xlsx"},
		{"reviews.xlsx", "labelled", "labelled.xlsx"},
		{"reviews.xlsx", "labelled.csv", "labelled.xlsx"},
		{"reviews.xlsx", "final.xlsx", "final.xlsx"},
	}

	for _, tt := range tests {
		if got := OutputName(tt.original, tt.override); got != tt.want {
			t.Errorf("OutputName(%q, %q) = %q, want %q", tt.original, tt.override, got, tt.want)
		}
	}
}
