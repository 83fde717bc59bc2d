package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies an input spreadsheet encoding.
type Format string

// Supported input formats.
const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// MIMEType is the content type of every file this package writes.
const MIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrUnsupportedFormat is returned for files that are not CSV or Excel.
var ErrUnsupportedFormat = errors.New("unsupported file type")

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DetectFormat resolves the format from the file extension. Names without an
// extension (stdin, hashed upload names) fall back to content sniffing.
func DetectFormat(name string, data []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(baseName(name)))
	switch ext {
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".csv":
		return FormatCSV, nil
	case "":
		switch {
		case bytes.HasPrefix(data, zipMagic):
			return FormatXLSX, nil
		case bytes.HasPrefix(data, oleMagic):
			return FormatXLS, nil
		case len(data) > 0:
			return FormatCSV, nil
		}
	}
	return "", fmt.Errorf("%w: %s. Only CSV or Excel files are supported", ErrUnsupportedFormat, name)
}

// OutputName derives the saved file name. Without an override,
// "data.csv" becomes "smart_data.xlsx". Directory components are dropped and
// the result always ends in .xlsx.
func OutputName(original, override string) string {
	if strings.TrimSpace(override) != "" {
		base := baseName(strings.TrimSpace(override))
		switch strings.ToLower(filepath.Ext(base)) {
		case ".xlsx":
			return base
		case ".xls", ".csv":
			base = strings.TrimSuffix(base, filepath.Ext(base))
		}
		return base + ".xlsx"
	}

	base := baseName(original)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" {
		base = "output"
	}
	return "smart_" + base + ".xlsx"
}

// baseName strips both slash styles so names from any host resolve the same.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
