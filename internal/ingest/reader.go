package ingest

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mind-engage/skillway/internal/apierr"
)

const (
	DefaultMaxRows  = 500
	DefaultMaxBytes = 5 << 20
)

// Table is a sheet's header row and the data rows below it. Rows are
// padded to the header width.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Limits bound what Decode accepts.
type Limits struct {
	MaxRows  int
	MaxBytes int
}

func (l Limits) withDefaults() Limits {
	if l.MaxRows <= 0 {
		l.MaxRows = DefaultMaxRows
	}
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxBytes
	}
	return l
}

var zipMagic = []byte("PK\x03\x04")

// Decode reads a base64-encoded spreadsheet. The format comes from the file
// extension, or from the content when the name has none.
func Decode(fileBase64, fileName string, lim Limits) (Table, []byte, error) {
	lim = lim.withDefaults()
	fileBase64 = strings.TrimSpace(fileBase64)
	if fileBase64 == "" {
		return Table{}, nil, apierr.Validationf("no file provided")
	}
	if i := strings.Index(fileBase64, ";base64,"); i >= 0 {
		fileBase64 = fileBase64[i+len(";base64,"):]
	}
	if base64.StdEncoding.DecodedLen(len(fileBase64)) > lim.MaxBytes+3 {
		return Table{}, nil, apierr.Validationf("file exceeds %d MB", lim.MaxBytes>>20)
	}
	raw, err := base64.StdEncoding.DecodeString(fileBase64)
	if err != nil {
		return Table{}, nil, apierr.Validationf("file is not valid base64: %v", err)
	}
	if len(raw) > lim.MaxBytes {
		return Table{}, nil, apierr.Validationf("file exceeds %d MB", lim.MaxBytes>>20)
	}

	var t Table
	switch ext := strings.ToLower(filepath.Ext(fileName)); {
	case ext == ".xls":
		return Table{}, nil, apierr.Validationf("legacy .xls files are not supported, save as .xlsx")
	case ext == ".xlsx" || ext == ".xlsm" || (ext != ".csv" && bytes.HasPrefix(raw, zipMagic)):
		t, err = ReadXLSX(bytes.NewReader(raw))
	default:
		t, err = ReadCSV(bytes.NewReader(raw))
	}
	if err != nil {
		return Table{}, nil, apierr.Validation(fmt.Errorf("read %s: %w", fileName, err))
	}
	if len(t.Rows) == 0 {
		return Table{}, nil, apierr.Validationf("file is empty or has no data rows")
	}
	if len(t.Rows) > lim.MaxRows {
		return Table{}, nil, apierr.Validationf("at most %d rows are allowed, got %d", lim.MaxRows, len(t.Rows))
	}
	return t, raw, nil
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, err
	}
	return newTable(rows), nil
}

// ReadCSV reads comma or semicolon separated text. A UTF-8 byte order mark
// is ignored.
func ReadCSV(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	if first, _, _ := bytes.Cut(data, []byte("\n")); bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		cr.Comma = ';'
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return Table{}, err
	}
	return newTable(rows), nil
}

// newTable splits off the header row, drops blank rows and pads every row
// to the header width.
func newTable(rows [][]string) Table {
	var t Table
	for len(rows) > 0 && blank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return t
	}
	for _, h := range rows[0] {
		t.Headers = append(t.Headers, strings.TrimSpace(h))
	}
	for len(t.Headers) > 0 && t.Headers[len(t.Headers)-1] == "" {
		t.Headers = t.Headers[:len(t.Headers)-1]
	}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		out := make([]string, len(t.Headers))
		for i := range out {
			if i < len(row) {
				out[i] = strings.TrimSpace(row[i])
			}
		}
		t.Rows = append(t.Rows, out)
	}
	return t
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Column returns the index of header h, or -1.
func (t Table) Column(h string) int {
	if h == "" {
		return -1
	}
	for i, x := range t.Headers {
		if x == h {
			return i
		}
	}
	return -1
}
