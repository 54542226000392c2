package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/13102180531/ExcelQuery/pkg/apperrors"
)

// AllowedExtensions lists the upload extensions the loader understands.
// Legacy .xls (BIFF) is not supported; excelize reads OOXML only.
var AllowedExtensions = []string{".csv", ".xlsx", ".xlsm"}

// dateLayouts are tried in order when parsing date-like strings. ISO forms
// first; the translator is instructed to emit YYYY-MM-DD.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
}

// ParseDate parses a date-like string against the known layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ExtensionAllowed reports whether the file name has a loadable extension.
func ExtensionAllowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Load reads a dataset from disk. The dataset is named after originalName
// (the name the user uploaded) so responses can report their sources.
// Column names are normalized and per-column types inferred during load.
func Load(path, originalName string) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDataFileMissing, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var (
		header []string
		raw    [][]string
		err    error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		header, raw, err = readCSV(path)
	case ".xlsx", ".xlsm":
		header, raw, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFileType, ext)
	}
	if err != nil {
		return nil, err
	}

	return fromRawRows(originalName, header, raw), nil
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func readXLSX(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rows[0], rows[1:], nil
}

// fromRawRows builds a typed dataset out of string cells. Each column is
// scanned once: if every non-empty cell parses as a bool, number or date,
// the whole column is coerced to that type; otherwise it stays text.
// Empty cells become nil (the missing-value marker).
func fromRawRows(name string, header []string, raw [][]string) *Dataset {
	if len(header) == 0 {
		return New(name, nil, nil)
	}

	kinds := make([]Type, len(header))
	for col := range header {
		kinds[col] = scanColumn(raw, col)
	}

	rows := make([][]any, 0, len(raw))
	for _, r := range raw {
		row := make([]any, len(header))
		for col := range header {
			var cell string
			if col < len(r) {
				cell = strings.TrimSpace(r[col])
			}
			if cell == "" {
				row[col] = nil
				continue
			}
			row[col] = convertCell(cell, kinds[col])
		}
		rows = append(rows, row)
	}

	return New(name, header, rows)
}

// scanColumn decides the best storage type for one raw column.
func scanColumn(raw [][]string, col int) Type {
	sawValue := false
	allBool, allFloat, allDate := true, true, true
	for _, r := range raw {
		if col >= len(r) {
			continue
		}
		cell := strings.TrimSpace(r[col])
		if cell == "" {
			continue
		}
		sawValue = true

		lower := strings.ToLower(cell)
		if lower != "true" && lower != "false" {
			allBool = false
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			allFloat = false
		}
		if _, ok := ParseDate(cell); !ok {
			allDate = false
		}
		if !allBool && !allFloat && !allDate {
			return TypeString
		}
	}

	switch {
	case !sawValue:
		return TypeEmpty
	case allBool:
		return TypeBool
	case allFloat:
		return TypeFloat
	case allDate:
		return TypeDatetime
	default:
		return TypeString
	}
}

func convertCell(cell string, kind Type) any {
	switch kind {
	case TypeBool:
		return strings.EqualFold(cell, "true")
	case TypeFloat:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return cell
		}
		return f
	case TypeDatetime:
		t, ok := ParseDate(cell)
		if !ok {
			return cell
		}
		return t
	default:
		return cell
	}
}
