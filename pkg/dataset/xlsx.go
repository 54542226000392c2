package dataset

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ResultSheetName is the sheet holding materialized query results.
const ResultSheetName = "Query_Results"

// XLSXContentType is the MIME type for rendered workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX materializes the dataset as a downloadable workbook: one sheet,
// a header row of column names, then one row per record. Missing values
// become empty cells, dates are rendered as ISO strings.
func WriteXLSX(d *Dataset) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultSheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(d.Columns))
	for i, c := range d.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(ResultSheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, row := range d.Rows {
		cells := make([]any, len(d.Columns))
		for col := range d.Columns {
			if col >= len(row) || row[col] == nil {
				cells[col] = ""
				continue
			}
			cells[col] = FormatCell(row[col])
		}
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("cell reference for row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(ResultSheetName, ref, &cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
