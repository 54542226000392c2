// Package dataset holds the in-memory tabular dataset that the query engine
// profiles and filters. A dataset is loaded fresh from storage per request;
// nothing here is shared across requests.
package dataset

import (
	"strconv"
	"time"
)

// Type tags a column's inferred storage type.
type Type string

const (
	TypeString   Type = "string"
	TypeFloat    Type = "float64"
	TypeBool     Type = "bool"
	TypeDatetime Type = "datetime"
	TypeEmpty    Type = "empty"
)

// Dataset is a row-major table. Cells are nil, string, float64, bool or
// time.Time. Column names are normalized (see NormalizeColumnName) so they
// match what filter conditions reference.
type Dataset struct {
	// Name identifies the source file the data was loaded from.
	Name    string
	Columns []string
	Types   []Type
	Rows    [][]any
}

// New builds a dataset from raw columns and typed cells. Column names are
// normalized and column types inferred from the cells.
func New(name string, columns []string, rows [][]any) *Dataset {
	normalized := make([]string, len(columns))
	for i, c := range columns {
		normalized[i] = NormalizeColumnName(c)
	}
	d := &Dataset{
		Name:    name,
		Columns: normalized,
		Rows:    rows,
	}
	d.Types = inferTypes(len(normalized), rows)
	return d
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int { return len(d.Rows) }

// NumCols returns the column count.
func (d *Dataset) NumCols() int { return len(d.Columns) }

// Empty reports whether the dataset has no rows or no columns.
func (d *Dataset) Empty() bool { return len(d.Rows) == 0 || len(d.Columns) == 0 }

// ColumnIndex returns the position of the named column.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	for i, c := range d.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Cell returns the value at (row, col); nil marks a missing value.
func (d *Dataset) Cell(row, col int) any {
	return d.Rows[row][col]
}

// Select returns a new dataset containing the rows where mask is true,
// preserving column set, column order and row order.
func (d *Dataset) Select(mask []bool) *Dataset {
	out := &Dataset{
		Name:    d.Name,
		Columns: append([]string(nil), d.Columns...),
		Types:   append([]Type(nil), d.Types...),
	}
	for i, row := range d.Rows {
		if i < len(mask) && mask[i] {
			out.Rows = append(out.Rows, append([]any(nil), row...))
		}
	}
	return out
}

// Copy returns a deep copy of the dataset.
func (d *Dataset) Copy() *Dataset {
	mask := make([]bool, len(d.Rows))
	for i := range mask {
		mask[i] = true
	}
	return d.Select(mask)
}

// Records serializes rows as field-name to value mappings for API
// responses. Dates become ISO-8601 strings, missing values become nil.
func (d *Dataset) Records() []map[string]any {
	records := make([]map[string]any, 0, len(d.Rows))
	for _, row := range d.Rows {
		rec := make(map[string]any, len(d.Columns))
		for i, col := range d.Columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			if t, ok := v.(time.Time); ok {
				rec[col] = t.Format(time.RFC3339)
				continue
			}
			rec[col] = v
		}
		records = append(records, rec)
	}
	return records
}

// FormatCell renders a cell as a string. Missing values render empty.
func FormatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(c)
	case time.Time:
		if c.Hour() == 0 && c.Minute() == 0 && c.Second() == 0 {
			return c.Format("2006-01-02")
		}
		return c.Format(time.RFC3339)
	default:
		return ""
	}
}

// inferTypes derives each column's type tag from its non-null cells.
// A column whose non-null cells share one Go type gets that type's tag;
// mixed columns fall back to string, all-null columns are tagged empty.
func inferTypes(numCols int, rows [][]any) []Type {
	types := make([]Type, numCols)
	for col := 0; col < numCols; col++ {
		var current Type
		mixed := false
		for _, row := range rows {
			if col >= len(row) || row[col] == nil {
				continue
			}
			t := typeOf(row[col])
			if current == "" {
				current = t
			} else if current != t {
				mixed = true
				break
			}
		}
		switch {
		case mixed:
			types[col] = TypeString
		case current == "":
			types[col] = TypeEmpty
		default:
			types[col] = current
		}
	}
	return types
}

func typeOf(v any) Type {
	switch v.(type) {
	case string:
		return TypeString
	case float64:
		return TypeFloat
	case bool:
		return TypeBool
	case time.Time:
		return TypeDatetime
	default:
		return TypeString
	}
}
