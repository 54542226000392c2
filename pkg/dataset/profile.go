package dataset

import (
	"math/rand"
)

// MaxSampleValues caps how many example values a column profile carries.
const MaxSampleValues = 5

// ColumnProfile describes one column for the translator: its inferred
// storage type, how many distinct non-null values it holds, and a few
// randomly sampled stringified values to ground the language model.
type ColumnProfile struct {
	DType        string   `json:"dtype"`
	UniqueCount  int      `json:"unique_count"`
	SampleValues []string `json:"sample_values"`
}

// Profile derives a profile for every column. An empty dataset (zero rows
// or zero columns) yields an empty map.
func (d *Dataset) Profile() map[string]ColumnProfile {
	profiles := make(map[string]ColumnProfile)
	if d == nil || d.Empty() {
		return profiles
	}

	for col, name := range d.Columns {
		var nonNull []string
		distinct := make(map[string]struct{})
		for _, row := range d.Rows {
			if col >= len(row) || row[col] == nil {
				continue
			}
			s := FormatCell(row[col])
			nonNull = append(nonNull, s)
			distinct[s] = struct{}{}
		}

		profiles[name] = ColumnProfile{
			DType:        string(d.Types[col]),
			UniqueCount:  len(distinct),
			SampleValues: sampleValues(nonNull, MaxSampleValues),
		}
	}
	return profiles
}

// sampleValues draws up to n values without replacement.
func sampleValues(values []string, n int) []string {
	if len(values) == 0 {
		return []string{}
	}
	idx := rand.Perm(len(values))
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]string, 0, n)
	for _, i := range idx[:n] {
		out = append(out, values[i])
	}
	return out
}
