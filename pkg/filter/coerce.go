package filter

import (
	"regexp"
	"strconv"
	"time"

	"github.com/13102180531/ExcelQuery/pkg/dataset"
)

// opClass buckets operators by the coercion they need. The evaluator keys
// its strategy on (class, column hint) so new operator/type combinations
// stay additive.
type opClass int

const (
	classUnknown opClass = iota
	classEquality
	classText
	classOrder
	classMembership
	classNull
)

func classOf(op Operator) opClass {
	switch op {
	case OpEquals, OpNotEquals:
		return classEquality
	case OpContains, OpNotContains:
		return classText
	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual, OpBetween, OpNotBetween:
		return classOrder
	case OpIn, OpNotIn:
		return classMembership
	case OpIsNull, OpIsNotNull:
		return classNull
	default:
		return classUnknown
	}
}

// colHint is the coercion strategy for ordering operators on one column.
type colHint int

const (
	hintText colHint = iota
	hintNumeric
	hintDatetime
)

// isoDatePrefix matches values that start like an ISO date (2024-01-31...).
var isoDatePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// hintFor picks the coercion strategy for an ordering operator: date-like
// columns (native datetime, or text whose values lead with an ISO date)
// compare as dates, numeric-like columns (native float, or a value that
// parses as a number) compare as numbers, everything else lexically.
func hintFor(ds *dataset.Dataset, col int, value any) colHint {
	if ds.Types[col] == dataset.TypeDatetime {
		return hintDatetime
	}
	if columnLooksDated(ds, col) {
		return hintDatetime
	}
	if ds.Types[col] == dataset.TypeFloat || numericLike(value) {
		return hintNumeric
	}
	return hintText
}

// columnLooksDated reports whether any non-null cell leads with an ISO date.
func columnLooksDated(ds *dataset.Dataset, col int) bool {
	for _, row := range ds.Rows {
		if col >= len(row) || row[col] == nil {
			continue
		}
		if _, ok := row[col].(time.Time); ok {
			return true
		}
		if s, ok := row[col].(string); ok && isoDatePrefix.MatchString(s) {
			return true
		}
	}
	return false
}

// numericLike reports whether a filter value can serve as a number.
// strconv.ParseFloat accepts negatives and scientific notation, so -3 and
// 1e6 are numeric-like.
func numericLike(v any) bool {
	switch n := v.(type) {
	case float64, int, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(n, 64)
		return err == nil
	default:
		return false
	}
}

// asFloat coerces a cell or filter value to a number.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asTime coerces a cell or filter value to a date.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return dataset.ParseDate(t)
	default:
		return time.Time{}, false
	}
}

// asList normalizes a membership value to a list; a scalar becomes a
// single-element list.
func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}
