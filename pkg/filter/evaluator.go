package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/dataset"
)

// Evaluator applies a validated filter expression to a dataset. Evaluation
// is a synchronous single pass; all state is request-local.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator creates a filter evaluator.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{logger: logger.Named("filter")}
}

var (
	// errSkipCondition marks a condition that contributes nothing:
	// unknown column, unknown operator. Neutral under AND and OR.
	errSkipCondition = errors.New("condition skipped")
	// errCoercion marks a condition whose value or column could not be
	// cast for its operator. Contributes all-false under AND, neutral
	// under OR. Never aborts the query.
	errCoercion = errors.New("coercion failed")
)

// Apply filters the dataset's rows by the expression. An empty dataset
// yields an empty subset; an empty filter list yields a copy of the whole
// dataset. A single bad condition never fails the request.
func (e *Evaluator) Apply(ds *dataset.Dataset, expr *Expression) *dataset.Dataset {
	if ds == nil {
		return &dataset.Dataset{}
	}
	if ds.Empty() {
		return ds.Select(nil)
	}
	if expr == nil || len(expr.Filters) == 0 {
		return ds.Copy()
	}

	isAnd := NormalizeLogicalOperator(expr.LogicalOperator, e.logger) != LogicalOr

	// AND narrows from all-true, OR widens from all-false.
	mask := make([]bool, ds.NumRows())
	if isAnd {
		for i := range mask {
			mask[i] = true
		}
	}

	for i, cond := range expr.Filters {
		condMask, err := e.conditionMask(ds, cond)
		if err != nil {
			e.logger.Warn("Dropping filter condition",
				zap.Int("index", i),
				zap.String("column", cond.Column),
				zap.String("operator", string(cond.Operator)),
				zap.Error(err))
			if errors.Is(err, errCoercion) && isAnd {
				for j := range mask {
					mask[j] = false
				}
			}
			continue
		}

		if isAnd {
			for j := range mask {
				mask[j] = mask[j] && condMask[j]
			}
		} else {
			for j := range mask {
				mask[j] = mask[j] || condMask[j]
			}
		}
	}

	return ds.Select(mask)
}

// baseOperator maps a negated operator to its positive base. The negated
// mask is the complement of the base mask.
func baseOperator(op Operator) (Operator, bool) {
	switch op {
	case OpNotEquals:
		return OpEquals, true
	case OpNotContains:
		return OpContains, true
	case OpNotBetween:
		return OpBetween, true
	case OpNotIn:
		return OpIn, true
	case OpIsNotNull:
		return OpIsNull, true
	default:
		return op, false
	}
}

// conditionMask computes the per-row boolean mask for one condition.
func (e *Evaluator) conditionMask(ds *dataset.Dataset, cond Condition) ([]bool, error) {
	col, ok := ds.ColumnIndex(cond.Column)
	if !ok {
		return nil, fmt.Errorf("%w: unknown column %q", errSkipCondition, cond.Column)
	}

	base, invert := baseOperator(cond.Operator)
	class := classOf(base)
	if class == classUnknown {
		return nil, fmt.Errorf("%w: unknown operator %q", errSkipCondition, cond.Operator)
	}

	mask := make([]bool, ds.NumRows())
	var err error
	switch class {
	case classNull:
		for i := range ds.Rows {
			mask[i] = ds.Cell(i, col) == nil
		}
	case classText:
		e.textMask(ds, col, cond.Value, mask)
	case classEquality:
		e.equalityMask(ds, col, cond.Value, mask)
	case classOrder:
		err = e.orderMask(ds, col, base, cond.Value, mask)
	case classMembership:
		e.membershipMask(ds, col, cond.Value, mask)
	}
	if err != nil {
		return nil, err
	}

	if invert {
		for i := range mask {
			mask[i] = !mask[i]
		}
	}
	return mask, nil
}

// textMask does a case-insensitive substring match against the stringified
// column. Missing values never match.
func (e *Evaluator) textMask(ds *dataset.Dataset, col int, value any, mask []bool) {
	needle := strings.ToLower(dataset.FormatCell(value))
	for i := range ds.Rows {
		cell := ds.Cell(i, col)
		if cell == nil {
			continue
		}
		mask[i] = strings.Contains(strings.ToLower(dataset.FormatCell(cell)), needle)
	}
}

// equalityMask compares cells to the value. A textual value coerces the
// column to text; otherwise equality is native per type.
func (e *Evaluator) equalityMask(ds *dataset.Dataset, col int, value any, mask []bool) {
	if s, ok := value.(string); ok {
		for i := range ds.Rows {
			cell := ds.Cell(i, col)
			mask[i] = cell != nil && dataset.FormatCell(cell) == s
		}
		return
	}
	for i := range ds.Rows {
		mask[i] = nativeEquals(ds.Cell(i, col), value)
	}
}

// orderMask handles the greater_than family and between. The coercion
// strategy comes from the (operator class, column hint) policy.
func (e *Evaluator) orderMask(ds *dataset.Dataset, col int, base Operator, value any, mask []bool) error {
	hint := hintFor(ds, col, value)

	var lo, hi any
	if base == OpBetween {
		list, ok := value.([]any)
		if !ok || len(list) != 2 {
			return fmt.Errorf("%w: between value must be a [min, max] pair", errCoercion)
		}
		lo, hi = list[0], list[1]
	}

	switch hint {
	case hintDatetime:
		return e.orderMaskTime(ds, col, base, value, lo, hi, mask)
	case hintNumeric:
		return e.orderMaskFloat(ds, col, base, value, lo, hi, mask)
	default:
		return e.orderMaskLexical(ds, col, base, value, lo, hi, mask)
	}
}

func (e *Evaluator) orderMaskTime(ds *dataset.Dataset, col int, base Operator, value, lo, hi any, mask []bool) error {
	cmp := func(cell any, bound time.Time) (int, bool) {
		t, ok := asTime(cell)
		if !ok {
			return 0, false
		}
		return t.Compare(bound), true
	}

	if base == OpBetween {
		loT, okLo := asTime(lo)
		hiT, okHi := asTime(hi)
		if !okLo || !okHi {
			return fmt.Errorf("%w: unparsable date bound in %v", errCoercion, []any{lo, hi})
		}
		for i := range ds.Rows {
			cell := ds.Cell(i, col)
			if cell == nil {
				continue
			}
			cl, okL := cmp(cell, loT)
			ch, okH := cmp(cell, hiT)
			mask[i] = okL && okH && cl >= 0 && ch <= 0
		}
		return nil
	}

	bound, ok := asTime(value)
	if !ok {
		return fmt.Errorf("%w: unparsable date value %v", errCoercion, value)
	}
	for i := range ds.Rows {
		cell := ds.Cell(i, col)
		if cell == nil {
			continue
		}
		c, ok := cmp(cell, bound)
		mask[i] = ok && orderingHolds(base, c)
	}
	return nil
}

func (e *Evaluator) orderMaskFloat(ds *dataset.Dataset, col int, base Operator, value, lo, hi any, mask []bool) error {
	if base == OpBetween {
		loF, okLo := asFloat(lo)
		hiF, okHi := asFloat(hi)
		if !okLo || !okHi {
			return fmt.Errorf("%w: unparsable numeric bound in %v", errCoercion, []any{lo, hi})
		}
		for i := range ds.Rows {
			f, ok := asFloat(ds.Cell(i, col))
			mask[i] = ok && f >= loF && f <= hiF
		}
		return nil
	}

	bound, ok := asFloat(value)
	if !ok {
		return fmt.Errorf("%w: unparsable numeric value %v", errCoercion, value)
	}
	for i := range ds.Rows {
		f, ok := asFloat(ds.Cell(i, col))
		mask[i] = ok && orderingHolds(base, compareFloats(f, bound))
	}
	return nil
}

func (e *Evaluator) orderMaskLexical(ds *dataset.Dataset, col int, base Operator, value, lo, hi any, mask []bool) error {
	if base == OpBetween {
		loS := dataset.FormatCell(lo)
		hiS := dataset.FormatCell(hi)
		for i := range ds.Rows {
			cell := ds.Cell(i, col)
			if cell == nil {
				continue
			}
			s := dataset.FormatCell(cell)
			mask[i] = s >= loS && s <= hiS
		}
		return nil
	}

	bound := dataset.FormatCell(value)
	for i := range ds.Rows {
		cell := ds.Cell(i, col)
		if cell == nil {
			continue
		}
		mask[i] = orderingHolds(base, strings.Compare(dataset.FormatCell(cell), bound))
	}
	return nil
}

// membershipMask tests list membership with native equality; a scalar value
// acts as a single-element list.
func (e *Evaluator) membershipMask(ds *dataset.Dataset, col int, value any, mask []bool) {
	list := asList(value)
	for i := range ds.Rows {
		cell := ds.Cell(i, col)
		for _, item := range list {
			if nativeEquals(cell, item) {
				mask[i] = true
				break
			}
		}
	}
}

func orderingHolds(op Operator, cmp int) bool {
	switch op {
	case OpGreaterThan:
		return cmp > 0
	case OpLessThan:
		return cmp < 0
	case OpGreaterThanOrEqual:
		return cmp >= 0
	case OpLessThanOrEqual:
		return cmp <= 0
	default:
		return false
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// nativeEquals compares a cell to a filter value without coercion: values
// of different kinds are never equal.
func nativeEquals(cell, value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		s, ok := cell.(string)
		return ok && s == v
	case bool:
		b, ok := cell.(bool)
		return ok && b == v
	case time.Time:
		t, ok := cell.(time.Time)
		return ok && t.Equal(v)
	default:
		vf, okV := asNumber(value)
		cf, okC := asNumber(cell)
		return okV && okC && vf == cf
	}
}

// asNumber accepts only values that are already numeric (no string parsing,
// unlike asFloat) so native equality stays strict.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
