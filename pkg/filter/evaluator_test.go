package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/dataset"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func productsDataset() *dataset.Dataset {
	return dataset.New("products.csv",
		[]string{"name", "price", "category", "in_stock", "added", "notes"},
		[][]any{
			{"apple", 10.0, "fruit", true, date(2024, 1, 1), "fresh"},
			{"banana", 20.0, "fruit", false, date(2024, 2, 1), nil},
			{"cherry", 15.5, "fruit", true, date(2024, 3, 1), "tart"},
			{"carrot", 30.0, "vegetable", true, nil, "crunchy"},
			{"donut", nil, "snack", false, date(2024, 4, 1), "Sweet Treat"},
		})
}

func names(ds *dataset.Dataset) []string {
	col, _ := ds.ColumnIndex("name")
	out := make([]string, 0, ds.NumRows())
	for i := 0; i < ds.NumRows(); i++ {
		out = append(out, ds.Cell(i, col).(string))
	}
	return out
}

func apply(t *testing.T, ds *dataset.Dataset, conditions []Condition, logical string) *dataset.Dataset {
	t.Helper()
	e := NewEvaluator(zap.NewNop())
	return e.Apply(ds, &Expression{Filters: conditions, LogicalOperator: logical})
}

func TestApplyEmptyFiltersIsIdentity(t *testing.T) {
	ds := productsDataset()
	out := apply(t, ds, nil, LogicalAnd)
	assert.Equal(t, names(ds), names(out))

	e := NewEvaluator(zap.NewNop())
	assert.Equal(t, ds.NumRows(), e.Apply(ds, nil).NumRows())
}

func TestApplyEmptyDataset(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	empty := dataset.New("empty.csv", []string{"a"}, nil)
	out := e.Apply(empty, &Expression{LogicalOperator: LogicalAnd})
	assert.Equal(t, 0, out.NumRows())

	out = e.Apply(nil, Empty())
	assert.Equal(t, 0, out.NumRows())
}

func TestApplyNumericComparison(t *testing.T) {
	out := apply(t, productsDataset(), []Condition{
		{Column: "price", Operator: OpGreaterThan, Value: 15.0},
	}, LogicalAnd)

	// donut's missing price never satisfies an ordering operator.
	assert.Equal(t, []string{"banana", "cherry", "carrot"}, names(out))
}

func TestApplyEquals(t *testing.T) {
	t.Run("numeric value", func(t *testing.T) {
		out := apply(t, productsDataset(), []Condition{
			{Column: "price", Operator: OpEquals, Value: 20.0},
		}, LogicalAnd)
		assert.Equal(t, []string{"banana"}, names(out))
	})

	t.Run("string value coerces column to text", func(t *testing.T) {
		out := apply(t, productsDataset(), []Condition{
			{Column: "price", Operator: OpEquals, Value: "10"},
		}, LogicalAnd)
		assert.Equal(t, []string{"apple"}, names(out))
	})

	t.Run("bool value", func(t *testing.T) {
		out := apply(t, productsDataset(), []Condition{
			{Column: "in_stock", Operator: OpEquals, Value: true},
		}, LogicalAnd)
		assert.Equal(t, []string{"apple", "cherry", "carrot"}, names(out))
	})

	t.Run("not_equals keeps missing values", func(t *testing.T) {
		out := apply(t, productsDataset(), []Condition{
			{Column: "price", Operator: OpNotEquals, Value: 20.0},
		}, LogicalAnd)
		assert.Equal(t, []string{"apple", "cherry", "carrot", "donut"}, names(out))
	})
}

func TestApplyContainsIsCaseInsensitive(t *testing.T) {
	out := apply(t, productsDataset(), []Condition{
		{Column: "notes", Operator: OpContains, Value: "sweet"},
	}, LogicalAnd)
	assert.Equal(t, []string{"donut"}, names(out))

	// A missing note neither matches nor blocks the complement.
	out = apply(t, productsDataset(), []Condition{
		{Column: "notes", Operator: OpNotContains, Value: "sweet"},
	}, LogicalAnd)
	assert.Equal(t, []string{"apple", "banana", "cherry", "carrot"}, names(out))
}

func TestApplyBetweenInclusive(t *testing.T) {
	between := []Condition{
		{Column: "price", Operator: OpBetween, Value: []any{10.0, 20.0}},
	}
	out := apply(t, productsDataset(), between, LogicalAnd)
	assert.Equal(t, []string{"apple", "banana", "cherry"}, names(out))

	// not_between is the exact complement, so the missing price passes it.
	notBetween := []Condition{
		{Column: "price", Operator: OpNotBetween, Value: []any{10.0, 20.0}},
	}
	out = apply(t, productsDataset(), notBetween, LogicalAnd)
	assert.Equal(t, []string{"carrot", "donut"}, names(out))
}

func TestApplyMembership(t *testing.T) {
	out := apply(t, productsDataset(), []Condition{
		{Column: "category", Operator: OpIn, Value: []any{"fruit", "snack"}},
	}, LogicalAnd)
	assert.Equal(t, []string{"apple", "banana", "cherry", "donut"}, names(out))

	out = apply(t, productsDataset(), []Condition{
		{Column: "category", Operator: OpNotIn, Value: []any{"fruit", "snack"}},
	}, LogicalAnd)
	assert.Equal(t, []string{"carrot"}, names(out))

	t.Run("scalar acts as single-element list", func(t *testing.T) {
		out := apply(t, productsDataset(), []Condition{
			{Column: "category", Operator: OpIn, Value: "snack"},
		}, LogicalAnd)
		assert.Equal(t, []string{"donut"}, names(out))
	})
}

func TestApplyNullTests(t *testing.T) {
	out := apply(t, productsDataset(), []Condition{
		{Column: "added", Operator: OpIsNull},
	}, LogicalAnd)
	assert.Equal(t, []string{"carrot"}, names(out))

	out = apply(t, productsDataset(), []Condition{
		{Column: "added", Operator: OpIsNotNull},
	}, LogicalAnd)
	assert.Equal(t, []string{"apple", "banana", "cherry", "donut"}, names(out))
}

func TestApplyDateComparison(t *testing.T) {
	out := apply(t, productsDataset(), []Condition{
		{Column: "added", Operator: OpGreaterThan, Value: "2024-02-15"},
	}, LogicalAnd)
	assert.Equal(t, []string{"cherry", "donut"}, names(out))

	out = apply(t, productsDataset(), []Condition{
		{Column: "added", Operator: OpBetween, Value: []any{"2024-01-15", "2024-03-15"}},
	}, LogicalAnd)
	assert.Equal(t, []string{"banana", "cherry"}, names(out))
}

func TestApplyAndNarrowsOrWidens(t *testing.T) {
	single := apply(t, productsDataset(), []Condition{
		{Column: "price", Operator: OpGreaterThan, Value: 15.0},
	}, LogicalAnd)

	both := apply(t, productsDataset(), []Condition{
		{Column: "price", Operator: OpGreaterThan, Value: 15.0},
		{Column: "category", Operator: OpEquals, Value: "fruit"},
	}, LogicalAnd)
	assert.Equal(t, []string{"banana", "cherry"}, names(both))
	assert.LessOrEqual(t, both.NumRows(), single.NumRows())

	either := apply(t, productsDataset(), []Condition{
		{Column: "price", Operator: OpGreaterThan, Value: 25.0},
		{Column: "category", Operator: OpEquals, Value: "snack"},
	}, LogicalOr)
	assert.Equal(t, []string{"carrot", "donut"}, names(either))
}

func TestApplySkipsUnknownColumnAndOperator(t *testing.T) {
	out := apply(t, productsDataset(), []Condition{
		{Column: "price", Operator: OpGreaterThan, Value: 15.0},
		{Column: "ghost_col", Operator: OpEquals, Value: "x"},
		{Column: "name", Operator: Operator("sounds_like"), Value: "apple"},
	}, LogicalAnd)

	// Skipped conditions are neutral: the result is price > 15 alone.
	assert.Equal(t, []string{"banana", "cherry", "carrot"}, names(out))
}

func TestApplyCoercionFailure(t *testing.T) {
	t.Run("empties the result under AND", func(t *testing.T) {
		out := apply(t, productsDataset(), []Condition{
			{Column: "category", Operator: OpEquals, Value: "fruit"},
			{Column: "added", Operator: OpBetween, Value: []any{"not-a-date", "also-bad"}},
		}, LogicalAnd)
		assert.Equal(t, 0, out.NumRows())
	})

	t.Run("is neutral under OR", func(t *testing.T) {
		out := apply(t, productsDataset(), []Condition{
			{Column: "category", Operator: OpEquals, Value: "snack"},
			{Column: "added", Operator: OpBetween, Value: []any{"not-a-date", "also-bad"}},
		}, LogicalOr)
		assert.Equal(t, []string{"donut"}, names(out))
	})

	t.Run("between needs a two-element list", func(t *testing.T) {
		out := apply(t, productsDataset(), []Condition{
			{Column: "price", Operator: OpBetween, Value: 10.0},
		}, LogicalAnd)
		assert.Equal(t, 0, out.NumRows())
	})
}

func TestApplyNumericStringsCompareAsNumbers(t *testing.T) {
	ds := dataset.New("codes.csv",
		[]string{"code"},
		[][]any{{"5"}, {"40"}, {"abc"}})

	e := NewEvaluator(zap.NewNop())
	out := e.Apply(ds, &Expression{
		Filters:         []Condition{{Column: "code", Operator: OpGreaterThan, Value: 10.0}},
		LogicalOperator: LogicalAnd,
	})

	// "40" beats 10 numerically even though "40" < "5" lexically;
	// unparsable cells never match.
	require.Equal(t, 1, out.NumRows())
	assert.Equal(t, "40", out.Cell(0, 0))
}

func TestApplyLexicalFallback(t *testing.T) {
	out := apply(t, productsDataset(), []Condition{
		{Column: "name", Operator: OpGreaterThan, Value: "banana"},
	}, LogicalAnd)
	assert.Equal(t, []string{"cherry", "carrot", "donut"}, names(out))
}

func TestApplyIsIdempotent(t *testing.T) {
	conditions := []Condition{
		{Column: "price", Operator: OpGreaterThan, Value: 15.0},
		{Column: "category", Operator: OpEquals, Value: "fruit"},
	}

	once := apply(t, productsDataset(), conditions, LogicalAnd)
	twice := apply(t, once, conditions, LogicalAnd)
	assert.Equal(t, names(once), names(twice))
}
