// Package filter defines the structured filter expression the translator
// produces and the engine that evaluates it against a dataset.
package filter

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/dataset"
)

// Operator is a filter comparison operator. The set is fixed; translators
// are instructed to emit exactly these values, but the evaluator tolerates
// anything and skips what it does not know.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal_to"
	OpLessThanOrEqual    Operator = "less_than_or_equal_to"
	OpBetween            Operator = "between"
	OpNotBetween         Operator = "not_between"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
	OpIsNull             Operator = "is_null"
	OpIsNotNull          Operator = "is_not_null"
)

// Operators lists every supported operator, in prompt order.
var Operators = []Operator{
	OpEquals, OpNotEquals, OpContains, OpNotContains,
	OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual,
	OpBetween, OpNotBetween, OpIn, OpNotIn, OpIsNull, OpIsNotNull,
}

// NullTest reports whether the operator tests for missing values and
// therefore needs no value.
func (o Operator) NullTest() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// Logical operators combining conditions.
const (
	LogicalAnd = "AND"
	LogicalOr  = "OR"
)

// Condition binds one column to an operator and a comparison value.
// Value is nil for the null-test operators.
type Condition struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Expression is a set of conditions combined by a logical operator.
// An empty Filters list means "no filtering".
type Expression struct {
	Filters         []Condition `json:"filters"`
	LogicalOperator string      `json:"logical_operator"`
}

// Empty returns an expression that matches everything.
func Empty() *Expression {
	return &Expression{Filters: []Condition{}, LogicalOperator: LogicalAnd}
}

// ErrMissingFilters marks a parsed translator response whose top level lacks
// the required "filters" list.
var ErrMissingFilters = errors.New(`parsed response has no "filters" list`)

// ValidateExpression applies the defensive repair pass to a raw decoded
// translator response. Conditions referencing unknown columns, lacking an
// operator, or lacking a required value are dropped silently (logged, never
// an error). The logical operator is normalized to AND/OR. The returned
// expression is always structurally valid; the only failure is a top level
// that is missing the filters list entirely.
func ValidateExpression(raw map[string]any, profiles map[string]dataset.ColumnProfile, logger *zap.Logger) (*Expression, error) {
	rawFilters, ok := raw["filters"].([]any)
	if !ok {
		return nil, ErrMissingFilters
	}

	expr := Empty()
	for i, item := range rawFilters {
		m, ok := item.(map[string]any)
		if !ok {
			logger.Warn("Dropping non-object filter condition", zap.Int("index", i))
			continue
		}

		column, _ := m["column"].(string)
		if _, known := profiles[column]; !known {
			logger.Warn("Dropping condition for unknown column",
				zap.Int("index", i),
				zap.String("column", column))
			continue
		}

		opStr, _ := m["operator"].(string)
		if opStr == "" {
			logger.Warn("Dropping condition without operator",
				zap.Int("index", i),
				zap.String("column", column))
			continue
		}
		op := Operator(opStr)

		value, hasValue := m["value"]
		if !op.NullTest() && !hasValue {
			logger.Warn("Dropping condition without required value",
				zap.Int("index", i),
				zap.String("column", column),
				zap.String("operator", opStr))
			continue
		}

		cond := Condition{Column: column, Operator: op}
		if !op.NullTest() {
			cond.Value = value
		}
		expr.Filters = append(expr.Filters, cond)
	}

	rawLogical, _ := raw["logical_operator"].(string)
	expr.LogicalOperator = NormalizeLogicalOperator(rawLogical, logger)
	return expr, nil
}

// NormalizeLogicalOperator maps any input to AND or OR, defaulting to AND.
func NormalizeLogicalOperator(s string, logger *zap.Logger) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case LogicalOr:
		return LogicalOr
	case LogicalAnd, "":
		return LogicalAnd
	default:
		if logger != nil {
			logger.Warn("Unrecognized logical operator, defaulting to AND",
				zap.String("logical_operator", s))
		}
		return LogicalAnd
	}
}
