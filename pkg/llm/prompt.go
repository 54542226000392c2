package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/13102180531/ExcelQuery/pkg/dataset"
	"github.com/13102180531/ExcelQuery/pkg/filter"
)

// systemPrompt instructs the model to act as a query-to-filter compiler.
// The operator vocabulary is injected so the prompt and the evaluator can
// never drift apart.
const systemPromptTemplate = `You are a data filtering assistant. You translate a natural language query about a table into a JSON filter expression.

Respond with ONLY a JSON object of this exact shape, no prose and no explanations:
{
  "filters": [
    {"column": "<column name>", "operator": "<operator>", "value": <value>}
  ],
  "logical_operator": "AND"
}

Rules:
- Allowed operators: %s.
- "column" must be one of the column names from the provided schema, exactly as written.
- "logical_operator" must be "AND" or "OR". Use "AND" unless the query clearly asks for alternatives.
- "between" and "not_between" take a two-element list value: [min, max].
- "in" and "not_in" take a list value.
- "is_null" and "is_not_null" take no value; omit the "value" key.
- Write dates as strings in YYYY-MM-DD format.
- If the query asks for all rows or states no condition, return {"filters": [], "logical_operator": "AND"}.`

// BuildSystemPrompt renders the fixed system instruction.
func BuildSystemPrompt() string {
	names := make([]string, len(filter.Operators))
	for i, op := range filter.Operators {
		names[i] = string(op)
	}
	return fmt.Sprintf(systemPromptTemplate, strings.Join(names, ", "))
}

// BuildUserPrompt renders the per-request message: the column schema as
// indented JSON followed by the user's query.
func BuildUserPrompt(query string, profiles map[string]dataset.ColumnProfile) (string, error) {
	schema, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}

	var b strings.Builder
	b.WriteString("Table schema (column name, dtype, unique_count, sample_values):\n")
	b.Write(schema)
	b.WriteString("\n\nQuery: ")
	b.WriteString(query)
	return b.String(), nil
}
