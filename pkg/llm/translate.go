// Package llm turns natural language queries into structured filter
// expressions by calling a configured model provider.
package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/dataset"
	"github.com/13102180531/ExcelQuery/pkg/filter"
)

// Translator converts a natural language query into a filter expression
// using one provider backend. Use this interface for dependency injection
// to enable mocking in tests.
type Translator interface {
	// Name returns the provider tag ("siliconflow", "ollama", "anthropic").
	Name() string

	// Translate calls the provider and returns a validated expression.
	// Failures are classified *Error values.
	Translate(ctx context.Context, query string, profiles map[string]dataset.ColumnProfile, cfg ProviderConfig) (*filter.Expression, error)
}

// ProviderConfig is the resolved call configuration for one translation.
// Pointer fields distinguish "not set" from an explicit zero so request
// overrides can lower temperature to 0.
type ProviderConfig struct {
	APIKey      string   `json:"api_key,omitempty"`
	APIURL      string   `json:"api_url,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// MergedOver returns the config with unset fields filled from base.
// Request overrides win field by field.
func (c ProviderConfig) MergedOver(base ProviderConfig) ProviderConfig {
	out := base
	if c.APIKey != "" {
		out.APIKey = c.APIKey
	}
	if c.APIURL != "" {
		out.APIURL = c.APIURL
	}
	if c.Model != "" {
		out.Model = c.Model
	}
	if c.Temperature != nil {
		out.Temperature = c.Temperature
	}
	if c.MaxTokens != 0 {
		out.MaxTokens = c.MaxTokens
	}
	if c.TopP != nil {
		out.TopP = c.TopP
	}
	return out
}

// temperature returns the configured temperature or a fallback.
func (c ProviderConfig) temperature(fallback float64) float64 {
	if c.Temperature != nil {
		return *c.Temperature
	}
	return fallback
}

// topP returns the configured top_p or a fallback.
func (c ProviderConfig) topP(fallback float64) float64 {
	if c.TopP != nil {
		return *c.TopP
	}
	return fallback
}

// floatPtr is a literal-pointer helper for defaults and tests.
func floatPtr(f float64) *float64 {
	return &f
}

// parseAndValidate turns raw model output into a validated expression.
// Empty content means the model chose not to answer; that maps to the
// match-everything expression rather than an error. Unparseable content is
// KindResponseMalformed, a parsed object without a filters list is
// KindSchemaInvalid.
func parseAndValidate(content string, profiles map[string]dataset.ColumnProfile, provider string, logger *zap.Logger) (*filter.Expression, error) {
	if content == "" {
		logger.Warn("Provider returned empty content, treating as no filters",
			zap.String("provider", provider))
		return filter.Empty(), nil
	}

	obj, err := decodeObject(content)
	if err != nil {
		return nil, NewError(KindResponseMalformed, "response is not valid JSON", provider, err)
	}

	expr, err := filter.ValidateExpression(obj, profiles, logger)
	if err != nil {
		if errors.Is(err, filter.ErrMissingFilters) {
			return nil, NewError(KindSchemaInvalid, "response JSON has no filters list", provider, err)
		}
		return nil, NewError(KindSchemaInvalid, "response JSON failed validation", provider, err)
	}
	return expr, nil
}
