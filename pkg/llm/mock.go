package llm

import (
	"context"

	"github.com/13102180531/ExcelQuery/pkg/dataset"
	"github.com/13102180531/ExcelQuery/pkg/filter"
)

// MockTranslator is a configurable Translator for tests.
type MockTranslator struct {
	NameValue     string
	TranslateFunc func(ctx context.Context, query string, profiles map[string]dataset.ColumnProfile, cfg ProviderConfig) (*filter.Expression, error)

	// Captured from the last Translate call.
	LastQuery  string
	LastConfig ProviderConfig
	CallCount  int
}

var _ Translator = (*MockTranslator)(nil)

// Name returns the configured tag, defaulting to "mock".
func (m *MockTranslator) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

// Translate records the call and delegates to TranslateFunc. With no
// function configured it returns the match-everything expression.
func (m *MockTranslator) Translate(ctx context.Context, query string, profiles map[string]dataset.ColumnProfile, cfg ProviderConfig) (*filter.Expression, error) {
	m.CallCount++
	m.LastQuery = query
	m.LastConfig = cfg
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, query, profiles, cfg)
	}
	return filter.Empty(), nil
}

// MockFactory returns a fixed translator and defaults for every provider
// tag.
type MockFactory struct {
	Translator Translator
	Defaults   ProviderConfig
	Err        error
}

var _ TranslatorFactory = (*MockFactory)(nil)

// ForProvider returns the configured translator, defaults and error.
func (m *MockFactory) ForProvider(apiType string) (Translator, ProviderConfig, error) {
	if m.Err != nil {
		return nil, ProviderConfig{}, m.Err
	}
	return m.Translator, m.Defaults, nil
}
