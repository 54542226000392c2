package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/apperrors"
	"github.com/13102180531/ExcelQuery/pkg/config"
)

// TranslatorFactory resolves a provider tag to a translator and its
// server-side default configuration. Use this interface for dependency
// injection and testing.
type TranslatorFactory interface {
	ForProvider(apiType string) (Translator, ProviderConfig, error)
}

// Factory builds translators from server configuration. Translators are
// stateless, so one instance per provider is shared across requests.
type Factory struct {
	cfg         config.LLMConfig
	siliconflow *OpenAITranslator
	ollama      *OllamaTranslator
	anthropic   *AnthropicTranslator
}

var _ TranslatorFactory = (*Factory)(nil)

// NewFactory creates a translator factory.
func NewFactory(cfg config.LLMConfig, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:         cfg,
		siliconflow: NewOpenAITranslator(logger),
		ollama:      NewOllamaTranslator(logger),
		anthropic:   NewAnthropicTranslator(logger),
	}
}

// ForProvider returns the translator for a provider tag plus the server
// defaults for that provider. An empty tag selects the configured default
// provider.
func (f *Factory) ForProvider(apiType string) (Translator, ProviderConfig, error) {
	tag := strings.ToLower(strings.TrimSpace(apiType))
	if tag == "" {
		tag = f.cfg.APIType
	}

	switch tag {
	case ProviderSiliconFlow:
		return f.siliconflow, defaultsToConfig(f.cfg.SiliconFlow), nil
	case ProviderOllama:
		return f.ollama, defaultsToConfig(f.cfg.Ollama), nil
	case ProviderAnthropic:
		return f.anthropic, defaultsToConfig(f.cfg.Anthropic), nil
	default:
		return nil, ProviderConfig{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownProvider, tag)
	}
}

// defaultsToConfig adapts server-level provider defaults to a call config.
func defaultsToConfig(d config.ProviderDefaults) ProviderConfig {
	cfg := ProviderConfig{
		APIKey:    d.APIKey,
		APIURL:    d.APIURL,
		Model:     d.Model,
		MaxTokens: d.MaxTokens,
	}
	if d.Temperature != 0 {
		cfg.Temperature = floatPtr(d.Temperature)
	}
	if d.TopP != 0 {
		cfg.TopP = floatPtr(d.TopP)
	}
	return cfg
}
