package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/apperrors"
	"github.com/13102180531/ExcelQuery/pkg/config"
)

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		APIType: ProviderSiliconFlow,
		SiliconFlow: config.ProviderDefaults{
			APIKey:      "sf-key",
			APIURL:      "https://api.siliconflow.cn/v1",
			Model:       "Qwen/Qwen3-8B",
			Temperature: 0.2,
			MaxTokens:   1500,
		},
		Ollama: config.ProviderDefaults{
			APIURL:      "http://localhost:11434/api/chat",
			Model:       "llama3",
			Temperature: 0.2,
			TopP:        0.9,
		},
		Anthropic: config.ProviderDefaults{
			Model:     "claude-3-5-haiku-latest",
			MaxTokens: 1500,
		},
	}
}

func TestFactoryForProvider(t *testing.T) {
	f := NewFactory(testLLMConfig(), zap.NewNop())

	tr, defaults, err := f.ForProvider("ollama")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, tr.Name())
	assert.Equal(t, "llama3", defaults.Model)
	require.NotNil(t, defaults.TopP)
	assert.Equal(t, 0.9, *defaults.TopP)

	tr, defaults, err = f.ForProvider("anthropic")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, tr.Name())
	assert.Equal(t, 1500, defaults.MaxTokens)
}

func TestFactoryDefaultProvider(t *testing.T) {
	f := NewFactory(testLLMConfig(), zap.NewNop())

	tr, defaults, err := f.ForProvider("")
	require.NoError(t, err)
	assert.Equal(t, ProviderSiliconFlow, tr.Name())
	assert.Equal(t, "sf-key", defaults.APIKey)
}

func TestFactoryNormalizesTag(t *testing.T) {
	f := NewFactory(testLLMConfig(), zap.NewNop())

	tr, _, err := f.ForProvider("  Ollama ")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, tr.Name())
}

func TestFactoryUnknownProvider(t *testing.T) {
	f := NewFactory(testLLMConfig(), zap.NewNop())

	_, _, err := f.ForProvider("bard")
	assert.ErrorIs(t, err, apperrors.ErrUnknownProvider)
}
