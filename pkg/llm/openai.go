package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/dataset"
	"github.com/13102180531/ExcelQuery/pkg/filter"
	"github.com/13102180531/ExcelQuery/pkg/logging"
)

const (
	// ProviderSiliconFlow is the hosted OpenAI-compatible backend tag.
	ProviderSiliconFlow = "siliconflow"

	// hostedRequestTimeout bounds one hosted provider call.
	hostedRequestTimeout = 30 * time.Second
)

// OpenAITranslator calls an OpenAI-compatible chat completion endpoint
// (SiliconFlow by default) with response_format json_object.
type OpenAITranslator struct {
	logger *zap.Logger
}

var _ Translator = (*OpenAITranslator)(nil)

// NewOpenAITranslator creates the hosted OpenAI-compatible translator.
func NewOpenAITranslator(logger *zap.Logger) *OpenAITranslator {
	return &OpenAITranslator{logger: logger.Named("llm")}
}

// Name returns the provider tag.
func (t *OpenAITranslator) Name() string {
	return ProviderSiliconFlow
}

// Translate sends the schema and query and parses the returned JSON.
func (t *OpenAITranslator) Translate(ctx context.Context, query string, profiles map[string]dataset.ColumnProfile, cfg ProviderConfig) (*filter.Expression, error) {
	if cfg.APIURL == "" {
		return nil, NewError(KindProviderUnavailable, "api_url is not configured", t.Name(), nil)
	}
	if cfg.Model == "" {
		return nil, NewError(KindProviderUnavailable, "model is not configured", t.Name(), nil)
	}

	userPrompt, err := BuildUserPrompt(query, profiles)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.APIURL, "/")
	client := openai.NewClientWithConfig(clientConfig)

	ctx, cancel := context.WithTimeout(ctx, hostedRequestTimeout)
	defer cancel()

	t.logger.Debug("Translation request",
		zap.String("provider", t.Name()),
		zap.String("model", cfg.Model),
		zap.String("query", logging.SanitizeQuery(query)))

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: BuildSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: float32(cfg.temperature(0.2)),
		MaxTokens:   cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		t.logger.Error("Translation request failed",
			zap.String("provider", t.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, ClassifyTransportError(err, t.Name())
	}

	var content string
	if len(resp.Choices) > 0 {
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
	}

	t.logger.Info("Translation request completed",
		zap.String("provider", t.Name()),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return parseAndValidate(content, profiles, t.Name(), t.logger)
}
