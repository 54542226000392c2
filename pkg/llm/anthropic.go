package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/dataset"
	"github.com/13102180531/ExcelQuery/pkg/filter"
	"github.com/13102180531/ExcelQuery/pkg/logging"
)

// ProviderAnthropic is the Anthropic backend tag.
const ProviderAnthropic = "anthropic"

// AnthropicTranslator calls the Anthropic Messages API. The prompt asks
// for bare JSON; Claude has no json_object response format, so the tiered
// JSON extraction does the defensive work instead.
type AnthropicTranslator struct {
	logger *zap.Logger
}

var _ Translator = (*AnthropicTranslator)(nil)

// NewAnthropicTranslator creates the Anthropic translator.
func NewAnthropicTranslator(logger *zap.Logger) *AnthropicTranslator {
	return &AnthropicTranslator{logger: logger.Named("llm")}
}

// Name returns the provider tag.
func (t *AnthropicTranslator) Name() string {
	return ProviderAnthropic
}

// Translate sends the schema and query and parses the first text block.
func (t *AnthropicTranslator) Translate(ctx context.Context, query string, profiles map[string]dataset.ColumnProfile, cfg ProviderConfig) (*filter.Expression, error) {
	if cfg.APIKey == "" {
		return nil, NewError(KindProviderUnavailable, "api key is not configured", t.Name(), nil)
	}
	if cfg.Model == "" {
		return nil, NewError(KindProviderUnavailable, "model is not configured", t.Name(), nil)
	}

	userPrompt, err := BuildUserPrompt(query, profiles)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	var opts []anthropic.ClientOption
	if cfg.APIURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.APIURL))
	}
	client := anthropic.NewClient(cfg.APIKey, opts...)

	ctx, cancel := context.WithTimeout(ctx, hostedRequestTimeout)
	defer cancel()

	temperature := float32(cfg.temperature(0.2))
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1500
	}

	t.logger.Debug("Translation request",
		zap.String("provider", t.Name()),
		zap.String("model", cfg.Model),
		zap.String("query", logging.SanitizeQuery(query)))

	start := time.Now()
	resp, err := client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(cfg.Model),
		System:      BuildSystemPrompt(),
		Messages:    []anthropic.Message{anthropic.NewUserTextMessage(userPrompt)},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		t.logger.Error("Translation request failed",
			zap.String("provider", t.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, ClassifyTransportError(err, t.Name())
	}

	content := strings.TrimSpace(resp.GetFirstContentText())

	t.logger.Info("Translation request completed",
		zap.String("provider", t.Name()),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return parseAndValidate(content, profiles, t.Name(), t.logger)
}
