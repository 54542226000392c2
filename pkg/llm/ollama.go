package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/dataset"
	"github.com/13102180531/ExcelQuery/pkg/filter"
	"github.com/13102180531/ExcelQuery/pkg/logging"
)

const (
	// ProviderOllama is the local backend tag.
	ProviderOllama = "ollama"

	// localRequestTimeout bounds one local model call. Local inference on
	// CPU is slow, so this is much looser than the hosted timeout.
	localRequestTimeout = 75 * time.Second
)

// ollamaChatRequest is the /api/chat request body.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error"`
}

// OllamaTranslator calls a local Ollama /api/chat endpoint with
// format=json and stream=false.
type OllamaTranslator struct {
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Translator = (*OllamaTranslator)(nil)

// NewOllamaTranslator creates the local translator.
func NewOllamaTranslator(logger *zap.Logger) *OllamaTranslator {
	return &OllamaTranslator{
		httpClient: &http.Client{Timeout: localRequestTimeout},
		logger:     logger.Named("llm"),
	}
}

// Name returns the provider tag.
func (t *OllamaTranslator) Name() string {
	return ProviderOllama
}

// Translate posts the chat request and parses message.content. Some model
// builds put the JSON straight into the body instead of the message
// envelope, so the raw body is kept as a fallback parse source.
func (t *OllamaTranslator) Translate(ctx context.Context, query string, profiles map[string]dataset.ColumnProfile, cfg ProviderConfig) (*filter.Expression, error) {
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

	body, err := json.Marshal(ollamaChatRequest{
		Model: cfg.Model,
		Messages: []ollamaMessage{
			{Role: "system", Content: BuildSystemPrompt()},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
		Format: "json",
		Options: ollamaOptions{
			Temperature: cfg.temperature(0.2),
			TopP:        cfg.topP(0.9),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, localRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	t.logger.Debug("Translation request",
		zap.String("provider", t.Name()),
		zap.String("model", cfg.Model),
		zap.String("query", logging.SanitizeQuery(query)))

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Error("Translation request failed",
			zap.String("provider", t.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, ClassifyTransportError(err, t.Name())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ClassifyTransportError(fmt.Errorf("read response: %w", err), t.Name())
	}

	if resp.StatusCode != http.StatusOK {
		classified := NewError(KindProviderUnavailable,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), t.Name(), nil)
		classified.StatusCode = resp.StatusCode
		return nil, classified
	}

	var parsed ollamaChatResponse
	content := ""
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Error != "" {
			return nil, NewError(KindProviderUnavailable, parsed.Error, t.Name(), nil)
		}
		content = strings.TrimSpace(parsed.Message.Content)
	}
	if content == "" {
		content = strings.TrimSpace(string(raw))
	}

	t.logger.Info("Translation request completed",
		zap.String("provider", t.Name()),
		zap.Duration("elapsed", time.Since(start)))

	return parseAndValidate(content, profiles, t.Name(), t.logger)
}
