package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bestiary-server/internal/config"
)

// ErrAIGenerationFailed - ошибка текстовой модели.
var ErrAIGenerationFailed = errors.New("ai text generation failed")

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bestiary_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "kind", "status"}, // kind: text или image
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bestiary_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"model", "kind"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bestiary_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 10),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bestiary_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(200, 200, 12),
		},
		[]string{"model"},
	)
)

// --- OpenAI ---

// openAITextGenerator реализует TextGenerator через OpenAI-совместимый API
// со строгим response_format json_schema.
type openAITextGenerator struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func (c *openAITextGenerator) GenerateStructured(ctx context.Context, req StructuredRequest) (string, UsageInfo, error) {
	usage := UsageInfo{}

	if strings.TrimSpace(req.SystemPrompt) == "" || strings.TrimSpace(req.UserPrompt) == "" {
		aiRequestsTotal.WithLabelValues(c.model, "text", "error").Inc()
		return "", usage, fmt.Errorf("%w: empty prompt", ErrAIGenerationFailed)
	}

	request := openaigo.ChatCompletionRequest{
		Model: c.model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openaigo.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		ResponseFormat: &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openaigo.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		},
		Temperature:         float32(req.Temperature),
		TopP:                float32(req.TopP),
		MaxCompletionTokens: req.MaxTokens,
		N:                   1,
	}

	startTime := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("AI API request failed", zap.String("model", c.model), zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.WithLabelValues(c.model, "text", "error").Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		// Отказ модели приходит отдельным полем и тоже означает пустой ответ
		refusal := ""
		if len(resp.Choices) > 0 {
			refusal = resp.Choices[0].Message.Refusal
		}
		c.logger.Warn("AI API returned empty content", zap.String("model", c.model), zap.Duration("duration", duration), zap.String("refusal", refusal))
		aiRequestsTotal.WithLabelValues(c.model, "text", "error_empty_response").Inc()
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(c.model, "text", "success").Inc()
	aiRequestDuration.WithLabelValues(c.model, "text").Observe(duration.Seconds())

	content := resp.Choices[0].Message.Content
	if resp.Usage.TotalTokens > 0 {
		usage.PromptTokens = resp.Usage.PromptTokens
		usage.CompletionTokens = resp.Usage.CompletionTokens
		usage.TotalTokens = resp.Usage.TotalTokens
	} else {
		usage = estimateTokens(c.model, req.SystemPrompt+"\n"+req.UserPrompt, content)
	}
	observeUsage(c.model, usage)

	c.logger.Debug("AI API response received",
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("content_length", len(content)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Bool("estimated", usage.Estimated),
	)
	return content, usage, nil
}

// --- Ollama ---

// ollamaTextGenerator реализует TextGenerator через нативный API Ollama.
// Схема передается в поле format, модель обязана вернуть объект по ней.
type ollamaTextGenerator struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

func newOllamaTextGenerator(cfg config.AIConfig, logger *zap.Logger) (*ollamaTextGenerator, error) {
	// api.NewClient требует URL без суффикса /v1
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL '%s': %w", baseURL, err)
	}

	client := api.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout})
	logger.Info("Ollama text generator created", zap.String("base_url", baseURL), zap.String("model", cfg.Model))
	return &ollamaTextGenerator{client: client, model: cfg.Model, logger: logger}, nil
}

func (c *ollamaTextGenerator) GenerateStructured(ctx context.Context, req StructuredRequest) (string, UsageInfo, error) {
	usage := UsageInfo{}

	if strings.TrimSpace(req.SystemPrompt) == "" || strings.TrimSpace(req.UserPrompt) == "" {
		aiRequestsTotal.WithLabelValues(c.model, "text", "error").Inc()
		return "", usage, fmt.Errorf("%w: empty prompt", ErrAIGenerationFailed)
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Stream: &stream,
		Format: req.Schema,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
			"top_p":       req.TopP,
			"num_predict": req.MaxTokens,
		},
	}

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Ollama request failed", zap.String("model", c.model), zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.WithLabelValues(c.model, "text", "error").Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		c.logger.Warn("Ollama returned empty content", zap.String("model", c.model), zap.Duration("duration", duration))
		aiRequestsTotal.WithLabelValues(c.model, "text", "error_empty_response").Inc()
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(c.model, "text", "success").Inc()
	aiRequestDuration.WithLabelValues(c.model, "text").Observe(duration.Seconds())

	usage.PromptTokens = resp.PromptEvalCount
	usage.CompletionTokens = resp.EvalCount
	usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	if usage.TotalTokens == 0 {
		usage = estimateTokens(c.model, req.SystemPrompt+"\n"+req.UserPrompt, resp.Message.Content)
	}
	observeUsage(c.model, usage)

	return resp.Message.Content, usage, nil
}

// estimateTokens считает токены через tiktoken, когда провайдер не вернул usage.
// Для неизвестных tiktoken моделей используется cl100k_base.
func estimateTokens(model, prompt, completion string) UsageInfo {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return UsageInfo{Estimated: true}
		}
	}
	promptTokens := len(tke.Encode(prompt, nil, nil))
	completionTokens := len(tke.Encode(completion, nil, nil))
	return UsageInfo{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Estimated:        true,
	}
}

func observeUsage(model string, usage UsageInfo) {
	if usage.TotalTokens == 0 {
		return
	}
	aiPromptTokens.WithLabelValues(model).Observe(float64(usage.PromptTokens))
	aiCompletionTokens.WithLabelValues(model).Observe(float64(usage.CompletionTokens))
}

// newOpenAIClient создает клиент go-openai с заданным BaseURL и таймаутом.
func newOpenAIClient(apiKey, baseURL string, timeout time.Duration) *openaigo.Client {
	openaiConfig := openaigo.DefaultConfig(apiKey)
	openaiConfig.BaseURL = baseURL
	openaiConfig.HTTPClient = &http.Client{Timeout: timeout}
	return openaigo.NewClientWithConfig(openaiConfig)
}

// NewTextGenerator создает текстовую модель в зависимости от AI_CLIENT_TYPE.
func NewTextGenerator(cfg config.AIConfig, logger *zap.Logger) (TextGenerator, error) {
	log := logger.Named("TextGenerator")
	switch strings.ToLower(cfg.ClientType) {
	case "openai":
		log.Info("Using OpenAI text generator", zap.String("base_url", cfg.BaseURL), zap.String("model", cfg.Model))
		return &openAITextGenerator{
			client: newOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
			model:  cfg.Model,
			logger: log,
		}, nil
	case "ollama":
		return newOllamaTextGenerator(cfg, log)
	default:
		return nil, fmt.Errorf("unknown AI client type: %s (supported: openai, ollama)", cfg.ClientType)
	}
}
