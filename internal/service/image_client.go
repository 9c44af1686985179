package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"bestiary-server/internal/config"
)

// ErrImageGenerationFailed - ошибка модели генерации изображений.
var ErrImageGenerationFailed = errors.New("image generation failed")

// openAIImageGenerator реализует ImageGenerator через images API (DALL-E).
type openAIImageGenerator struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

// NewImageGenerator создает генератор изображений на OpenAI-совместимом API.
func NewImageGenerator(cfg config.AIConfig, logger *zap.Logger) ImageGenerator {
	log := logger.Named("ImageGenerator")
	log.Info("Using OpenAI image generator", zap.String("base_url", cfg.ImageBaseURL), zap.String("model", cfg.ImageModel))
	return &openAIImageGenerator{
		client: newOpenAIClient(cfg.APIKey, cfg.ImageBaseURL, cfg.Timeout),
		model:  cfg.ImageModel,
		logger: log,
	}
}

func (g *openAIImageGenerator) GenerateImage(ctx context.Context, prompt string, size string) (string, error) {
	startTime := time.Now()
	resp, err := g.client.CreateImage(ctx, openaigo.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           size,
		ResponseFormat: openaigo.CreateImageResponseFormatURL,
	})
	duration := time.Since(startTime)

	if err != nil {
		g.logger.Error("Image API request failed", zap.String("model", g.model), zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.WithLabelValues(g.model, "image", "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		g.logger.Warn("Image API returned no image", zap.String("model", g.model), zap.Duration("duration", duration))
		aiRequestsTotal.WithLabelValues(g.model, "image", "error_empty_response").Inc()
		return "", fmt.Errorf("%w: empty response", ErrImageGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(g.model, "image", "success").Inc()
	aiRequestDuration.WithLabelValues(g.model, "image").Observe(duration.Seconds())
	g.logger.Debug("Image generated", zap.String("model", g.model), zap.Duration("duration", duration))
	return resp.Data[0].URL, nil
}
