package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bestiary-server/internal/models"
)

// IllustrationSize - размер квадратной иллюстрации.
const IllustrationSize = "1024x1024"

// IllustrationSynthesizer генерирует иллюстрацию существа и скачивает ее байты.
type IllustrationSynthesizer struct {
	generator ImageGenerator
	fetcher   ImageFetcher
	size      string
	logger    *zap.Logger
}

// NewIllustrationSynthesizer создает синтезатор иллюстраций. Пустой size означает 1024x1024.
func NewIllustrationSynthesizer(generator ImageGenerator, fetcher ImageFetcher, size string, logger *zap.Logger) *IllustrationSynthesizer {
	if size == "" {
		size = IllustrationSize
	}
	return &IllustrationSynthesizer{
		generator: generator,
		fetcher:   fetcher,
		size:      size,
		logger:    logger.Named("IllustrationSynthesizer"),
	}
}

// Illustrate возвращает байты изображения.
// Ошибки: models.ErrUpstreamImage при сбое генерации, models.ErrAssetFetch при сбое скачивания.
func (s *IllustrationSynthesizer) Illustrate(ctx context.Context, record *models.CreatureRecord) (*models.IllustrationPayload, error) {
	imageURL, err := s.generator.GenerateImage(ctx, BuildIllustrationPrompt(record), s.size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamImage, err)
	}
	if imageURL == "" {
		return nil, fmt.Errorf("%w: empty image url", models.ErrUpstreamImage)
	}

	payload, err := s.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAssetFetch, err)
	}
	s.logger.Debug("Illustration fetched", zap.Int("bytes", len(payload.Data)), zap.String("content_type", payload.ContentType))
	return payload, nil
}

// BuildIllustrationPrompt строит художественный промпт по полям записи.
func BuildIllustrationPrompt(record *models.CreatureRecord) string {
	return fmt.Sprintf("A detailed fantasy monster called %s. Description: %s. It is a %s %s with a challenge rating of %s.",
		record.Name, record.Description, record.Size, record.CreatureType, record.ChallengeRating)
}

// HTTPImageFetcher скачивает изображение по временной ссылке обычным GET запросом.
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPImageFetcher создает загрузчик. maxBytes <= 0 отключает ограничение размера.
func NewHTTPImageFetcher(timeout time.Duration, maxBytes int64) *HTTPImageFetcher {
	return &HTTPImageFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) (*models.IllustrationPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}

	return &models.IllustrationPayload{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
