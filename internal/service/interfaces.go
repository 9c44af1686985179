package service

import (
	"context"
	"encoding/json"

	"bestiary-server/internal/models"
)

// StructuredRequest - запрос к текстовой модели со строгой JSON схемой ответа.
type StructuredRequest struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       json.RawMessage
	Temperature  float64
	TopP         float64
	MaxTokens    int
}

// UsageInfo содержит информацию об использовании токенов.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool // true, если провайдер не вернул usage и токены посчитаны локально
}

// TextGenerator - текстовая модель, отвечающая JSON объектом по заданной схеме.
type TextGenerator interface {
	// GenerateStructured возвращает сырой JSON ответа модели.
	GenerateStructured(ctx context.Context, req StructuredRequest) (string, UsageInfo, error)
}

// ImageGenerator - модель генерации изображений.
type ImageGenerator interface {
	// GenerateImage возвращает временную ссылку на одно изображение.
	GenerateImage(ctx context.Context, prompt string, size string) (string, error)
}

// ImageFetcher скачивает изображение по временной ссылке.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*models.IllustrationPayload, error)
}

// AssetStore - долговременное хранилище файлов.
type AssetStore interface {
	// Upload сохраняет объект и возвращает его публичную ссылку.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete удаляет объект. Отсутствующий объект ошибкой не считается.
	Delete(ctx context.Context, key string) error
}

// MonsterRepository - хранилище записей монстров.
type MonsterRepository interface {
	Create(ctx context.Context, record *models.CreatureRecord, imageURL string, userID uint64) (*models.Monster, error)
	ListByOwner(ctx context.Context, userID uint64) ([]models.Monster, error)
	ListAll(ctx context.Context) ([]models.Monster, error)
	GetByID(ctx context.Context, id int64) (*models.Monster, error)
	GetImageURL(ctx context.Context, id int64) (string, error)
	Delete(ctx context.Context, id int64, principal models.Principal) error
	Rename(ctx context.Context, id int64, userID uint64, name string) (*models.Monster, error)
	// ImageReferenced сообщает, ссылается ли на imageURL хотя бы одна запись.
	ImageReferenced(ctx context.Context, imageURL string) (bool, error)
}

// OrphanReporter принимает файлы, оставшиеся в хранилище без записи в БД.
type OrphanReporter interface {
	ReportOrphan(ctx context.Context, event models.OrphanedAssetEvent) error
}

// GenerationLimiter ограничивает число генераций пользователя.
type GenerationLimiter interface {
	// Allow возвращает false, если лимит исчерпан.
	Allow(ctx context.Context, userID uint64) (bool, error)
}
