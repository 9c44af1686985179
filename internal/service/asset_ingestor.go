package service

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bestiary-server/internal/models"
)

// DefaultAssetFolder - логическая папка иллюстраций в хранилище.
const DefaultAssetFolder = "Monsters"

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// AssetIngestor загружает иллюстрации в долговременное хранилище.
type AssetIngestor struct {
	store  AssetStore
	folder string
	logger *zap.Logger
}

// NewAssetIngestor создает загрузчик. Пустая папка заменяется на Monsters.
func NewAssetIngestor(store AssetStore, folder string, logger *zap.Logger) *AssetIngestor {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		folder = DefaultAssetFolder
	}
	return &AssetIngestor{store: store, folder: folder, logger: logger.Named("AssetIngestor")}
}

// Ingest сохраняет байты под ключом <folder>/<uuid>.<ext> и возвращает ключ и публичную ссылку.
// Любая ошибка оборачивается в models.ErrAssetUpload.
func (i *AssetIngestor) Ingest(ctx context.Context, payload *models.IllustrationPayload) (*models.StoredAsset, error) {
	if payload == nil || len(payload.Data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", models.ErrAssetUpload)
	}

	contentType := detectImageType(payload)
	key := path.Join(i.folder, uuid.NewString()+"."+extensionFor(contentType))

	url, err := i.store.Upload(ctx, key, payload.Data, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAssetUpload, err)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: store returned empty url", models.ErrAssetUpload)
	}

	i.logger.Debug("Illustration stored", zap.String("key", key), zap.String("content_type", contentType))
	return &models.StoredAsset{Key: key, URL: url}, nil
}

// detectImageType определяет тип по содержимому, заголовок ответа используется как запасной вариант.
func detectImageType(payload *models.IllustrationPayload) string {
	sniffed := http.DetectContentType(payload.Data)
	if _, ok := imageExtensions[sniffed]; ok {
		return sniffed
	}
	declared := strings.TrimSpace(strings.Split(payload.ContentType, ";")[0])
	if _, ok := imageExtensions[declared]; ok {
		return declared
	}
	return "image/png"
}

func extensionFor(contentType string) string {
	if ext, ok := imageExtensions[contentType]; ok {
		return ext
	}
	return "png"
}
