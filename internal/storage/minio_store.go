package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"bestiary-server/internal/config"
)

// MinioAssetStore хранит иллюстрации в MinIO/S3 совместимом хранилище.
type MinioAssetStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	logger        *zap.Logger
}

// NewMinioAssetStore подключается к хранилищу, создает бакет при необходимости
// и открывает анонимное чтение для папки иллюстраций.
func NewMinioAssetStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*MinioAssetStore, error) {
	log := logger.Named("MinioAssetStore")
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(initCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(initCtx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		log.Info("Bucket created", zap.String("bucket", cfg.Bucket))
	}
	if err := client.SetBucketPolicy(initCtx, cfg.Bucket, publicReadPolicy(cfg.Bucket, cfg.Folder)); err != nil {
		// Ссылки все равно выдаются, но без политики их можно открыть только через прокси
		log.Warn("Failed to set public read policy", zap.String("bucket", cfg.Bucket), zap.Error(err))
	}

	return &MinioAssetStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        log,
	}, nil
}

// Upload загружает объект и возвращает его публичную ссылку.
func (s *MinioAssetStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return s.PublicURL(key), nil
}

// Delete удаляет объект. Отсутствие объекта ошибкой не считается.
func (s *MinioAssetStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		s.logger.Debug("Object already absent", zap.String("key", key))
		return nil
	}
	return fmt.Errorf("delete object: %w", err)
}

// PublicURL строит стабильную ссылку вида <base>/<bucket>/<key>.
func (s *MinioAssetStore) PublicURL(key string) string {
	return PublicURL(s.publicBaseURL, s.bucket, key)
}

func PublicURL(baseURL, bucket, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + bucket + "/" + strings.TrimLeft(key, "/")
}

func publicReadPolicy(bucket, folder string) string {
	resource := fmt.Sprintf("arn:aws:s3:::%s/%s/*", bucket, strings.Trim(folder, "/"))
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["%s"]}]}`, resource)
}
