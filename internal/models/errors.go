package models

import "errors"

var (
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input data")
	ErrRateLimited  = errors.New("generation rate limit exceeded")

	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")
)

// Ошибки стадий конвейера генерации. Наружу не отдаются, только в логи и метрики.
var (
	ErrUpstreamGeneration = errors.New("upstream text generation failed")
	ErrUpstreamImage      = errors.New("upstream image generation failed")
	ErrAssetFetch         = errors.New("illustration fetch failed")
	ErrAssetUpload        = errors.New("illustration upload failed")
	ErrPersistence        = errors.New("monster persistence failed")
)

// FailureKind возвращает короткое имя вида ошибки конвейера для логов и метрик.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamGeneration):
		return "upstream_generation"
	case errors.Is(err, ErrUpstreamImage):
		return "upstream_image"
	case errors.Is(err, ErrAssetFetch):
		return "asset_fetch"
	case errors.Is(err, ErrAssetUpload):
		return "asset_upload"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "unknown"
	}
}
