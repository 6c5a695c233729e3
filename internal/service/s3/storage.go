package s3

import (
	"context"
	"time"

	"mediavault/internal/domain"
)

// ObjectMetadata - метаданные объекта из HeadObject
type ObjectMetadata struct {
	ContentLength int64
	ContentType   string
	LastModified  time.Time
}

// PresignedURL - предподписанный URL с временем жизни
type PresignedURL struct {
	URL       string
	Key       string
	ExpiresAt time.Time
}

// Storage определяет интерфейс для работы с S3-совместимым хранилищем.
// Все операции потенциально медленные: их нельзя вызывать под
// блокировкой строки аккаунта.
type Storage interface {
	GetUploadURL(ctx context.Context, key string) (*PresignedURL, error)
	GetDownloadURL(ctx context.Context, key string, ttl time.Duration) (*PresignedURL, error)
	InitChunkedUpload(ctx context.Context, key string) (string, error)
	GetChunkURLs(ctx context.Context, key, uploadID string, chunkCount int) ([]domain.PartURL, error)
	CompleteChunkedUpload(ctx context.Context, key, uploadID string, parts []domain.CompletedPart) error
	AbortChunkedUpload(ctx context.Context, key, uploadID string) error
	// HeadObject возвращает (nil, nil), если объекта нет
	HeadObject(ctx context.Context, key string) (*ObjectMetadata, error)
	CopyObject(ctx context.Context, sourceKey, destKey string) error
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}
