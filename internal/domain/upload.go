package domain

import "time"

// Режимы загрузки, отдаваемые клиенту вместе с целевым URL
const (
	UploadMethodPut       = "PUT"
	RecommendedChunkSize  = 5 * 1024 * 1024 // 5MB
	MinMultipartChunkSize = 5 * 1024 * 1024 // минимальный размер части в S3
	MaxChunkCount         = 10000
)

// UploadTarget - выданная клиенту цель загрузки
type UploadTarget struct {
	UploadURL       string    `json:"upload_url"`
	UploadMethod    string    `json:"upload_method"`
	UploadExpiresAt time.Time `json:"upload_expires_at"`
	StorageKey      string    `json:"storage_key"`
	ChunkSize       int64     `json:"chunk_size"`
}

// MultipartSession - ответ на инициализацию составной загрузки.
// Локально сессия не хранится: uploadId и ключ выдает хранилище,
// единственный долговечный след - статус записи файла.
type MultipartSession struct {
	UploadID   string `json:"upload_id"`
	StorageKey string `json:"storage_key"`
}

// PartURL - предподписанный URL для одной части
type PartURL struct {
	PartNumber int       `json:"part_number"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// CompletedPart - загруженная клиентом часть
type CompletedPart struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
}
