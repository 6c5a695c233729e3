package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AssetStatus описывает этап жизненного цикла файла.
// Мягкое удаление статусом не является: оно живет в поле DeletedAt,
// при восстановлении файл возвращается в тот статус, в котором был удален.
type AssetStatus string

const (
	StatusUploading        AssetStatus = "uploading"
	StatusProcessing       AssetStatus = "processing"
	StatusReady            AssetStatus = "ready"
	StatusProcessingFailed AssetStatus = "processing_failed"
)

// RestoreWindow - срок, в течение которого удаленный файл можно восстановить
const RestoreWindow = 30 * 24 * time.Hour

// allowedTransitions - полная таблица переходов статусов.
// Пара, которой здесь нет, запрещена.
var allowedTransitions = map[AssetStatus]map[AssetStatus]bool{
	StatusUploading: {
		StatusProcessing: true,
		StatusReady:      true,
	},
	StatusProcessing: {
		StatusReady:            true,
		StatusProcessingFailed: true,
	},
	StatusReady: {
		StatusProcessing: true,
	},
	StatusProcessingFailed: {
		StatusProcessing: true,
	},
}

// Valid сообщает, известен ли статус
func (s AssetStatus) Valid() bool {
	switch s {
	case StatusUploading, StatusProcessing, StatusReady, StatusProcessingFailed:
		return true
	}
	return false
}

// CanTransitionTo проверяет переход по таблице
func (s AssetStatus) CanTransitionTo(next AssetStatus) bool {
	return allowedTransitions[s][next]
}

// Statuses возвращает все известные статусы
func Statuses() []AssetStatus {
	return []AssetStatus{StatusUploading, StatusProcessing, StatusReady, StatusProcessingFailed}
}

// Metadata - технические метаданные файла (длительность видео и т.п.),
// хранятся в JSONB
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported metadata source type %T", src)
	}
	return json.Unmarshal(b, m)
}

// Asset - запись о загруженном файле
type Asset struct {
	UUID               uuid.UUID   `json:"uuid" db:"uuid"`
	ProjectID          uuid.UUID   `json:"project_id" db:"project_id"`
	FolderID           *uuid.UUID  `json:"folder_id,omitempty" db:"folder_id"`
	VersionStackID     *uuid.UUID  `json:"version_stack_id,omitempty" db:"version_stack_id"`
	Name               string      `json:"name" db:"name"`
	OriginalName       string      `json:"original_name" db:"original_name"`
	MIMEType           string      `json:"mime_type" db:"mime_type"`
	SizeBytes          int64       `json:"size_bytes" db:"size_bytes"`
	Checksum           *string     `json:"checksum,omitempty" db:"checksum"`
	Status             AssetStatus `json:"status" db:"status"`
	CustomThumbnailKey *string     `json:"custom_thumbnail_key,omitempty" db:"custom_thumbnail_key"`
	Metadata           Metadata    `json:"metadata,omitempty" db:"metadata"`
	DeletedAt          *time.Time  `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

// IsDeleted сообщает, находится ли файл в корзине
func (a *Asset) IsDeleted() bool {
	return a.DeletedAt != nil
}

// RestorableAt проверяет, не истекло ли окно восстановления
func (a *Asset) RestorableAt(now time.Time) bool {
	if a.DeletedAt == nil {
		return false
	}
	return !now.After(a.DeletedAt.Add(RestoreWindow))
}

// AssetUpdate - частичное обновление записи файла
type AssetUpdate struct {
	Name     *string      `json:"name,omitempty"`
	FolderID *uuid.UUID   `json:"folder_id,omitempty"`
	Status   *AssetStatus `json:"status,omitempty"`
}
