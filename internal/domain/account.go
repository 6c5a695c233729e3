package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account - аккаунт платформы с квотой хранилища.
// Инвариант: 0 <= StorageUsedBytes <= StorageQuotaBytes после каждой
// зафиксированной операции; проверка и инкремент выполняются только под
// блокировкой строки аккаунта.
type Account struct {
	ID                uuid.UUID `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	StorageQuotaBytes int64     `json:"storage_quota_bytes" db:"storage_quota_bytes"`
	StorageUsedBytes  int64     `json:"storage_used_bytes" db:"storage_used_bytes"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// QuotaInfo - сводка по квоте для API
type QuotaInfo struct {
	TotalSpace     int64   `json:"total_space"`
	UsedSpace      int64   `json:"used_space"`
	AvailableSpace int64   `json:"available_space"`
	UsagePercent   float64 `json:"usage_percent"`
}

// NewQuotaInfo собирает сводку из счетчиков аккаунта
func NewQuotaInfo(a *Account) *QuotaInfo {
	info := &QuotaInfo{
		TotalSpace:     a.StorageQuotaBytes,
		UsedSpace:      a.StorageUsedBytes,
		AvailableSpace: a.StorageQuotaBytes - a.StorageUsedBytes,
	}
	if a.StorageQuotaBytes > 0 {
		info.UsagePercent = float64(a.StorageUsedBytes) / float64(a.StorageQuotaBytes) * 100
	}
	return info
}
