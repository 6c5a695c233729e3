package domain_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"mediavault/internal/domain"
)

func TestAssetStatusTransitions(t *testing.T) {
	allowed := map[domain.AssetStatus][]domain.AssetStatus{
		domain.StatusUploading:        {domain.StatusProcessing, domain.StatusReady},
		domain.StatusProcessing:       {domain.StatusReady, domain.StatusProcessingFailed},
		domain.StatusReady:            {domain.StatusProcessing},
		domain.StatusProcessingFailed: {domain.StatusProcessing},
	}

	// Проверяем все пары статусов: пары вне таблицы запрещены
	for _, from := range domain.Statuses() {
		for _, to := range domain.Statuses() {
			expected := false
			for _, a := range allowed[from] {
				if a == to {
					expected = true
				}
			}
			assert.Equal(t, expected, from.CanTransitionTo(to),
				"переход %s -> %s", from, to)
		}
	}
}

func TestAssetStatusValid(t *testing.T) {
	for _, s := range domain.Statuses() {
		assert.True(t, s.Valid())
	}
	assert.False(t, domain.AssetStatus("deleted").Valid())
	assert.False(t, domain.AssetStatus("").Valid())
}

func TestObjectKeyFormat(t *testing.T) {
	accountID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	projectID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	assetID := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	prefix := fmt.Sprintf("accounts/%s/projects/%s/assets/%s", accountID, projectID, assetID)

	assert.Equal(t, prefix+"/original", domain.OriginalKey(accountID, projectID, assetID))
	assert.Equal(t, prefix+"/thumbnail", domain.ThumbnailKey(accountID, projectID, assetID))
	assert.Equal(t, prefix+"/custom-thumbnail/v2",
		domain.CustomThumbnailKey(accountID, projectID, assetID, "v2"))
}

func TestAssetRestorableAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		deletedAt  *time.Time
		restorable bool
	}{
		{
			name:       "Не удален",
			deletedAt:  nil,
			restorable: false,
		},
		{
			name:       "Удален только что",
			deletedAt:  timePtr(now),
			restorable: true,
		},
		{
			name:       "Удален 29 дней назад",
			deletedAt:  timePtr(now.Add(-29 * 24 * time.Hour)),
			restorable: true,
		},
		{
			name:       "Ровно на границе окна",
			deletedAt:  timePtr(now.Add(-domain.RestoreWindow)),
			restorable: true,
		},
		{
			name:       "Окно истекло",
			deletedAt:  timePtr(now.Add(-domain.RestoreWindow - time.Second)),
			restorable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset := &domain.Asset{DeletedAt: tt.deletedAt}
			assert.Equal(t, tt.restorable, asset.RestorableAt(now))
			assert.Equal(t, tt.deletedAt != nil, asset.IsDeleted())
		})
	}
}

func TestQuotaExceededError(t *testing.T) {
	err := domain.NewQuotaExceeded(100, 150)

	domErr, ok := domain.AsError(err)
	assert.True(t, ok)
	assert.Equal(t, domain.ErrKindQuotaExceeded, domErr.Kind)
	assert.Equal(t, int64(100), domErr.AvailableBytes)
	assert.Equal(t, int64(150), domErr.RequestedBytes)
	assert.Contains(t, err.Error(), "available 100 bytes")
	assert.Contains(t, err.Error(), "requested 150 bytes")
}

func timePtr(t time.Time) *time.Time {
	return &t
}
