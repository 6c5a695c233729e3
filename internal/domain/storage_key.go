package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ObjectVariant - назначение объекта в хранилище
type ObjectVariant string

const (
	VariantOriginal        ObjectVariant = "original"
	VariantThumbnail       ObjectVariant = "thumbnail"
	VariantCustomThumbnail ObjectVariant = "custom-thumbnail"
)

// ObjectKey - структурированный ключ объекта: объекты разложены по
// аккаунту, проекту, файлу и назначению
type ObjectKey struct {
	AccountID     uuid.UUID
	ProjectID     uuid.UUID
	AssetID       uuid.UUID
	Variant       ObjectVariant
	Discriminator string
}

func (k ObjectKey) String() string {
	key := fmt.Sprintf("accounts/%s/projects/%s/assets/%s/%s",
		k.AccountID, k.ProjectID, k.AssetID, k.Variant)
	if k.Discriminator != "" {
		key += "/" + k.Discriminator
	}
	return key
}

// OriginalKey - ключ оригинала файла
func OriginalKey(accountID, projectID, assetID uuid.UUID) string {
	return ObjectKey{AccountID: accountID, ProjectID: projectID, AssetID: assetID, Variant: VariantOriginal}.String()
}

// ThumbnailKey - ключ автоматически сгенерированной миниатюры
func ThumbnailKey(accountID, projectID, assetID uuid.UUID) string {
	return ObjectKey{AccountID: accountID, ProjectID: projectID, AssetID: assetID, Variant: VariantThumbnail}.String()
}

// CustomThumbnailKey - ключ пользовательской миниатюры; дискриминатор
// делает ключ уникальным при повторных загрузках
func CustomThumbnailKey(accountID, projectID, assetID uuid.UUID, discriminator string) string {
	return ObjectKey{
		AccountID:     accountID,
		ProjectID:     projectID,
		AssetID:       assetID,
		Variant:       VariantCustomThumbnail,
		Discriminator: discriminator,
	}.String()
}
