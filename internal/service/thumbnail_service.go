package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/bimg"
	"go.uber.org/zap"

	"mediavault/internal/auth"
	"mediavault/internal/domain"
	"mediavault/internal/jobs"
	"mediavault/internal/repository"
	"mediavault/internal/service/s3"
)

const (
	maxThumbnailSizeBytes = 10 << 20
	thumbnailMaxDimension = 1024
	thumbnailQuality      = 85
	thumbnailURLTTL       = 15 * time.Minute
)

// ThumbnailService управляет миниатюрами файлов. Автоматическую
// миниатюру генерирует конвейер обработки; здесь обрабатывается
// пользовательская миниатюра и извлечение кадра из видео.
type ThumbnailService struct {
	assetRepo   repository.AssetRepository
	projectRepo repository.ProjectRepository
	storage     s3.Storage
	queue       jobs.Queue
	log         *zap.Logger
}

func NewThumbnailService(
	assetRepo repository.AssetRepository,
	projectRepo repository.ProjectRepository,
	storage s3.Storage,
	queue jobs.Queue,
	log *zap.Logger,
) *ThumbnailService {
	return &ThumbnailService{
		assetRepo:   assetRepo,
		projectRepo: projectRepo,
		storage:     storage,
		queue:       queue,
		log:         log,
	}
}

// SetCustomThumbnail принимает картинку в base64, приводит ее к
// разумному размеру и сохраняет как пользовательскую миниатюру файла.
// Старая пользовательская миниатюра удаляется по возможности.
func (s *ThumbnailService) SetCustomThumbnail(ctx context.Context, ident *auth.Identity, assetID uuid.UUID, imageData string) (*domain.Asset, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}

	raw, err := decodeImageData(imageData)
	if err != nil {
		return nil, err
	}

	imgType := bimg.DetermineImageType(raw)
	contentType, ok := thumbnailContentType(imgType)
	if !ok {
		return nil, domain.NewValidation("image_data", "image must be JPEG, PNG or WebP")
	}

	processed, err := bimg.NewImage(raw).Process(bimg.Options{
		Width:   thumbnailMaxDimension,
		Height:  thumbnailMaxDimension,
		Enlarge: false,
		Quality: thumbnailQuality,
	})
	if err != nil {
		return nil, domain.NewValidation("image_data", fmt.Sprintf("failed to process image: %v", err))
	}

	oldKey := asset.CustomThumbnailKey
	newKey := domain.CustomThumbnailKey(ident.AccountID, asset.ProjectID, asset.UUID, uuid.NewString())

	if err := s.storage.PutObject(ctx, newKey, processed, contentType); err != nil {
		return nil, domain.NewUpstream("failed to store thumbnail", err)
	}

	asset.CustomThumbnailKey = &newKey
	if err := s.assetRepo.Update(ctx, asset); err != nil {
		return nil, err
	}

	if oldKey != nil {
		if err := s.storage.DeleteObject(ctx, *oldKey); err != nil {
			s.log.Warn("failed to delete previous custom thumbnail",
				zap.String("key", *oldKey),
				zap.Error(err))
		}
	}

	return asset, nil
}

// RequestUploadURL выдает предподписанный URL для прямой загрузки
// пользовательской миниатюры, минуя тело запроса
func (s *ThumbnailService) RequestUploadURL(ctx context.Context, ident *auth.Identity, assetID uuid.UUID) (*domain.UploadTarget, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}

	key := domain.CustomThumbnailKey(ident.AccountID, asset.ProjectID, asset.UUID, uuid.NewString())
	presigned, err := s.storage.GetUploadURL(ctx, key)
	if err != nil {
		return nil, domain.NewUpstream("failed to issue thumbnail upload URL", err)
	}

	asset.CustomThumbnailKey = &key
	if err := s.assetRepo.Update(ctx, asset); err != nil {
		return nil, err
	}

	return &domain.UploadTarget{
		UploadURL:       presigned.URL,
		UploadMethod:    domain.UploadMethodPut,
		UploadExpiresAt: presigned.ExpiresAt,
		StorageKey:      key,
	}, nil
}

// GetThumbnailURL возвращает URL миниатюры: пользовательская имеет
// приоритет над автоматической. Автоматическая миниатюра есть только у
// обработанных картинок и видео.
func (s *ThumbnailService) GetThumbnailURL(ctx context.Context, ident *auth.Identity, assetID uuid.UUID) (*s3.PresignedURL, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}

	if asset.CustomThumbnailKey != nil {
		url, err := s.storage.GetDownloadURL(ctx, *asset.CustomThumbnailKey, thumbnailURLTTL)
		if err != nil {
			return nil, domain.NewUpstream("failed to presign thumbnail URL", err)
		}
		return url, nil
	}

	if asset.Status != domain.StatusReady {
		return nil, domain.NewNotFound("thumbnail", "thumbnail is not available")
	}
	if !strings.HasPrefix(asset.MIMEType, "image/") && !strings.HasPrefix(asset.MIMEType, "video/") {
		return nil, domain.NewNotFound("thumbnail", "thumbnail is not available for this file type")
	}

	key := domain.ThumbnailKey(ident.AccountID, asset.ProjectID, asset.UUID)
	url, err := s.storage.GetDownloadURL(ctx, key, thumbnailURLTTL)
	if err != nil {
		return nil, domain.NewUpstream("failed to presign thumbnail URL", err)
	}
	return url, nil
}

// DeleteCustomThumbnail убирает пользовательскую миниатюру; файл
// возвращается к автоматической. Объект в хранилище удаляется по
// возможности, ссылка в записи очищается всегда.
func (s *ThumbnailService) DeleteCustomThumbnail(ctx context.Context, ident *auth.Identity, assetID uuid.UUID) (*domain.Asset, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}
	if asset.CustomThumbnailKey == nil {
		return asset, nil
	}

	if err := s.storage.DeleteObject(ctx, *asset.CustomThumbnailKey); err != nil {
		s.log.Warn("failed to delete custom thumbnail object",
			zap.String("key", *asset.CustomThumbnailKey),
			zap.Error(err))
	}

	asset.CustomThumbnailKey = nil
	if err := s.assetRepo.Update(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// CaptureFrame ставит конвейеру задание извлечь кадр видео на заданной
// секунде; кадр станет пользовательской миниатюрой асинхронно
func (s *ThumbnailService) CaptureFrame(ctx context.Context, ident *auth.Identity, assetID uuid.UUID, timestamp float64) (uuid.UUID, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return uuid.Nil, err
	}
	if asset.IsDeleted() {
		return uuid.Nil, domain.NewNotFound("asset_id", "asset not found")
	}
	if !strings.HasPrefix(asset.MIMEType, "video/") {
		return uuid.Nil, domain.NewValidation("asset_id", "frame capture is only available for video files")
	}
	if asset.Status != domain.StatusReady {
		return uuid.Nil, domain.NewValidation("status",
			fmt.Sprintf("video is not ready for frame capture (status %s)", asset.Status))
	}
	if timestamp < 0 {
		return uuid.Nil, domain.NewValidation("timestamp", "timestamp cannot be negative")
	}

	jobID := s.queue.EnqueueFrameCapture(jobs.FrameCaptureJob{
		AssetID:        asset.UUID,
		AccountID:      ident.AccountID,
		ProjectID:      asset.ProjectID,
		Timestamp:      timestamp,
		StorageKey:     domain.OriginalKey(ident.AccountID, asset.ProjectID, asset.UUID),
		MIMEType:       asset.MIMEType,
		SourceFilename: asset.OriginalName,
	})

	return jobID, nil
}

// decodeImageData разбирает base64-картинку, принимая и голый base64, и
// data URL
func decodeImageData(imageData string) ([]byte, error) {
	if imageData == "" {
		return nil, domain.NewValidation("image_data", "image data is required")
	}

	if idx := strings.Index(imageData, ";base64,"); idx != -1 && strings.HasPrefix(imageData, "data:") {
		imageData = imageData[idx+len(";base64,"):]
	}

	raw, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		return nil, domain.NewValidation("image_data", "image data is not valid base64")
	}
	if len(raw) == 0 {
		return nil, domain.NewValidation("image_data", "image data is empty")
	}
	if len(raw) > maxThumbnailSizeBytes {
		return nil, domain.NewValidation("image_data",
			fmt.Sprintf("image exceeds maximum size of %d bytes", maxThumbnailSizeBytes))
	}
	return raw, nil
}

func thumbnailContentType(t bimg.ImageType) (string, bool) {
	switch t {
	case bimg.JPEG:
		return "image/jpeg", true
	case bimg.PNG:
		return "image/png", true
	case bimg.WEBP:
		return "image/webp", true
	default:
		return "", false
	}
}
