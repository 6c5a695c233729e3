package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mediavault/internal/auth"
	"mediavault/internal/domain"
	"mediavault/internal/jobs"
	"mediavault/internal/repository"
	"mediavault/internal/service/s3"
)

// UploadService ведет протокол загрузки против внешнего хранилища:
// простую загрузку по предподписанному URL с последующим подтверждением
// и составную загрузку по частям. Сессия составной загрузки локально не
// хранится - единственный долговечный след это статус записи о файле.
type UploadService struct {
	assetRepo   repository.AssetRepository
	projectRepo repository.ProjectRepository
	storage     s3.Storage
	queue       jobs.Queue
	log         *zap.Logger
}

func NewUploadService(
	assetRepo repository.AssetRepository,
	projectRepo repository.ProjectRepository,
	storage s3.Storage,
	queue jobs.Queue,
	log *zap.Logger,
) *UploadService {
	return &UploadService{
		assetRepo:   assetRepo,
		projectRepo: projectRepo,
		storage:     storage,
		queue:       queue,
		log:         log,
	}
}

// IssueUploadTarget выдает предподписанную цель для простой загрузки
func (s *UploadService) IssueUploadTarget(ctx context.Context, accountID uuid.UUID, asset *domain.Asset) (*domain.UploadTarget, error) {
	key := domain.OriginalKey(accountID, asset.ProjectID, asset.UUID)

	presigned, err := s.storage.GetUploadURL(ctx, key)
	if err != nil {
		return nil, domain.NewUpstream("failed to issue upload URL", err)
	}

	return &domain.UploadTarget{
		UploadURL:       presigned.URL,
		UploadMethod:    domain.UploadMethodPut,
		UploadExpiresAt: presigned.ExpiresAt,
		StorageKey:      key,
		ChunkSize:       domain.RecommendedChunkSize,
	}, nil
}

// ReissueUploadTarget выдает новую цель простой загрузки для записи,
// которая все еще ожидает загрузки. Нужен, когда выданный при создании
// URL истек или так и не дошел до клиента: списание уже зафиксировано,
// запись не должна оставаться без пути к загрузке.
func (s *UploadService) ReissueUploadTarget(ctx context.Context, ident *auth.Identity, assetID uuid.UUID) (*domain.UploadTarget, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}
	if asset.Status != domain.StatusUploading {
		return nil, domain.NewValidation("status",
			fmt.Sprintf("asset is not awaiting upload (status %s)", asset.Status))
	}

	return s.IssueUploadTarget(ctx, ident.AccountID, asset)
}

// Confirm проверяет, что объект действительно появился в хранилище,
// переводит файл в processing и ставит задание конвейеру. Повторное
// подтверждение отклоняется: файл уже не в статусе uploading.
func (s *UploadService) Confirm(ctx context.Context, ident *auth.Identity, assetID uuid.UUID) (*domain.Asset, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}
	if asset.Status != domain.StatusUploading {
		return nil, domain.NewValidation("status",
			fmt.Sprintf("asset is not awaiting upload confirmation (status %s)", asset.Status))
	}

	key := domain.OriginalKey(ident.AccountID, asset.ProjectID, asset.UUID)
	meta, err := s.storage.HeadObject(ctx, key)
	if err != nil {
		return nil, domain.NewUpstream("failed to check uploaded object", err)
	}
	if meta == nil {
		return nil, domain.NewValidation("upload", "file has not been uploaded yet")
	}

	if err := s.assetRepo.UpdateStatus(ctx, asset.UUID, domain.StatusProcessing); err != nil {
		return nil, err
	}
	asset.Status = domain.StatusProcessing

	s.enqueueProcessing(ident.AccountID, asset, key)

	return asset, nil
}

// InitChunked инициализирует составную загрузку у хранилища
func (s *UploadService) InitChunked(ctx context.Context, ident *auth.Identity, assetID uuid.UUID) (*domain.MultipartSession, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}
	if asset.Status != domain.StatusUploading {
		return nil, domain.NewValidation("status",
			fmt.Sprintf("asset is not awaiting upload (status %s)", asset.Status))
	}

	key := domain.OriginalKey(ident.AccountID, asset.ProjectID, asset.UUID)
	uploadID, err := s.storage.InitChunkedUpload(ctx, key)
	if err != nil {
		return nil, domain.NewUpstream("failed to init chunked upload", err)
	}

	return &domain.MultipartSession{UploadID: uploadID, StorageKey: key}, nil
}

// PartURLs выдает предподписанные URL частей. Количество частей
// ограничено снизу и сверху, а для больших файлов дополнительно
// отсекаются запросы на заведомо абсурдно мелкие части.
func (s *UploadService) PartURLs(ctx context.Context, ident *auth.Identity, assetID uuid.UUID, uploadID string, chunkCount int) ([]domain.PartURL, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}
	if uploadID == "" {
		return nil, domain.NewValidation("upload_id", "upload id is required")
	}

	if chunkCount < 1 || chunkCount > domain.MaxChunkCount {
		return nil, domain.NewValidation("chunk_count",
			fmt.Sprintf("chunk count must be between 1 and %d", domain.MaxChunkCount))
	}

	if maxChunks := maxChunkCountForSize(asset.SizeBytes); maxChunks > 0 && chunkCount > maxChunks {
		return nil, domain.NewValidation("chunk_count",
			fmt.Sprintf("chunk count %d is too large for file of %d bytes (max %d)", chunkCount, asset.SizeBytes, maxChunks))
	}

	key := domain.OriginalKey(ident.AccountID, asset.ProjectID, asset.UUID)
	urls, err := s.storage.GetChunkURLs(ctx, key, uploadID, chunkCount)
	if err != nil {
		return nil, domain.NewUpstream("failed to presign part URLs", err)
	}
	return urls, nil
}

// Complete передает список частей хранилищу, переводит файл в
// processing и ставит задание конвейеру
func (s *UploadService) Complete(ctx context.Context, ident *auth.Identity, assetID uuid.UUID, uploadID string, parts []domain.CompletedPart) (*domain.Asset, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	// Удаленная запись не может завершить загрузку: ее резерв квоты уже
	// возвращен, переход в processing снова сделал бы байты бесплатными
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}
	if uploadID == "" {
		return nil, domain.NewValidation("upload_id", "upload id is required")
	}
	if asset.Status != domain.StatusUploading {
		return nil, domain.NewValidation("status",
			fmt.Sprintf("asset is not awaiting upload (status %s)", asset.Status))
	}

	if len(parts) == 0 {
		return nil, domain.NewValidation("parts", "parts list cannot be empty")
	}
	for i, part := range parts {
		if part.PartNumber < 1 {
			return nil, domain.NewValidation("parts",
				fmt.Sprintf("part %d has invalid part number %d", i, part.PartNumber))
		}
		if part.ETag == "" {
			return nil, domain.NewValidation("parts",
				fmt.Sprintf("part %d has empty etag", part.PartNumber))
		}
	}

	key := domain.OriginalKey(ident.AccountID, asset.ProjectID, asset.UUID)
	if err := s.storage.CompleteChunkedUpload(ctx, key, uploadID, parts); err != nil {
		return nil, domain.NewUpstream("failed to complete chunked upload", err)
	}

	if err := s.assetRepo.UpdateStatus(ctx, asset.UUID, domain.StatusProcessing); err != nil {
		return nil, err
	}
	asset.Status = domain.StatusProcessing

	s.enqueueProcessing(ident.AccountID, asset, key)

	return asset, nil
}

// Abort отменяет составную загрузку у хранилища. Статус записи не
// трогается: осиротевшую запись вызывающий удаляет отдельно.
func (s *UploadService) Abort(ctx context.Context, ident *auth.Identity, assetID uuid.UUID, uploadID string) error {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return err
	}
	if asset.IsDeleted() {
		return domain.NewNotFound("asset_id", "asset not found")
	}
	if uploadID == "" {
		return domain.NewValidation("upload_id", "upload id is required")
	}

	key := domain.OriginalKey(ident.AccountID, asset.ProjectID, asset.UUID)
	if err := s.storage.AbortChunkedUpload(ctx, key, uploadID); err != nil {
		return domain.NewUpstream("failed to abort chunked upload", err)
	}
	return nil
}

// maxChunkCountForSize ограничивает количество частей для файла:
// удвоенное количество, подразумеваемое минимальным размером части.
// Для маленьких файлов ограничение не применяется.
func maxChunkCountForSize(sizeBytes int64) int {
	if sizeBytes <= domain.MinMultipartChunkSize {
		return 0
	}
	implied := (sizeBytes + domain.MinMultipartChunkSize - 1) / domain.MinMultipartChunkSize
	maxChunks := 2 * implied
	if maxChunks > domain.MaxChunkCount {
		return domain.MaxChunkCount
	}
	return int(maxChunks)
}

func (s *UploadService) enqueueProcessing(accountID uuid.UUID, asset *domain.Asset, storageKey string) {
	s.queue.EnqueueProcessing(jobs.ProcessingJob{
		AssetID:      asset.UUID,
		AccountID:    accountID,
		ProjectID:    asset.ProjectID,
		StorageKey:   storageKey,
		MIMEType:     asset.MIMEType,
		OriginalName: asset.OriginalName,
	})
}
