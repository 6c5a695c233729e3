package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"mediavault/internal/auth"
	"mediavault/internal/domain"
	"mediavault/internal/jobs"
	"mediavault/internal/repository"
	"mediavault/internal/service/s3"
)

const downloadURLTTL = 15 * time.Minute

// AssetService - фасад жизненного цикла файла: создание, обновление,
// копирование, перемещение, мягкое удаление и восстановление.
// Списание квоты и вставка записи о файле всегда фиксируются одной
// транзакцией; обращения к хранилищу объектов выполняются строго после
// коммита.
type AssetService struct {
	assetRepo    repository.AssetRepository
	projectRepo  repository.ProjectRepository
	quotaService *StorageQuotaService
	uploadSvc    *UploadService
	txManager    repository.TxManager
	storage      s3.Storage
	queue        jobs.Queue
	log          *zap.Logger

	maxFileSizeBytes int64
	now              func() time.Time
}

func NewAssetService(
	assetRepo repository.AssetRepository,
	projectRepo repository.ProjectRepository,
	quotaService *StorageQuotaService,
	uploadSvc *UploadService,
	txManager repository.TxManager,
	storage s3.Storage,
	queue jobs.Queue,
	log *zap.Logger,
	maxFileSizeBytes int64,
) *AssetService {
	return &AssetService{
		assetRepo:        assetRepo,
		projectRepo:      projectRepo,
		quotaService:     quotaService,
		uploadSvc:        uploadSvc,
		txManager:        txManager,
		storage:          storage,
		queue:            queue,
		log:              log,
		maxFileSizeBytes: maxFileSizeBytes,
		now:              time.Now,
	}
}

// CreateAssetInput - параметры создания файла
type CreateAssetInput struct {
	ProjectID     uuid.UUID  `json:"project_id"`
	FolderID      *uuid.UUID `json:"folder_id,omitempty"`
	Name          string     `json:"name"`
	MIMEType      string     `json:"mime_type"`
	FileSizeBytes int64      `json:"file_size_bytes"`
	Checksum      *string    `json:"checksum,omitempty"`
}

// CopyAssetInput - параметры копирования файла
type CopyAssetInput struct {
	DestProjectID *uuid.UUID `json:"dest_project_id,omitempty"`
	DestFolderID  *uuid.UUID `json:"dest_folder_id,omitempty"`
	Name          *string    `json:"name,omitempty"`
}

// Create создает запись о файле в статусе uploading, атомарно резервируя
// квоту, и выдает цель загрузки
func (s *AssetService) Create(ctx context.Context, ident *auth.Identity, in CreateAssetInput) (*domain.Asset, *domain.UploadTarget, error) {
	if in.Name == "" {
		return nil, nil, domain.NewValidation("name", "name is required")
	}
	if in.MIMEType == "" {
		return nil, nil, domain.NewValidation("mime_type", "mime type is required")
	}
	if in.FileSizeBytes <= 0 {
		return nil, nil, domain.NewValidation("file_size_bytes", "file size must be positive")
	}
	if in.FileSizeBytes > s.maxFileSizeBytes {
		return nil, nil, domain.NewValidation("file_size_bytes",
			fmt.Sprintf("file size exceeds maximum allowed size of %d bytes", s.maxFileSizeBytes))
	}

	project, err := s.projectRepo.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if project.AccountID != ident.AccountID {
		return nil, nil, domain.NewNotFound("project_id", "project not found")
	}
	if in.FolderID != nil {
		if _, err := resolveFolder(ctx, s.projectRepo, project.ID, *in.FolderID); err != nil {
			return nil, nil, err
		}
	}

	asset := &domain.Asset{
		UUID:         uuid.New(),
		ProjectID:    project.ID,
		FolderID:     in.FolderID,
		Name:         in.Name,
		OriginalName: in.Name,
		MIMEType:     in.MIMEType,
		SizeBytes:    in.FileSizeBytes,
		Checksum:     in.Checksum,
		Status:       domain.StatusUploading,
	}

	// Запись и списание квоты фиксируются вместе
	err = s.quotaService.WithReservation(ctx, ident.AccountID, in.FileSizeBytes, func(tx *sqlx.Tx) error {
		return s.assetRepo.Create(ctx, tx, asset)
	})
	if err != nil {
		return nil, nil, err
	}

	target, err := s.uploadSvc.IssueUploadTarget(ctx, ident.AccountID, asset)
	if err != nil {
		return nil, nil, err
	}

	return asset, target, nil
}

// Get возвращает запись о файле в пределах аккаунта вызывающего
func (s *AssetService) Get(ctx context.Context, ident *auth.Identity, assetID uuid.UUID) (*domain.Asset, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// List возвращает неудаленные файлы проекта или папки
func (s *AssetService) List(ctx context.Context, ident *auth.Identity, projectID uuid.UUID, folderID *uuid.UUID) ([]domain.Asset, error) {
	project, err := s.projectRepo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.AccountID != ident.AccountID {
		return nil, domain.NewNotFound("project_id", "project not found")
	}
	if folderID != nil {
		if _, err := resolveFolder(ctx, s.projectRepo, project.ID, *folderID); err != nil {
			return nil, err
		}
	}
	return s.assetRepo.ListByProject(ctx, project.ID, folderID)
}

// Update меняет имя, папку и статус записи. Переход статуса проверяется
// по таблице переходов; любое изменение проставляет updated_at.
func (s *AssetService) Update(ctx context.Context, ident *auth.Identity, assetID uuid.UUID, upd domain.AssetUpdate) (*domain.Asset, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}

	if upd.Name != nil {
		if *upd.Name == "" {
			return nil, domain.NewValidation("name", "name cannot be empty")
		}
		asset.Name = *upd.Name
	}

	if upd.FolderID != nil {
		if _, err := resolveFolder(ctx, s.projectRepo, asset.ProjectID, *upd.FolderID); err != nil {
			return nil, err
		}
		asset.FolderID = upd.FolderID
	}

	if upd.Status != nil {
		next := *upd.Status
		if !next.Valid() {
			return nil, domain.NewValidation("status", fmt.Sprintf("unknown status %q", next))
		}
		if !asset.Status.CanTransitionTo(next) {
			return nil, domain.NewValidation("status",
				fmt.Sprintf("invalid status transition from %s to %s", asset.Status, next))
		}
		asset.Status = next
	}

	if err := s.assetRepo.Update(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// Copy создает независимую копию файла. Квота списывается с аккаунта
// вызывающего атомарно со вставкой записи; байты в хранилище копируются
// строго после коммита и только по возможности - неудача копирования
// логируется, запись и списание остаются в силе. Пользовательская
// миниатюра на копию не переносится.
func (s *AssetService) Copy(ctx context.Context, ident *auth.Identity, sourceID uuid.UUID, in CopyAssetInput) (*domain.Asset, error) {
	source, sourceProject, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, sourceID)
	if err != nil {
		return nil, err
	}
	if source.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}

	destProject := sourceProject
	if in.DestProjectID != nil && *in.DestProjectID != sourceProject.ID {
		destProject, err = s.projectRepo.GetProject(ctx, *in.DestProjectID)
		if err != nil {
			return nil, err
		}
		if destProject.AccountID != ident.AccountID {
			return nil, domain.NewNotFound("dest_project_id", "project not found")
		}
	}
	if in.DestFolderID != nil {
		if _, err := resolveFolder(ctx, s.projectRepo, destProject.ID, *in.DestFolderID); err != nil {
			return nil, err
		}
	}

	name := source.Name
	if in.Name != nil && *in.Name != "" {
		name = *in.Name
	}

	copyAsset := &domain.Asset{
		UUID:           uuid.New(),
		ProjectID:      destProject.ID,
		FolderID:       in.DestFolderID,
		VersionStackID: nil,
		Name:           name,
		OriginalName:   source.OriginalName,
		MIMEType:       source.MIMEType,
		SizeBytes:      source.SizeBytes,
		Checksum:       source.Checksum,
		Status:         domain.StatusUploading,
		Metadata:       source.Metadata,
	}

	err = s.quotaService.WithReservation(ctx, ident.AccountID, source.SizeBytes, func(tx *sqlx.Tx) error {
		return s.assetRepo.Create(ctx, tx, copyAsset)
	})
	if err != nil {
		return nil, err
	}

	// Копирование байтов после коммита, по возможности: учет квоты не
	// должен зависеть от медленного и менее надежного копирования
	sourceKey := domain.OriginalKey(sourceProject.AccountID, source.ProjectID, source.UUID)
	destKey := domain.OriginalKey(ident.AccountID, copyAsset.ProjectID, copyAsset.UUID)
	if err := s.storage.CopyObject(ctx, sourceKey, destKey); err != nil {
		s.log.Warn("failed to copy object in storage",
			zap.String("source_key", sourceKey),
			zap.String("dest_key", destKey),
			zap.Error(err))
		return copyAsset, nil
	}

	if err := s.assetRepo.UpdateStatus(ctx, copyAsset.UUID, domain.StatusProcessing); err != nil {
		s.log.Warn("failed to advance copied asset to processing",
			zap.String("asset_id", copyAsset.UUID.String()),
			zap.Error(err))
		return copyAsset, nil
	}
	copyAsset.Status = domain.StatusProcessing

	s.queue.EnqueueProcessing(jobs.ProcessingJob{
		AssetID:      copyAsset.UUID,
		AccountID:    ident.AccountID,
		ProjectID:    copyAsset.ProjectID,
		StorageKey:   destKey,
		MIMEType:     copyAsset.MIMEType,
		OriginalName: copyAsset.OriginalName,
	})

	return copyAsset, nil
}

// DownloadURL выдает предподписанный URL для скачивания оригинала.
// Скачивать можно только файл, прошедший обработку.
func (s *AssetService) DownloadURL(ctx context.Context, ident *auth.Identity, assetID uuid.UUID) (*s3.PresignedURL, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}
	if asset.Status != domain.StatusReady {
		return nil, domain.NewValidation("status",
			fmt.Sprintf("asset is not ready for download (status %s)", asset.Status))
	}

	key := domain.OriginalKey(ident.AccountID, asset.ProjectID, asset.UUID)
	url, err := s.storage.GetDownloadURL(ctx, key, downloadURLTTL)
	if err != nil {
		return nil, domain.NewUpstream("failed to presign download URL", err)
	}
	return url, nil
}

// Move перемещает файл в другую папку того же проекта; nil означает
// корень проекта
func (s *AssetService) Move(ctx context.Context, ident *auth.Identity, assetID uuid.UUID, destFolderID *uuid.UUID) (*domain.Asset, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if asset.IsDeleted() {
		return nil, domain.NewNotFound("asset_id", "asset not found")
	}

	if destFolderID != nil {
		if _, err := resolveFolder(ctx, s.projectRepo, asset.ProjectID, *destFolderID); err != nil {
			return nil, err
		}
	}

	asset.FolderID = destFolderID
	if err := s.assetRepo.Update(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// Delete мягко удаляет файл. Квота не возвращается: удаленный файл
// продолжает занимать оплачиваемое место, пока его можно восстановить.
// Исключение - файл, который так и не был дозагружен: его байты никогда
// не появятся, возврат происходит в той же транзакции.
func (s *AssetService) Delete(ctx context.Context, ident *auth.Identity, assetID uuid.UUID) error {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return err
	}
	if asset.IsDeleted() {
		return domain.NewNotFound("asset_id", "asset not found")
	}

	deletedAt := s.now()
	return s.txManager.WithinTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.assetRepo.SetDeletedAt(ctx, tx, asset.UUID, deletedAt); err != nil {
			return err
		}
		if asset.Status == domain.StatusUploading {
			return s.quotaService.Release(ctx, tx, ident.AccountID, asset.SizeBytes)
		}
		return nil
	})
}

// Restore снимает отметку удаления, если 30-дневное окно восстановления
// еще не истекло. Файл возвращается в тот статус, в котором был удален;
// для недозагруженного файла квота резервируется заново.
func (s *AssetService) Restore(ctx context.Context, ident *auth.Identity, assetID uuid.UUID) (*domain.Asset, error) {
	asset, _, err := resolveAsset(ctx, s.assetRepo, s.projectRepo, ident.AccountID, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.IsDeleted() {
		return nil, domain.NewValidation("deleted_at", "asset is not deleted")
	}
	if !asset.RestorableAt(s.now()) {
		return nil, domain.NewValidation("deleted_at", "recovery window has expired")
	}

	clear := func(tx *sqlx.Tx) error {
		return s.assetRepo.ClearDeletedAt(ctx, tx, asset.UUID)
	}

	if asset.Status == domain.StatusUploading {
		err = s.quotaService.WithReservation(ctx, ident.AccountID, asset.SizeBytes, clear)
	} else {
		err = s.txManager.WithinTransaction(ctx, clear)
	}
	if err != nil {
		return nil, err
	}

	asset.DeletedAt = nil
	return asset, nil
}
