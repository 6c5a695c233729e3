package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mediavault/internal/auth"
	"mediavault/internal/domain"
	"mediavault/internal/jobs"
	"mediavault/internal/service/s3"
)

func setupUploadService() (*UploadService, *mockAssetRepo, *mockProjectRepo, *mockStorage, *mockQueue) {
	assetRepo := new(mockAssetRepo)
	projectRepo := new(mockProjectRepo)
	storage := new(mockStorage)
	queue := new(mockQueue)
	svc := NewUploadService(assetRepo, projectRepo, storage, queue, testLogger())
	return svc, assetRepo, projectRepo, storage, queue
}

func uploadTestFixture(status domain.AssetStatus, sizeBytes int64) (*auth.Identity, *domain.Asset, *domain.Project) {
	accountID := uuid.New()
	project := &domain.Project{ID: uuid.New(), AccountID: accountID}
	asset := &domain.Asset{
		UUID:         uuid.New(),
		ProjectID:    project.ID,
		Name:         "render.mp4",
		OriginalName: "render.mp4",
		MIMEType:     "video/mp4",
		SizeBytes:    sizeBytes,
		Status:       status,
	}
	return &auth.Identity{UserID: uuid.New(), AccountID: accountID}, asset, project
}

func TestMaxChunkCountForSize(t *testing.T) {
	tests := []struct {
		name      string
		sizeBytes int64
		want      int
	}{
		{"Маленький файл без ограничения", 1024, 0},
		{"Ровно минимальный размер части", 5 << 20, 0},
		{"Файл 100MB", 100 << 20, 40},
		{"Огромный файл упирается в потолок", 1 << 40, domain.MaxChunkCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maxChunkCountForSize(tt.sizeBytes))
		})
	}
}

func TestPartURLsChunkGuard(t *testing.T) {
	tests := []struct {
		name       string
		sizeBytes  int64
		chunkCount int
		wantErr    bool
	}{
		{"Разумное количество частей", 100 << 20, 20, false},
		{"Максимум для 100MB", 100 << 20, 40, false},
		{"Слишком много частей для 100MB", 100 << 20, 41, true},
		{"Ноль частей", 100 << 20, 0, true},
		{"Отрицательное количество", 100 << 20, -5, true},
		{"Выше абсолютного потолка", 1 << 40, domain.MaxChunkCount + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, assetRepo, projectRepo, storage, _ := setupUploadService()
			ident, asset, project := uploadTestFixture(domain.StatusUploading, tt.sizeBytes)

			assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
			projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)

			if !tt.wantErr {
				urls := make([]domain.PartURL, tt.chunkCount)
				storage.On("GetChunkURLs", mock.Anything, mock.Anything, "upl-1", tt.chunkCount).
					Return(urls, nil)
			}

			got, err := svc.PartURLs(context.Background(), ident, asset.UUID, "upl-1", tt.chunkCount)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.ErrKindValidation, domain.KindOf(err))
				storage.AssertNotCalled(t, "GetChunkURLs")
			} else {
				require.NoError(t, err)
				assert.Len(t, got, tt.chunkCount)
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	t.Run("Успешное подтверждение ставит задание конвейеру", func(t *testing.T) {
		svc, assetRepo, projectRepo, storage, queue := setupUploadService()
		ident, asset, project := uploadTestFixture(domain.StatusUploading, 1024)

		key := domain.OriginalKey(ident.AccountID, project.ID, asset.UUID)

		assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
		projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)
		storage.On("HeadObject", mock.Anything, key).
			Return(&s3.ObjectMetadata{ContentLength: 1024}, nil)
		assetRepo.On("UpdateStatus", mock.Anything, asset.UUID, domain.StatusProcessing).Return(nil)
		queue.On("EnqueueProcessing", mock.MatchedBy(func(job jobs.ProcessingJob) bool {
			return job.AssetID == asset.UUID && job.StorageKey == key
		})).Return()

		got, err := svc.Confirm(context.Background(), ident, asset.UUID)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessing, got.Status)
		queue.AssertExpectations(t)
	})

	t.Run("Объект еще не загружен", func(t *testing.T) {
		svc, assetRepo, projectRepo, storage, queue := setupUploadService()
		ident, asset, project := uploadTestFixture(domain.StatusUploading, 1024)

		assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
		projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)
		storage.On("HeadObject", mock.Anything, mock.Anything).Return(nil, nil)

		_, err := svc.Confirm(context.Background(), ident, asset.UUID)

		require.Error(t, err)
		assert.Equal(t, domain.ErrKindValidation, domain.KindOf(err))
		assetRepo.AssertNotCalled(t, "UpdateStatus")
		queue.AssertNotCalled(t, "EnqueueProcessing")
	})

	t.Run("Повторное подтверждение отклоняется", func(t *testing.T) {
		svc, assetRepo, projectRepo, storage, _ := setupUploadService()
		ident, asset, project := uploadTestFixture(domain.StatusProcessing, 1024)

		assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
		projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)

		_, err := svc.Confirm(context.Background(), ident, asset.UUID)

		require.Error(t, err)
		assert.Equal(t, domain.ErrKindValidation, domain.KindOf(err))
		storage.AssertNotCalled(t, "HeadObject")
	})

	t.Run("Чужой файл неотличим от несуществующего", func(t *testing.T) {
		svc, assetRepo, projectRepo, _, _ := setupUploadService()
		_, asset, project := uploadTestFixture(domain.StatusUploading, 1024)
		stranger := &auth.Identity{UserID: uuid.New(), AccountID: uuid.New()}

		assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
		projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)

		_, err := svc.Confirm(context.Background(), stranger, asset.UUID)

		require.Error(t, err)
		assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))
	})
}

func TestComplete(t *testing.T) {
	validParts := []domain.CompletedPart{
		{PartNumber: 1, ETag: "etag-1"},
		{PartNumber: 2, ETag: "etag-2"},
	}

	t.Run("Успешное завершение", func(t *testing.T) {
		svc, assetRepo, projectRepo, storage, queue := setupUploadService()
		ident, asset, project := uploadTestFixture(domain.StatusUploading, 10<<20)

		assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
		projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)
		storage.On("CompleteChunkedUpload", mock.Anything, mock.Anything, "upl-1", validParts).Return(nil)
		assetRepo.On("UpdateStatus", mock.Anything, asset.UUID, domain.StatusProcessing).Return(nil)
		queue.On("EnqueueProcessing", mock.Anything).Return()

		got, err := svc.Complete(context.Background(), ident, asset.UUID, "upl-1", validParts)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessing, got.Status)
	})

	t.Run("Пустой список частей", func(t *testing.T) {
		svc, assetRepo, projectRepo, storage, _ := setupUploadService()
		ident, asset, project := uploadTestFixture(domain.StatusUploading, 10<<20)

		assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
		projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)

		_, err := svc.Complete(context.Background(), ident, asset.UUID, "upl-1", nil)

		require.Error(t, err)
		assert.Equal(t, domain.ErrKindValidation, domain.KindOf(err))
		storage.AssertNotCalled(t, "CompleteChunkedUpload")
	})

	t.Run("Удаленная запись не может завершить загрузку", func(t *testing.T) {
		svc, assetRepo, projectRepo, storage, queue := setupUploadService()
		ident, asset, project := uploadTestFixture(domain.StatusUploading, 10<<20)
		deleted := time.Now().Add(-time.Minute)
		asset.DeletedAt = &deleted

		assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
		projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)

		_, err := svc.Complete(context.Background(), ident, asset.UUID, "upl-1", validParts)

		// Резерв квоты удаленной записи уже возвращен: переход в
		// processing сделал бы байты бесплатными навсегда
		require.Error(t, err)
		assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))
		assert.Equal(t, domain.StatusUploading, asset.Status)
		storage.AssertNotCalled(t, "CompleteChunkedUpload")
		assetRepo.AssertNotCalled(t, "UpdateStatus")
		queue.AssertNotCalled(t, "EnqueueProcessing")
	})

	t.Run("Часть с пустым etag", func(t *testing.T) {
		svc, assetRepo, projectRepo, storage, _ := setupUploadService()
		ident, asset, project := uploadTestFixture(domain.StatusUploading, 10<<20)

		assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
		projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)

		parts := []domain.CompletedPart{{PartNumber: 1, ETag: ""}}
		_, err := svc.Complete(context.Background(), ident, asset.UUID, "upl-1", parts)

		require.Error(t, err)
		assert.Equal(t, domain.ErrKindValidation, domain.KindOf(err))
		storage.AssertNotCalled(t, "CompleteChunkedUpload")
	})
}

func TestPartURLsRejectsDeletedAsset(t *testing.T) {
	svc, assetRepo, projectRepo, storage, _ := setupUploadService()
	ident, asset, project := uploadTestFixture(domain.StatusUploading, 100<<20)
	deleted := time.Now().Add(-time.Minute)
	asset.DeletedAt = &deleted

	assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
	projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)

	_, err := svc.PartURLs(context.Background(), ident, asset.UUID, "upl-1", 20)

	require.Error(t, err)
	assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))
	storage.AssertNotCalled(t, "GetChunkURLs")
}

func TestAbortRejectsDeletedAsset(t *testing.T) {
	svc, assetRepo, projectRepo, storage, _ := setupUploadService()
	ident, asset, project := uploadTestFixture(domain.StatusUploading, 10<<20)
	deleted := time.Now().Add(-time.Minute)
	asset.DeletedAt = &deleted

	assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
	projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)

	err := svc.Abort(context.Background(), ident, asset.UUID, "upl-1")

	require.Error(t, err)
	assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))
	storage.AssertNotCalled(t, "AbortChunkedUpload")
}

func TestAbortLeavesStatusUntouched(t *testing.T) {
	svc, assetRepo, projectRepo, storage, _ := setupUploadService()
	ident, asset, project := uploadTestFixture(domain.StatusUploading, 10<<20)

	assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
	projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)
	storage.On("AbortChunkedUpload", mock.Anything, mock.Anything, "upl-1").Return(nil)

	err := svc.Abort(context.Background(), ident, asset.UUID, "upl-1")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusUploading, asset.Status)
	assetRepo.AssertNotCalled(t, "UpdateStatus")
}

func TestReissueUploadTarget(t *testing.T) {
	t.Run("Повторная выдача цели для ожидающей записи", func(t *testing.T) {
		svc, assetRepo, projectRepo, storage, _ := setupUploadService()
		ident, asset, project := uploadTestFixture(domain.StatusUploading, 1024)

		key := domain.OriginalKey(ident.AccountID, project.ID, asset.UUID)

		assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
		projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)
		storage.On("GetUploadURL", mock.Anything, key).
			Return(&s3.PresignedURL{URL: "https://storage.example/put-2", Key: key, ExpiresAt: time.Now().Add(time.Hour)}, nil)

		target, err := svc.ReissueUploadTarget(context.Background(), ident, asset.UUID)

		require.NoError(t, err)
		assert.Equal(t, "https://storage.example/put-2", target.UploadURL)
		assert.Equal(t, key, target.StorageKey)
	})

	t.Run("Уже подтвержденная запись отклоняется", func(t *testing.T) {
		svc, assetRepo, projectRepo, storage, _ := setupUploadService()
		ident, asset, project := uploadTestFixture(domain.StatusProcessing, 1024)

		assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
		projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)

		_, err := svc.ReissueUploadTarget(context.Background(), ident, asset.UUID)

		require.Error(t, err)
		assert.Equal(t, domain.ErrKindValidation, domain.KindOf(err))
		storage.AssertNotCalled(t, "GetUploadURL")
	})

	t.Run("Удаленная запись отклоняется", func(t *testing.T) {
		svc, assetRepo, projectRepo, storage, _ := setupUploadService()
		ident, asset, project := uploadTestFixture(domain.StatusUploading, 1024)
		deleted := time.Now().Add(-time.Minute)
		asset.DeletedAt = &deleted

		assetRepo.On("GetByUUID", mock.Anything, asset.UUID).Return(asset, nil)
		projectRepo.On("GetProject", mock.Anything, project.ID).Return(project, nil)

		_, err := svc.ReissueUploadTarget(context.Background(), ident, asset.UUID)

		require.Error(t, err)
		assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))
		storage.AssertNotCalled(t, "GetUploadURL")
	})
}

func TestIssueUploadTarget(t *testing.T) {
	svc, _, _, storage, _ := setupUploadService()
	ident, asset, _ := uploadTestFixture(domain.StatusUploading, 1024)

	key := domain.OriginalKey(ident.AccountID, asset.ProjectID, asset.UUID)
	expires := time.Now().Add(time.Hour)
	storage.On("GetUploadURL", mock.Anything, key).
		Return(&s3.PresignedURL{URL: "https://storage.example/put", Key: key, ExpiresAt: expires}, nil)

	target, err := svc.IssueUploadTarget(context.Background(), ident.AccountID, asset)

	require.NoError(t, err)
	assert.Equal(t, "https://storage.example/put", target.UploadURL)
	assert.Equal(t, domain.UploadMethodPut, target.UploadMethod)
	assert.Equal(t, key, target.StorageKey)
	assert.Equal(t, int64(domain.RecommendedChunkSize), target.ChunkSize)
}
