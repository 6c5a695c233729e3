package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mediavault/internal/domain"
	"mediavault/internal/jobs"
	"mediavault/internal/service/s3"
)

// --- Моки репозиториев ---

type mockAssetRepo struct {
	mock.Mock
}

func (m *mockAssetRepo) Create(ctx context.Context, tx *sqlx.Tx, asset *domain.Asset) error {
	args := m.Called(ctx, tx, asset)
	return args.Error(0)
}

func (m *mockAssetRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

func (m *mockAssetRepo) ListByProject(ctx context.Context, projectID uuid.UUID, folderID *uuid.UUID) ([]domain.Asset, error) {
	args := m.Called(ctx, projectID, folderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Asset), args.Error(1)
}

func (m *mockAssetRepo) Update(ctx context.Context, asset *domain.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

func (m *mockAssetRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AssetStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockAssetRepo) SetDeletedAt(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, deletedAt time.Time) error {
	args := m.Called(ctx, tx, id, deletedAt)
	return args.Error(0)
}

func (m *mockAssetRepo) ClearDeletedAt(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

type mockProjectRepo struct {
	mock.Mock
}

func (m *mockProjectRepo) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *mockProjectRepo) GetFolder(ctx context.Context, id uuid.UUID) (*domain.Folder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Folder), args.Error(1)
}

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepo) ReserveStorage(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amountBytes int64) error {
	args := m.Called(ctx, tx, accountID, amountBytes)
	return args.Error(0)
}

func (m *mockAccountRepo) ReleaseStorage(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amountBytes int64) error {
	args := m.Called(ctx, tx, accountID, amountBytes)
	return args.Error(0)
}

// --- Мок хранилища объектов ---

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GetUploadURL(ctx context.Context, key string) (*s3.PresignedURL, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PresignedURL), args.Error(1)
}

func (m *mockStorage) GetDownloadURL(ctx context.Context, key string, ttl time.Duration) (*s3.PresignedURL, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PresignedURL), args.Error(1)
}

func (m *mockStorage) InitChunkedUpload(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockStorage) GetChunkURLs(ctx context.Context, key, uploadID string, chunkCount int) ([]domain.PartURL, error) {
	args := m.Called(ctx, key, uploadID, chunkCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PartURL), args.Error(1)
}

func (m *mockStorage) CompleteChunkedUpload(ctx context.Context, key, uploadID string, parts []domain.CompletedPart) error {
	args := m.Called(ctx, key, uploadID, parts)
	return args.Error(0)
}

func (m *mockStorage) AbortChunkedUpload(ctx context.Context, key, uploadID string) error {
	args := m.Called(ctx, key, uploadID)
	return args.Error(0)
}

func (m *mockStorage) HeadObject(ctx context.Context, key string) (*s3.ObjectMetadata, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.ObjectMetadata), args.Error(1)
}

func (m *mockStorage) CopyObject(ctx context.Context, sourceKey, destKey string) error {
	args := m.Called(ctx, sourceKey, destKey)
	return args.Error(0)
}

func (m *mockStorage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *mockStorage) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// --- Мок очереди заданий ---

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) EnqueueProcessing(job jobs.ProcessingJob) {
	m.Called(job)
}

func (m *mockQueue) EnqueueFrameCapture(job jobs.FrameCaptureJob) uuid.UUID {
	args := m.Called(job)
	return args.Get(0).(uuid.UUID)
}

// newMockTxDB возвращает sqlx.DB поверх sqlmock для реального TxManager
func newMockTxDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
