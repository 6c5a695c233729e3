package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"mediavault/internal/domain"
)

// AssetRepository хранит записи о файлах
type AssetRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, asset *domain.Asset) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, folderID *uuid.UUID) ([]domain.Asset, error)
	Update(ctx context.Context, asset *domain.Asset) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AssetStatus) error
	SetDeletedAt(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, deletedAt time.Time) error
	ClearDeletedAt(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
}

type PostgresAssetRepository struct {
	db *sqlx.DB
}

func NewPostgresAssetRepository(db *sqlx.DB) *PostgresAssetRepository {
	return &PostgresAssetRepository{db: db}
}

func (r *PostgresAssetRepository) q(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *PostgresAssetRepository) Create(ctx context.Context, tx *sqlx.Tx, asset *domain.Asset) error {
	query := `
        INSERT INTO assets (uuid, project_id, folder_id, version_stack_id, name,
                            original_name, mime_type, size_bytes, checksum, status, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING created_at, updated_at`

	err := r.q(tx).QueryRowxContext(
		ctx,
		query,
		asset.UUID,
		asset.ProjectID,
		asset.FolderID,
		asset.VersionStackID,
		asset.Name,
		asset.OriginalName,
		asset.MIMEType,
		asset.SizeBytes,
		asset.Checksum,
		asset.Status,
		asset.Metadata,
	).Scan(&asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

func (r *PostgresAssetRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	var asset domain.Asset
	err := r.db.GetContext(ctx, &asset, `SELECT * FROM assets WHERE uuid = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("asset_id", "asset not found")
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &asset, nil
}

// ListByProject возвращает неудаленные файлы проекта; folderID = nil
// означает корень проекта
func (r *PostgresAssetRepository) ListByProject(ctx context.Context, projectID uuid.UUID, folderID *uuid.UUID) ([]domain.Asset, error) {
	var assets []domain.Asset
	var err error

	if folderID != nil {
		err = r.db.SelectContext(ctx, &assets,
			`SELECT * FROM assets
             WHERE project_id = $1 AND folder_id = $2 AND deleted_at IS NULL
             ORDER BY created_at DESC`,
			projectID, *folderID)
	} else {
		err = r.db.SelectContext(ctx, &assets,
			`SELECT * FROM assets
             WHERE project_id = $1 AND folder_id IS NULL AND deleted_at IS NULL
             ORDER BY created_at DESC`,
			projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

// Update сохраняет изменяемые поля записи и проставляет updated_at
func (r *PostgresAssetRepository) Update(ctx context.Context, asset *domain.Asset) error {
	query := `
        UPDATE assets
        SET name = $1,
            folder_id = $2,
            status = $3,
            custom_thumbnail_key = $4,
            metadata = $5,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $6
        RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		asset.Name,
		asset.FolderID,
		asset.Status,
		asset.CustomThumbnailKey,
		asset.Metadata,
		asset.UUID,
	).Scan(&asset.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound("asset_id", "asset not found")
		}
		return fmt.Errorf("failed to update asset: %w", err)
	}
	return nil
}

func (r *PostgresAssetRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AssetStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE assets SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE uuid = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("failed to update asset status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.NewNotFound("asset_id", "asset not found")
	}
	return nil
}

func (r *PostgresAssetRepository) SetDeletedAt(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, deletedAt time.Time) error {
	result, err := r.q(tx).ExecContext(ctx,
		`UPDATE assets SET deleted_at = $1, updated_at = CURRENT_TIMESTAMP WHERE uuid = $2 AND deleted_at IS NULL`,
		deletedAt, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete asset: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.NewNotFound("asset_id", "asset not found or already deleted")
	}
	return nil
}

func (r *PostgresAssetRepository) ClearDeletedAt(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	result, err := r.q(tx).ExecContext(ctx,
		`UPDATE assets SET deleted_at = NULL, updated_at = CURRENT_TIMESTAMP WHERE uuid = $1 AND deleted_at IS NOT NULL`,
		id)
	if err != nil {
		return fmt.Errorf("failed to restore asset: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.NewNotFound("asset_id", "asset not found or not deleted")
	}
	return nil
}
