package service

import (
	"context"

	"github.com/google/uuid"

	"mediavault/internal/domain"
	"mediavault/internal/repository"
)

// resolveAsset читает файл и его проект и проверяет, что файл виден
// аккаунту вызывающего. Файл чужого аккаунта неотличим от
// несуществующего.
func resolveAsset(
	ctx context.Context,
	assetRepo repository.AssetRepository,
	projectRepo repository.ProjectRepository,
	accountID uuid.UUID,
	assetID uuid.UUID,
) (*domain.Asset, *domain.Project, error) {
	asset, err := assetRepo.GetByUUID(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}

	project, err := projectRepo.GetProject(ctx, asset.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if project.AccountID != accountID {
		return nil, nil, domain.NewNotFound("asset_id", "asset not found")
	}

	return asset, project, nil
}

// resolveFolder проверяет, что папка существует и принадлежит проекту
func resolveFolder(
	ctx context.Context,
	projectRepo repository.ProjectRepository,
	projectID uuid.UUID,
	folderID uuid.UUID,
) (*domain.Folder, error) {
	folder, err := projectRepo.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.ProjectID != projectID {
		return nil, domain.NewValidation("folder_id", "folder does not belong to the project")
	}
	return folder, nil
}
