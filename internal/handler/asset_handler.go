package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mediavault/internal/auth"
	"mediavault/internal/domain"
	"mediavault/internal/service"
)

type AssetHandler struct {
	assetService *service.AssetService
	log          *zap.Logger
}

func NewAssetHandler(assetService *service.AssetService, log *zap.Logger) *AssetHandler {
	return &AssetHandler{
		assetService: assetService,
		log:          log,
	}
}

// CreateAssetResponse - созданная запись вместе с целью загрузки
type CreateAssetResponse struct {
	Asset  *domain.Asset        `json:"asset"`
	Upload *domain.UploadTarget `json:"upload"`
}

func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var in service.CreateAssetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, h.log, domain.NewValidation("body", "invalid request body"))
		return
	}

	asset, target, err := h.assetService.Create(r.Context(), ident, in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateAssetResponse{Asset: asset, Upload: target})
}

func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	assetID, err := uuid.Parse(chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, domain.NewValidation("asset_id", "invalid asset id"))
		return
	}

	asset, err := h.assetService.Get(r.Context(), ident, assetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	projectID, err := uuid.Parse(r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, h.log, domain.NewValidation("project_id", "invalid project id"))
		return
	}

	var folderID *uuid.UUID
	if v := r.URL.Query().Get("folder_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, h.log, domain.NewValidation("folder_id", "invalid folder id"))
			return
		}
		folderID = &id
	}

	assets, err := h.assetService.List(r.Context(), ident, projectID, folderID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"assets": assets})
}

func (h *AssetHandler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	assetID, err := uuid.Parse(chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, domain.NewValidation("asset_id", "invalid asset id"))
		return
	}

	var upd domain.AssetUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, h.log, domain.NewValidation("body", "invalid request body"))
		return
	}

	asset, err := h.assetService.Update(r.Context(), ident, assetID, upd)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (h *AssetHandler) CopyAsset(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	assetID, err := uuid.Parse(chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, domain.NewValidation("asset_id", "invalid asset id"))
		return
	}

	var in service.CopyAssetInput
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, h.log, domain.NewValidation("body", "invalid request body"))
			return
		}
	}

	asset, err := h.assetService.Copy(r.Context(), ident, assetID, in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, asset)
}

func (h *AssetHandler) MoveAsset(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	assetID, err := uuid.Parse(chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, domain.NewValidation("asset_id", "invalid asset id"))
		return
	}

	var req struct {
		FolderID *uuid.UUID `json:"folder_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, domain.NewValidation("body", "invalid request body"))
		return
	}

	asset, err := h.assetService.Move(r.Context(), ident, assetID, req.FolderID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (h *AssetHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	assetID, err := uuid.Parse(chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, domain.NewValidation("asset_id", "invalid asset id"))
		return
	}

	if err := h.assetService.Delete(r.Context(), ident, assetID); err != nil {
		writeError(w, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AssetHandler) RestoreAsset(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	assetID, err := uuid.Parse(chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, domain.NewValidation("asset_id", "invalid asset id"))
		return
	}

	asset, err := h.assetService.Restore(r.Context(), ident, assetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (h *AssetHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	assetID, err := uuid.Parse(chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, domain.NewValidation("asset_id", "invalid asset id"))
		return
	}

	url, err := h.assetService.DownloadURL(r.Context(), ident, assetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"download_url": url.URL,
		"expires_at":   url.ExpiresAt,
	})
}
