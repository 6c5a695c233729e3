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

type ThumbnailHandler struct {
	thumbnailService *service.ThumbnailService
	log              *zap.Logger
}

func NewThumbnailHandler(thumbnailService *service.ThumbnailService, log *zap.Logger) *ThumbnailHandler {
	return &ThumbnailHandler{
		thumbnailService: thumbnailService,
		log:              log,
	}
}

func (h *ThumbnailHandler) SetCustomThumbnail(w http.ResponseWriter, r *http.Request) {
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
		ImageData string `json:"image_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, domain.NewValidation("body", "invalid request body"))
		return
	}

	asset, err := h.thumbnailService.SetCustomThumbnail(r.Context(), ident, assetID, req.ImageData)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (h *ThumbnailHandler) RequestUploadURL(w http.ResponseWriter, r *http.Request) {
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

	target, err := h.thumbnailService.RequestUploadURL(r.Context(), ident, assetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, target)
}

func (h *ThumbnailHandler) GetThumbnailURL(w http.ResponseWriter, r *http.Request) {
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

	url, err := h.thumbnailService.GetThumbnailURL(r.Context(), ident, assetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"thumbnail_url": url.URL,
		"expires_at":    url.ExpiresAt,
	})
}

func (h *ThumbnailHandler) DeleteCustomThumbnail(w http.ResponseWriter, r *http.Request) {
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

	asset, err := h.thumbnailService.DeleteCustomThumbnail(r.Context(), ident, assetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (h *ThumbnailHandler) CaptureFrame(w http.ResponseWriter, r *http.Request) {
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
		Timestamp float64 `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, domain.NewValidation("body", "invalid request body"))
		return
	}

	jobID, err := h.thumbnailService.CaptureFrame(r.Context(), ident, assetID, req.Timestamp)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": jobID,
		"status": "pending",
	})
}
