package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mediavault/internal/auth"
	"mediavault/internal/domain"
	"mediavault/internal/service"
)

type UploadHandler struct {
	uploadService *service.UploadService
	log           *zap.Logger
}

func NewUploadHandler(uploadService *service.UploadService, log *zap.Logger) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		log:           log,
	}
}

func (h *UploadHandler) ReissueUploadURL(w http.ResponseWriter, r *http.Request) {
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

	target, err := h.uploadService.ReissueUploadTarget(r.Context(), ident, assetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, target)
}

func (h *UploadHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
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

	asset, err := h.uploadService.Confirm(r.Context(), ident, assetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (h *UploadHandler) InitChunkedUpload(w http.ResponseWriter, r *http.Request) {
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

	session, err := h.uploadService.InitChunked(r.Context(), ident, assetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (h *UploadHandler) GetPartURLs(w http.ResponseWriter, r *http.Request) {
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
	uploadID := chi.URLParam(r, "uploadID")

	chunkCount, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil {
		writeError(w, h.log, domain.NewValidation("count", "invalid chunk count"))
		return
	}

	urls, err := h.uploadService.PartURLs(r.Context(), ident, assetID, uploadID, chunkCount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"parts": urls})
}

func (h *UploadHandler) CompleteChunkedUpload(w http.ResponseWriter, r *http.Request) {
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
	uploadID := chi.URLParam(r, "uploadID")

	var req struct {
		Parts []domain.CompletedPart `json:"parts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, domain.NewValidation("body", "invalid request body"))
		return
	}

	asset, err := h.uploadService.Complete(r.Context(), ident, assetID, uploadID, req.Parts)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (h *UploadHandler) AbortChunkedUpload(w http.ResponseWriter, r *http.Request) {
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
	uploadID := chi.URLParam(r, "uploadID")

	if err := h.uploadService.Abort(r.Context(), ident, assetID, uploadID); err != nil {
		writeError(w, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
