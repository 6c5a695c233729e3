package handler

import (
	"net/http"

	"go.uber.org/zap"

	"mediavault/internal/auth"
	"mediavault/internal/service"
)

type StorageQuotaHandler struct {
	quotaService *service.StorageQuotaService
	log          *zap.Logger
}

func NewStorageQuotaHandler(quotaService *service.StorageQuotaService, log *zap.Logger) *StorageQuotaHandler {
	return &StorageQuotaHandler{
		quotaService: quotaService,
		log:          log,
	}
}

func (h *StorageQuotaHandler) GetQuotaInfo(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	quotaInfo, err := h.quotaService.GetQuotaInfo(r.Context(), ident.AccountID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, quotaInfo)
}
