package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"mediavault/internal/domain"
)

type errorBody struct {
	Kind           domain.ErrorKind `json:"kind"`
	Message        string           `json:"message"`
	Pointer        string           `json:"pointer,omitempty"`
	AvailableBytes *int64           `json:"available_bytes,omitempty"`
	RequestedBytes *int64           `json:"requested_bytes,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeError переводит доменную ошибку в HTTP-ответ с единым конвертом.
// Неопознанная ошибка не раскрывается клиенту.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	domErr, ok := domain.AsError(err)
	if !ok {
		log.Error("unhandled error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Kind:    "internal",
			Message: "internal server error",
		}})
		return
	}

	body := errorBody{
		Kind:    domErr.Kind,
		Message: domErr.Message,
		Pointer: domErr.Pointer,
	}

	var status int
	switch domErr.Kind {
	case domain.ErrKindNotFound:
		status = http.StatusNotFound
	case domain.ErrKindValidation:
		status = http.StatusBadRequest
	case domain.ErrKindQuotaExceeded:
		status = http.StatusBadRequest
		body.AvailableBytes = &domErr.AvailableBytes
		body.RequestedBytes = &domErr.RequestedBytes
	case domain.ErrKindConflict:
		status = http.StatusConflict
	case domain.ErrKindUpstream:
		status = http.StatusBadGateway
	default:
		log.Error("domain error with unknown kind", zap.Error(err))
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, errorEnvelope{Error: body})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorEnvelope{Error: errorBody{
		Kind:    "unauthorized",
		Message: "invalid or missing token",
	}})
}
