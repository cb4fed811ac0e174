package http

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	apperrors "tourbook/pkg/errors"
)

type SuccessResponse struct {
	Data any `json:"data,omitempty"`
}

type ErrorEnvelope struct {
	Error apperrors.ErrorResponse `json:"error"`
}

type PaginatedResponse struct {
	Data       any   `json:"data"`
	TotalCount int64 `json:"total_count"`
	Limit      int   `json:"limit"`
	Offset     int64 `json:"offset"`
}

var exposeErrorCause atomic.Bool

// ExposeErrorCause controls whether error bodies carry the underlying cause.
// Set once at startup; only development deployments enable it.
func ExposeErrorCause(enabled bool) {
	exposeErrorCause.Store(enabled)
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError renders err as an error envelope. Errors that are not an
// AppError become a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	appErr := apperrors.AsAppError(err)

	status := appErr.StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if appErr.Retryable {
		w.Header().Set("Retry-After", "1")
	}

	WriteJSON(w, status, ErrorEnvelope{Error: appErr.Response(exposeErrorCause.Load())})
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func WritePaginated(w http.ResponseWriter, data any, totalCount int64, limit int, offset int64) {
	WriteJSON(w, http.StatusOK, PaginatedResponse{
		Data:       data,
		TotalCount: totalCount,
		Limit:      limit,
		Offset:     offset,
	})
}
