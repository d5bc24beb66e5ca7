package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"vfm-go/internal/vault"
	"vfm-go/internal/vfm"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// errorStatus maps a vfm error kind to its HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, vfm.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, vfm.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, vfm.ErrInvalidInput), errors.Is(err, vfm.ErrCircularReference), errors.Is(err, vfm.ErrNoOp):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, vfm.ErrNameConflict), errors.Is(err, vfm.ErrDuplicateKey):
		return http.StatusConflict, "conflict"
	case errors.Is(err, vfm.ErrOversizedFile):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, vault.ErrLocked):
		return http.StatusServiceUnavailable, "locked"
	case errors.Is(err, vfm.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError sends err as JSON. Only messages meant for users are passed
// through; anything else is logged and reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{
		Error:   code,
		Message: vfm.Message(err, "An internal error occurred"),
	})
}
