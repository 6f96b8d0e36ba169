package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/zeroclaw-labs/platform/internal/apperr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes a JSON error response with an explicit error kind string.
func RespondError(w http.ResponseWriter, status int, errKind string, message string) {
	Respond(w, status, ErrorResponse{Error: errKind, Message: message})
}

// statusForKind maps an apperr.Kind to its HTTP status, per the closed error
// vocabulary every handler in this repository is expected to produce.
func statusForKind(k apperr.Kind) int {
	switch k {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// RespondAppError writes the HTTP response for err, translating a typed
// apperr.Error into its mapped status and logging anything unexpected.
// Handlers call this as the single error-return path so translation stays
// consistent across every domain package.
func RespondAppError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if ae, ok := apperr.As(err); ok {
		if ae.Kind == apperr.KindInternal {
			logger.Error("internal error", "error", err)
			RespondError(w, http.StatusInternalServerError, string(ae.Kind), "internal error")
			return
		}
		RespondError(w, statusForKind(ae.Kind), string(ae.Kind), ae.Message)
		return
	}

	logger.Error("unclassified error", "error", err)
	RespondError(w, http.StatusInternalServerError, "internal", "internal error")
}
