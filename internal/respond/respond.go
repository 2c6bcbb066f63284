package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/taskflow/backend/internal/services"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("respond: encode payload failed", "error", err)
	}
}

// Fail writes a business error of the given kind.
func Fail(w http.ResponseWriter, kind, message string) {
	JSON(w, StatusFor(kind), ErrorBody{Error: ErrorDetail{Kind: kind, Message: message}})
}

// Error classifies err and writes it. Internal errors are logged with attrs
// and answered with a generic message.
func Error(w http.ResponseWriter, log *slog.Logger, err error, attrs ...any) {
	kind := services.KindOf(err)
	if kind == services.KindInternal {
		if log == nil {
			log = slog.Default()
		}
		log.Error("request failed", append(attrs, "error", err)...)
		Fail(w, kind, "internal server error")
		return
	}
	Fail(w, kind, err.Error())
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind string) int {
	switch kind {
	case services.KindNotFound, services.KindUserNotFound:
		return http.StatusNotFound
	case services.KindUnauthorized:
		return http.StatusForbidden
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindAlreadyFinalized:
		return http.StatusConflict
	case services.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
