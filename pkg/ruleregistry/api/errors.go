package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/zxcvhub/registry/pkg/ruleregistry"
)

// ErrorResponse is the JSON body returned for failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case ruleregistry.IsNotFound(err):
		return http.StatusNotFound
	case ruleregistry.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, ruleregistry.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ruleregistry.ErrInvalidVersion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a domain error as a JSON error response. Internal
// errors are logged with full detail but returned with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusForError(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "op", op, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	} else {
		slog.Info("request rejected", "op", op, "path", r.URL.Path, "status", status, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
