package http

import (
	"encoding/json"
	"net/http"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case domain.IsKind(err, domain.ErrCollectionNotFound):
		status = http.StatusNotFound
		message = "collection not found"
	case domain.IsKind(err, domain.ErrArticleNotFound):
		status = http.StatusNotFound
		message = "article not found"
	case domain.IsKind(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
		message = err.Error()
	case domain.IsKind(err, domain.ErrTemporary):
		status = http.StatusServiceUnavailable
		message = "temporarily unavailable"
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request_failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
