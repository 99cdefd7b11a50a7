// Package http exposes the retrieval engine over REST.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
	"github.com/mkorolev/helpcenter-rag/internal/core/ports"
	"github.com/mkorolev/helpcenter-rag/internal/observability/metrics"
)

// DefaultCollectionKey is used when a search request omits collection_key.
const DefaultCollectionKey = "help_center"

type Handler struct {
	search      ports.SearchService
	ingest      ports.ArticleIngestor
	collections ports.CollectionAdmin
	logger      *slog.Logger
}

func NewHandler(
	search ports.SearchService,
	ingest ports.ArticleIngestor,
	collections ports.CollectionAdmin,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		search:      search,
		ingest:      ingest,
		collections: collections,
		logger:      logger,
	}
}

func (h *Handler) Router(m *metrics.ServerMetrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /v1/search", h.handleSearch)
	mux.HandleFunc("POST /v1/articles", h.handleSubmitArticle)
	mux.HandleFunc("DELETE /v1/articles/{id}", h.handleRemoveArticle)
	mux.HandleFunc("GET /v1/collections", h.handleListCollections)
	mux.HandleFunc("POST /v1/collections", h.handleCreateCollection)
	mux.HandleFunc("PATCH /v1/collections/{key}", h.handleSetCollectionActive)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	var handler http.Handler = mux
	if m != nil {
		handler = m.Middleware(handler)
	}
	return withRecovery(h.logger, withRequestLogging(h.logger, handler))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.CollectionKey) == "" {
		req.CollectionKey = DefaultCollectionKey
	}

	result, err := h.search.Search(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSubmitArticle(w http.ResponseWriter, r *http.Request) {
	var article domain.Article
	if err := json.NewDecoder(r.Body).Decode(&article); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(article.CollectionKey) == "" {
		article.CollectionKey = DefaultCollectionKey
	}

	saved, err := h.ingest.SubmitArticle(r.Context(), &article)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, saved)
}

func (h *Handler) handleRemoveArticle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "article id is required")
		return
	}
	if err := h.ingest.RemoveArticle(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.collections.ListCollections(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if collections == nil {
		collections = []domain.Collection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
}

func (h *Handler) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var col domain.Collection
	if err := json.NewDecoder(r.Body).Decode(&col); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	col.Active = true

	if err := h.collections.CreateCollection(r.Context(), &col); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, col)
}

func (h *Handler) handleSetCollectionActive(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "collection key is required")
		return
	}

	var body struct {
		Active *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Active == nil {
		writeError(w, http.StatusBadRequest, "is_active is required")
		return
	}

	if err := h.collections.SetCollectionActive(r.Context(), key, *body.Active); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
