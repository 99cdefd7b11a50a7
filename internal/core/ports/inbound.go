package ports

import (
	"context"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

// SearchService is the inbound contract for hybrid retrieval.
type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error)
}

// ArticleIngestor is the inbound contract for accepting article writes on the
// API side. Indexing itself happens asynchronously in the worker.
type ArticleIngestor interface {
	SubmitArticle(ctx context.Context, article *domain.Article) (*domain.Article, error)
	RemoveArticle(ctx context.Context, articleID string) error
}

// ArticleIndexer is the inbound contract for the worker: it owns all index
// writes for one article event.
type ArticleIndexer interface {
	IndexArticle(ctx context.Context, articleID string) error
	DeindexArticle(ctx context.Context, articleID string) error
}

// CollectionResolver looks up a collection by key for every query.
type CollectionResolver interface {
	Resolve(ctx context.Context, key string) (domain.Collection, error)
}

// CollectionAdmin is the administrative surface for collection bootstrap.
type CollectionAdmin interface {
	CreateCollection(ctx context.Context, col *domain.Collection) error
	ListCollections(ctx context.Context) ([]domain.Collection, error)
	SetCollectionActive(ctx context.Context, key string, active bool) error
}
