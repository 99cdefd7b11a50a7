package ports

import (
	"context"
	"time"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

// Embedder converts texts into fixed-length vectors. Embed is order-preserving
// and 1:1 with its input; a single failed batch fails the whole call.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// EmbedderProvider dispatches to a registered embedder by model name.
// Unknown model names are a registration-time error, not a query-time one.
type EmbedderProvider interface {
	ForModel(model string) (Embedder, error)
	Models() []string
}

// Chunker splits article markdown into bounded, heading-tagged chunks.
type Chunker interface {
	Chunk(markdown string) []domain.Chunk
}

// VectorSearcher performs dense nearest-neighbour search against the
// collection's chunk table. Score is 1 - cosine distance, higher is better.
type VectorSearcher interface {
	Search(ctx context.Context, col domain.Collection, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.SearchHit, error)
}

// VectorIndexer owns dense index writes. ReplaceArticleChunks has
// delete-then-insert semantics so stale chunks never survive a re-ingest.
type VectorIndexer interface {
	EnsureCollectionSchema(ctx context.Context, col domain.Collection) error
	ReplaceArticleChunks(ctx context.Context, col domain.Collection, article *domain.Article, chunks []domain.Chunk, vectors [][]float32) error
	DeleteArticleChunks(ctx context.Context, col domain.Collection, articleID string) error
}

// LexicalSearcher performs BM25-family full-text search against the
// collection's lexical index.
type LexicalSearcher interface {
	Search(ctx context.Context, col domain.Collection, query string, limit int, filter domain.SearchFilter) ([]domain.SearchHit, error)
}

// LexicalIndexer owns sparse index writes, keyed by article id.
type LexicalIndexer interface {
	UpsertArticle(ctx context.Context, col domain.Collection, article *domain.Article, headings []string) error
	DeleteArticle(ctx context.Context, col domain.Collection, articleID string) error
}

// Reranker re-scores fused candidates with a cross-encoder. Callers must
// check IsAvailable and fall back to the fused order on any error.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.RerankCandidate, topN int) ([]domain.RerankedItem, error)
	IsAvailable() bool
}

// CollectionStore persists collection configuration.
type CollectionStore interface {
	GetByKey(ctx context.Context, key string) (*domain.Collection, error)
	List(ctx context.Context) ([]domain.Collection, error)
	Upsert(ctx context.Context, col *domain.Collection) error
	SetActive(ctx context.Context, key string, active bool) error
}

// ArticleRepository persists article state.
type ArticleRepository interface {
	Upsert(ctx context.Context, article *domain.Article) error
	GetByID(ctx context.Context, id string) (*domain.Article, error)
	Delete(ctx context.Context, id string) error
}

// MessageQueue hands article events from the API to the worker.
type MessageQueue interface {
	PublishArticleEvent(ctx context.Context, event domain.ArticleEvent) error
	SubscribeArticleEvents(ctx context.Context, handler func(context.Context, domain.ArticleEvent) error) error
}

// RetrievalMetrics records per-request retrieval outcomes. Implementations
// must tolerate being embedded behind a nil interface check.
type RetrievalMetrics interface {
	SearchCompleted(collection string, hits int, reranked bool, duration time.Duration)
	SearchBranchFailed(collection, branch string)
}
