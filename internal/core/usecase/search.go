package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
	"github.com/mkorolev/helpcenter-rag/internal/core/ports"
)

const (
	minTopK = 1
	maxTopK = 10
)

type SearchConfig struct {
	DefaultTopK    int
	RRFConstant    int
	CandidateLimit int
	EmbedTimeout   time.Duration
	BranchTimeout  time.Duration
	RerankTimeout  time.Duration
}

func (c SearchConfig) normalize() SearchConfig {
	out := c
	if out.DefaultTopK <= 0 {
		out.DefaultTopK = 6
	}
	if out.RRFConstant <= 0 {
		out.RRFConstant = defaultRRFConstant
	}
	if out.CandidateLimit <= 0 {
		out.CandidateLimit = 30
	}
	if out.EmbedTimeout <= 0 {
		out.EmbedTimeout = 5 * time.Second
	}
	if out.BranchTimeout <= 0 {
		out.BranchTimeout = 5 * time.Second
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = 10 * time.Second
	}
	return out
}

// SearchUseCase is the retrieval orchestrator: resolve collection, embed the
// query, fan out to both indexes, fuse with RRF, optionally rerank, truncate.
// The only hard failure is an unresolvable collection; every other upstream
// fault degrades the answer instead of failing the request.
type SearchUseCase struct {
	collections ports.CollectionResolver
	embedders   ports.EmbedderProvider
	vector      ports.VectorSearcher
	lexical     ports.LexicalSearcher
	reranker    ports.Reranker
	metrics     ports.RetrievalMetrics
	logger      *slog.Logger
	cfg         SearchConfig
}

func NewSearchUseCase(
	collections ports.CollectionResolver,
	embedders ports.EmbedderProvider,
	vector ports.VectorSearcher,
	lexical ports.LexicalSearcher,
	reranker ports.Reranker,
	metrics ports.RetrievalMetrics,
	logger *slog.Logger,
	cfg SearchConfig,
) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		collections: collections,
		embedders:   embedders,
		vector:      vector,
		lexical:     lexical,
		reranker:    reranker,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg.normalize(),
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	started := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return &domain.SearchResult{Hits: []domain.SearchHit{}}, nil
	}
	topK := uc.clampTopK(req.TopK)

	col, err := uc.collections.Resolve(ctx, req.CollectionKey)
	if err != nil {
		return nil, err
	}

	queryVector := uc.embedQuery(ctx, col, query)

	candidateLimit := uc.cfg.CandidateLimit
	var (
		wg          sync.WaitGroup
		vectorHits  []domain.SearchHit
		lexicalHits []domain.SearchHit
	)
	if queryVector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectorHits = uc.searchVector(ctx, col, queryVector, candidateLimit, req.Filter)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		lexicalHits = uc.searchLexical(ctx, col, query, candidateLimit, req.Filter)
	}()
	wg.Wait()

	fused := fuseHits(vectorHits, lexicalHits, uc.cfg.RRFConstant)
	ranked := uc.applyRerank(ctx, col.Key, query, fused, topK)
	hits := trimHits(ranked, topK)

	if uc.metrics != nil {
		reranked := len(hits) > 0 && hits[0].Source == domain.SourceReranked
		uc.metrics.SearchCompleted(col.Key, len(hits), reranked, time.Since(started))
	}
	return &domain.SearchResult{Hits: hits}, nil
}

func (uc *SearchUseCase) clampTopK(topK int) int {
	if topK <= 0 {
		topK = uc.cfg.DefaultTopK
	}
	if topK < minTopK {
		return minTopK
	}
	if topK > maxTopK {
		return maxTopK
	}
	return topK
}

// embedQuery returns nil on any failure; the caller then continues
// lexical-only rather than failing the request.
func (uc *SearchUseCase) embedQuery(ctx context.Context, col domain.Collection, query string) []float32 {
	embedder, err := uc.embedders.ForModel(col.EmbeddingModel)
	if err != nil {
		uc.logger.Warn("embedder_unavailable", "collection", col.Key, "model", col.EmbeddingModel, "error", err)
		uc.branchFailed(col.Key, "embed")
		return nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, uc.cfg.EmbedTimeout)
	defer cancel()
	vector, err := embedder.EmbedQuery(embedCtx, query)
	if err != nil {
		uc.logger.Warn("query_embedding_failed", "collection", col.Key, "model", col.EmbeddingModel, "error", err)
		uc.branchFailed(col.Key, "embed")
		return nil
	}
	return vector
}

func (uc *SearchUseCase) searchVector(ctx context.Context, col domain.Collection, queryVector []float32, limit int, filter domain.SearchFilter) []domain.SearchHit {
	searchCtx, cancel := context.WithTimeout(ctx, uc.cfg.BranchTimeout)
	defer cancel()
	hits, err := uc.vector.Search(searchCtx, col, queryVector, limit, filter)
	if err != nil {
		uc.logger.Warn("vector_search_failed", "collection", col.Key, "error", err)
		uc.branchFailed(col.Key, "vector")
		return nil
	}
	return hits
}

func (uc *SearchUseCase) searchLexical(ctx context.Context, col domain.Collection, query string, limit int, filter domain.SearchFilter) []domain.SearchHit {
	searchCtx, cancel := context.WithTimeout(ctx, uc.cfg.BranchTimeout)
	defer cancel()
	hits, err := uc.lexical.Search(searchCtx, col, query, limit, filter)
	if err != nil {
		uc.logger.Warn("lexical_search_failed", "collection", col.Key, "error", err)
		uc.branchFailed(col.Key, "lexical")
		return nil
	}
	return hits
}

func (uc *SearchUseCase) branchFailed(collection, branch string) {
	if uc.metrics != nil {
		uc.metrics.SearchBranchFailed(collection, branch)
	}
}
