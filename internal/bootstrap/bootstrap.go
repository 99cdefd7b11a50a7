// Package bootstrap wires infrastructure into the core use cases for both
// the API and the worker binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mkorolev/helpcenter-rag/internal/config"
	"github.com/mkorolev/helpcenter-rag/internal/core/usecase"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/chunking"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/embedding"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/embedding/local"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/embedding/openai"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/lexical/meili"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/queue/nats"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/rerank/cohere"
	registrypg "github.com/mkorolev/helpcenter-rag/internal/infrastructure/registry/postgres"
	repopg "github.com/mkorolev/helpcenter-rag/internal/infrastructure/repository/postgres"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/resilience"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/vector/pgvector"
	"github.com/mkorolev/helpcenter-rag/internal/observability/metrics"
)

// App holds everything both binaries need; each binary uses its slice of it.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.ServerMetrics

	DB    *sql.DB
	Queue *nats.Queue

	Search   *usecase.SearchUseCase
	Submit   *usecase.SubmitArticleUseCase
	Indexer  *usecase.IndexArticleUseCase
	Registry *usecase.CollectionRegistry
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, namespace string) (*App, error) {
	db, err := pgvector.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	collectionStore := registrypg.NewCollectionStore(db)
	if err := collectionStore.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure collections schema: %w", err)
	}
	articles := repopg.NewArticleRepository(db)
	if err := articles.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure articles schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy())
	embedders := buildEmbedders(cfg, executor)

	vectorStore := pgvector.NewStore(db)
	lexical := meili.NewClient(cfg.MeiliHost, cfg.MeiliMasterKey, meili.Options{Executor: executor})
	reranker := cohere.NewClient(cfg.CohereAPIKey, cohere.Options{
		Model:    cfg.CohereRerankModel,
		Executor: executor,
	})

	queue, err := nats.Connect(cfg.NATSURL, nats.Options{
		Subject:  cfg.NATSSubject,
		Executor: executor,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect queue: %w", err)
	}

	registry := usecase.NewCollectionRegistry(collectionStore, embedders)
	seeded, err := registrypg.SeedCollections(ctx, cfg.CollectionsSeed, registry)
	if err != nil {
		return nil, fmt.Errorf("seed collections: %w", err)
	}
	for _, col := range seeded {
		if err := vectorStore.EnsureCollectionSchema(ctx, col); err != nil {
			return nil, fmt.Errorf("ensure chunk schema for %s: %w", col.Key, err)
		}
	}

	serverMetrics := metrics.NewServerMetrics(namespace)
	chunker := chunking.NewChunker(cfg.ChunkMaxTokens)

	search := usecase.NewSearchUseCase(
		registry, embedders, vectorStore, lexical, reranker, serverMetrics, logger,
		usecase.SearchConfig{
			DefaultTopK:    cfg.SearchDefaultTopK,
			RRFConstant:    cfg.SearchRRFConstant,
			CandidateLimit: cfg.SearchCandidateLimit,
			EmbedTimeout:   cfg.EmbedTimeout,
			BranchTimeout:  cfg.BranchTimeout,
			RerankTimeout:  cfg.RerankTimeout,
		},
	)
	submit := usecase.NewSubmitArticleUseCase(articles, registry, queue)
	indexer := usecase.NewIndexArticleUseCase(articles, registry, chunker, embedders, vectorStore, lexical)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  serverMetrics,
		DB:       db,
		Queue:    queue,
		Search:   search,
		Submit:   submit,
		Indexer:  indexer,
		Registry: registry,
	}, nil
}

func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

// buildEmbedders registers the configured provider's models. The local
// embedder is always registered so development collections work without
// network credentials.
func buildEmbedders(cfg *config.Config, executor *resilience.Executor) *embedding.Registry {
	registry := embedding.NewRegistry()
	registry.Register("local-hash", local.New(cfg.LocalEmbedDimensions))

	if cfg.EmbeddingsProvider == "openai" {
		registry.Register("text-embedding-3-small", openai.New(
			cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, "text-embedding-3-small", 1536,
			openai.Options{Executor: executor},
		))
		registry.Register("text-embedding-3-large", openai.New(
			cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, "text-embedding-3-large", 3072,
			openai.Options{Executor: executor},
		))
	}
	return registry
}
