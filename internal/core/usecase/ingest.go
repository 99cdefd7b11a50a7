package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
	"github.com/mkorolev/helpcenter-rag/internal/core/ports"
)

// SubmitArticleUseCase is the API-side half of ingestion: validate, persist
// the article row, hand the indexing work to the worker via the queue.
type SubmitArticleUseCase struct {
	articles    ports.ArticleRepository
	collections ports.CollectionResolver
	queue       ports.MessageQueue
}

func NewSubmitArticleUseCase(
	articles ports.ArticleRepository,
	collections ports.CollectionResolver,
	queue ports.MessageQueue,
) *SubmitArticleUseCase {
	return &SubmitArticleUseCase{
		articles:    articles,
		collections: collections,
		queue:       queue,
	}
}

func (uc *SubmitArticleUseCase) SubmitArticle(ctx context.Context, article *domain.Article) (*domain.Article, error) {
	if article == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit article", errors.New("article is nil"))
	}
	if strings.TrimSpace(article.Title) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit article", errors.New("title is required"))
	}
	if strings.TrimSpace(article.ContentMD) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit article", errors.New("content_md is required"))
	}

	// Fail fast before persisting anything the worker cannot index.
	if _, err := uc.collections.Resolve(ctx, article.CollectionKey); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	if article.Slug == "" {
		article.Slug = Slugify(article.Title)
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.UpdatedAt = now

	if err := uc.articles.Upsert(ctx, article); err != nil {
		return nil, fmt.Errorf("upsert article: %w", err)
	}
	if err := uc.queue.PublishArticleEvent(ctx, domain.ArticleEvent{
		Kind:      domain.ArticleUpserted,
		ArticleID: article.ID,
	}); err != nil {
		return nil, fmt.Errorf("publish article event: %w", err)
	}
	return article, nil
}

func (uc *SubmitArticleUseCase) RemoveArticle(ctx context.Context, articleID string) error {
	if _, err := uc.articles.GetByID(ctx, articleID); err != nil {
		return err
	}
	if err := uc.queue.PublishArticleEvent(ctx, domain.ArticleEvent{
		Kind:      domain.ArticleDeleted,
		ArticleID: articleID,
	}); err != nil {
		return fmt.Errorf("publish article event: %w", err)
	}
	return nil
}

// IndexArticleUseCase is the worker-side half: chunk, embed, write both
// indexes with delete-then-insert semantics, keyed by the stores the
// collection registry names for the article's collection.
type IndexArticleUseCase struct {
	articles    ports.ArticleRepository
	collections ports.CollectionResolver
	chunker     ports.Chunker
	embedders   ports.EmbedderProvider
	vector      ports.VectorIndexer
	lexical     ports.LexicalIndexer
}

func NewIndexArticleUseCase(
	articles ports.ArticleRepository,
	collections ports.CollectionResolver,
	chunker ports.Chunker,
	embedders ports.EmbedderProvider,
	vector ports.VectorIndexer,
	lexical ports.LexicalIndexer,
) *IndexArticleUseCase {
	return &IndexArticleUseCase{
		articles:    articles,
		collections: collections,
		chunker:     chunker,
		embedders:   embedders,
		vector:      vector,
		lexical:     lexical,
	}
}

func (uc *IndexArticleUseCase) IndexArticle(ctx context.Context, articleID string) error {
	article, err := uc.articles.GetByID(ctx, articleID)
	if err != nil {
		return fmt.Errorf("fetch article: %w", err)
	}
	col, err := uc.collections.Resolve(ctx, article.CollectionKey)
	if err != nil {
		return fmt.Errorf("resolve collection: %w", err)
	}

	chunks := uc.chunker.Chunk(article.ContentMD)
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk article", errors.New("chunking produced zero chunks"))
	}
	for i := range chunks {
		chunks[i].ArticleID = article.ID
	}

	embedder, err := uc.embedders.ForModel(col.EmbeddingModel)
	if err != nil {
		return err
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	if err := uc.vector.ReplaceArticleChunks(ctx, col, article, chunks, vectors); err != nil {
		return fmt.Errorf("replace article chunks: %w", err)
	}
	if err := uc.lexical.UpsertArticle(ctx, col, article, headingPaths(chunks)); err != nil {
		return fmt.Errorf("upsert lexical document: %w", err)
	}
	return nil
}

// DeindexArticle removes the article from both indexes and then deletes the
// row. Deleting a document must cascade to all its chunks in both indexes or
// stale chunks would keep surfacing in results.
func (uc *IndexArticleUseCase) DeindexArticle(ctx context.Context, articleID string) error {
	article, err := uc.articles.GetByID(ctx, articleID)
	if err != nil {
		if domain.IsKind(err, domain.ErrArticleNotFound) {
			return nil
		}
		return fmt.Errorf("fetch article: %w", err)
	}
	col, err := uc.collections.Resolve(ctx, article.CollectionKey)
	if err != nil {
		return fmt.Errorf("resolve collection: %w", err)
	}

	if err := uc.vector.DeleteArticleChunks(ctx, col, articleID); err != nil {
		return fmt.Errorf("delete article chunks: %w", err)
	}
	if err := uc.lexical.DeleteArticle(ctx, col, articleID); err != nil {
		return fmt.Errorf("delete lexical document: %w", err)
	}
	if err := uc.articles.Delete(ctx, articleID); err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return nil
}

func headingPaths(chunks []domain.Chunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.HeadingPath == "" {
			continue
		}
		if _, ok := seen[chunk.HeadingPath]; ok {
			continue
		}
		seen[chunk.HeadingPath] = struct{}{}
		out = append(out, chunk.HeadingPath)
	}
	return out
}

var (
	slugStripPattern    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapsePattern = regexp.MustCompile(`[-\s]+`)
)

// Slugify derives a URL-friendly slug from an article title, capped at 50
// characters on a hyphen boundary.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugStripPattern.ReplaceAllString(slug, "")
	slug = slugCollapsePattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 50 {
		trimmed := slug[:50]
		if idx := strings.LastIndex(trimmed, "-"); idx > 0 {
			trimmed = trimmed[:idx]
		}
		slug = trimmed
	}
	return slug
}
