// Package pgvector implements dense retrieval over per-collection pgvector
// tables. Collections with different dimensionalities use physically distinct
// tables; mixing dimensions in one similarity index is undefined.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureCollectionSchema creates the collection's chunk table with the
// declared dimensionality and a cosine ivfflat index.
func (s *Store) EnsureCollectionSchema(ctx context.Context, col domain.Collection) error {
	if !domain.ValidIdentifier(col.ChunkTable) {
		return domain.WrapError(domain.ErrInvalidInput, "ensure chunk schema", fmt.Errorf("invalid chunk table %q", col.ChunkTable))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS %[1]s (
	chunk_id UUID PRIMARY KEY,
	article_id TEXT NOT NULL,
	chunk_index INT NOT NULL,
	heading_path TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	token_count INT NOT NULL DEFAULT 0,
	embedding vector(%[2]d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_article ON %[1]s(article_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding ON %[1]s USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`, col.ChunkTable, col.EmbeddingDimensions)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute chunk schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) Search(
	ctx context.Context,
	col domain.Collection,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.SearchHit, error) {
	if !domain.ValidIdentifier(col.ChunkTable) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "vector search", fmt.Errorf("invalid chunk table %q", col.ChunkTable))
	}
	if len(queryVector) != col.EmbeddingDimensions {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"vector search",
			fmt.Errorf("query vector has %d dimensions, collection %s declares %d", len(queryVector), col.Key, col.EmbeddingDimensions),
		)
	}
	if limit <= 0 {
		limit = 10
	}

	args := []any{pgv.NewVector(queryVector), col.Key}
	where := "a.collection_key = $2"
	if filter.Category != "" {
		args = append(args, filter.Category)
		where += fmt.Sprintf(" AND a.category = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where += fmt.Sprintf(" AND a.type = $%d", len(args))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT c.chunk_id::text, c.article_id, c.heading_path, c.text, a.title, a.slug,
       1 - (c.embedding <=> $1) AS score
FROM %s c
JOIN articles a ON a.id = c.article_id
WHERE %s
ORDER BY c.embedding <=> $1
LIMIT $%d
`, col.ChunkTable, where, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search query: %w", err)
	}
	defer rows.Close()

	var out []domain.SearchHit
	for rows.Next() {
		var hit domain.SearchHit
		var slug string
		if err := rows.Scan(&hit.ID, &hit.ArticleID, &hit.HeadingPath, &hit.Content, &hit.Title, &slug, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan vector hit: %w", err)
		}
		if slug != "" {
			hit.URL = "/a/" + slug
		}
		hit.Source = domain.SourceVector
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector hits: %w", err)
	}
	return out, nil
}

// ReplaceArticleChunks deletes the article's chunk rows and inserts the new
// set in one transaction, so a re-ingest never leaves stale chunks behind.
func (s *Store) ReplaceArticleChunks(
	ctx context.Context,
	col domain.Collection,
	article *domain.Article,
	chunks []domain.Chunk,
	vectors [][]float32,
) error {
	if !domain.ValidIdentifier(col.ChunkTable) {
		return domain.WrapError(domain.ErrInvalidInput, "replace chunks", fmt.Errorf("invalid chunk table %q", col.ChunkTable))
	}
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "replace chunks", fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}
	for i, vector := range vectors {
		if len(vector) != col.EmbeddingDimensions {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"replace chunks",
				fmt.Errorf("chunk %d vector has %d dimensions, collection %s declares %d", i, len(vector), col.Key, col.EmbeddingDimensions),
			)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE article_id = $1`, col.ChunkTable), article.ID); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (chunk_id, article_id, chunk_index, heading_path, text, token_count, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, col.ChunkTable)
	for i, chunk := range chunks {
		_, err := tx.ExecContext(ctx, insert,
			uuid.NewString(), article.ID, chunk.Index, chunk.HeadingPath, chunk.Text, chunk.TokenCount, pgv.NewVector(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

func (s *Store) DeleteArticleChunks(ctx context.Context, col domain.Collection, articleID string) error {
	if !domain.ValidIdentifier(col.ChunkTable) {
		return domain.WrapError(domain.ErrInvalidInput, "delete chunks", fmt.Errorf("invalid chunk table %q", col.ChunkTable))
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE article_id = $1`, col.ChunkTable), articleID); err != nil {
		return fmt.Errorf("delete article chunks: %w", err)
	}
	return nil
}
