// Package postgres persists help-center articles, the source of truth both
// indexes are derived from.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

const schemaLockID int64 = 2026082703

type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

func (r *ArticleRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	collection_key TEXT NOT NULL,
	slug TEXT NOT NULL,
	title TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	content_md TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT '',
	tags JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_articles_collection ON articles(collection_key);
CREATE INDEX IF NOT EXISTS idx_articles_slug ON articles(collection_key, slug);
`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute articles ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ArticleRepository) Upsert(ctx context.Context, article *domain.Article) error {
	tags, err := json.Marshal(tagsOrEmpty(article.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	query := `
INSERT INTO articles (id, collection_key, slug, title, summary, content_md, category, type, tags, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	slug = EXCLUDED.slug,
	title = EXCLUDED.title,
	summary = EXCLUDED.summary,
	content_md = EXCLUDED.content_md,
	category = EXCLUDED.category,
	type = EXCLUDED.type,
	tags = EXCLUDED.tags,
	updated_at = EXCLUDED.updated_at
`
	_, err = r.db.ExecContext(ctx, query,
		article.ID, article.CollectionKey, article.Slug, article.Title, article.Summary,
		article.ContentMD, article.Category, article.Type, tags, article.CreatedAt, article.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}

func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	query := `
SELECT id, collection_key, slug, title, summary, content_md, category, type, tags, created_at, updated_at
FROM articles WHERE id = $1
`
	row := r.db.QueryRowContext(ctx, query, id)

	var article domain.Article
	var tags []byte
	err := row.Scan(
		&article.ID, &article.CollectionKey, &article.Slug, &article.Title, &article.Summary,
		&article.ContentMD, &article.Category, &article.Type, &tags, &article.CreatedAt, &article.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrArticleNotFound, "get article", fmt.Errorf("id %q", id))
		}
		return nil, fmt.Errorf("get article: %w", err)
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &article.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return &article, nil
}

func (r *ArticleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
