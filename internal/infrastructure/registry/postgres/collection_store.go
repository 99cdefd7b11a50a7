// Package postgres persists the collection registry.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

const schemaLockID int64 = 2026082702

type CollectionStore struct {
	db *sql.DB
}

func NewCollectionStore(db *sql.DB) *CollectionStore {
	return &CollectionStore{db: db}
}

func (s *CollectionStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
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
CREATE TABLE IF NOT EXISTS collections (
	id UUID PRIMARY KEY,
	collection_key TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	embedding_model TEXT NOT NULL,
	embedding_dimensions INT NOT NULL,
	chunk_table TEXT NOT NULL,
	lexical_index TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute collections ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const collectionColumns = `id, collection_key, name, embedding_model, embedding_dimensions, chunk_table, lexical_index, is_active, created_at, updated_at`

func (s *CollectionStore) GetByKey(ctx context.Context, key string) (*domain.Collection, error) {
	query := fmt.Sprintf(`SELECT %s FROM collections WHERE collection_key = $1`, collectionColumns)
	row := s.db.QueryRowContext(ctx, query, key)

	col, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCollectionNotFound, "get collection", fmt.Errorf("key %q", key))
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

func (s *CollectionStore) List(ctx context.Context) ([]domain.Collection, error) {
	query := fmt.Sprintf(`SELECT %s FROM collections ORDER BY collection_key`, collectionColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var out []domain.Collection
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, *col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return out, nil
}

func (s *CollectionStore) Upsert(ctx context.Context, col *domain.Collection) error {
	query := `
INSERT INTO collections (id, collection_key, name, embedding_model, embedding_dimensions, chunk_table, lexical_index, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (collection_key) DO UPDATE SET
	name = EXCLUDED.name,
	is_active = EXCLUDED.is_active,
	updated_at = EXCLUDED.updated_at
`
	_, err := s.db.ExecContext(ctx, query,
		col.ID, col.Key, col.Name, col.EmbeddingModel, col.EmbeddingDimensions,
		col.ChunkTable, col.LexicalIndex, col.Active, col.CreatedAt, col.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert collection: %w", err)
	}
	return nil
}

func (s *CollectionStore) SetActive(ctx context.Context, key string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE collections SET is_active = $1, updated_at = now() WHERE collection_key = $2`,
		active, key,
	)
	if err != nil {
		return fmt.Errorf("set collection active: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set collection active: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrCollectionNotFound, "set collection active", fmt.Errorf("key %q", key))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*domain.Collection, error) {
	var col domain.Collection
	err := row.Scan(
		&col.ID, &col.Key, &col.Name, &col.EmbeddingModel, &col.EmbeddingDimensions,
		&col.ChunkTable, &col.LexicalIndex, &col.Active, &col.CreatedAt, &col.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &col, nil
}
