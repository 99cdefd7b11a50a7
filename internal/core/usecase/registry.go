package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
	"github.com/mkorolev/helpcenter-rag/internal/core/ports"
)

// CollectionRegistry resolves collection keys on every query through a
// read-mostly cache. The cache has no TTL: a stale embedding dimensionality
// is a correctness bug, not a staleness tolerance, so invalidation happens
// explicitly on every administrative write.
type CollectionRegistry struct {
	store     ports.CollectionStore
	embedders ports.EmbedderProvider

	mu    sync.RWMutex
	cache map[string]domain.Collection
}

func NewCollectionRegistry(store ports.CollectionStore, embedders ports.EmbedderProvider) *CollectionRegistry {
	return &CollectionRegistry{
		store:     store,
		embedders: embedders,
		cache:     make(map[string]domain.Collection),
	}
}

func (r *CollectionRegistry) Resolve(ctx context.Context, key string) (domain.Collection, error) {
	r.mu.RLock()
	col, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return col, nil
	}

	stored, err := r.store.GetByKey(ctx, key)
	if err != nil {
		return domain.Collection{}, err
	}
	if !stored.Active {
		return domain.Collection{}, domain.WrapError(domain.ErrCollectionNotFound, "resolve collection", fmt.Errorf("collection %q is inactive", key))
	}

	r.mu.Lock()
	r.cache[key] = *stored
	r.mu.Unlock()
	return *stored, nil
}

func (r *CollectionRegistry) Invalidate(key string) {
	r.mu.Lock()
	delete(r.cache, key)
	r.mu.Unlock()
}

// CreateCollection validates the record against the embedder registry before
// it is persisted: unknown models and dimension mismatches are rejected at
// registration time, never discovered at query time.
func (r *CollectionRegistry) CreateCollection(ctx context.Context, col *domain.Collection) error {
	if col == nil {
		return domain.WrapError(domain.ErrInvalidInput, "create collection", errors.New("collection is nil"))
	}
	if err := col.Validate(); err != nil {
		return err
	}

	embedder, err := r.embedders.ForModel(col.EmbeddingModel)
	if err != nil {
		return err
	}
	if embedder.Dimensions() != col.EmbeddingDimensions {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"create collection",
			fmt.Errorf("model %s produces %d dimensions, collection declares %d", col.EmbeddingModel, embedder.Dimensions(), col.EmbeddingDimensions),
		)
	}

	if col.ID == "" {
		col.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if col.CreatedAt.IsZero() {
		col.CreatedAt = now
	}
	col.UpdatedAt = now

	if err := r.store.Upsert(ctx, col); err != nil {
		return fmt.Errorf("upsert collection: %w", err)
	}
	r.Invalidate(col.Key)
	return nil
}

func (r *CollectionRegistry) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return r.store.List(ctx)
}

func (r *CollectionRegistry) SetCollectionActive(ctx context.Context, key string, active bool) error {
	if err := r.store.SetActive(ctx, key, active); err != nil {
		return err
	}
	r.Invalidate(key)
	return nil
}
