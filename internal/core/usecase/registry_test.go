package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

type fakeCollectionStore struct {
	collections map[string]domain.Collection
	getCalls    int
}

func newFakeCollectionStore(cols ...domain.Collection) *fakeCollectionStore {
	store := &fakeCollectionStore{collections: make(map[string]domain.Collection)}
	for _, col := range cols {
		store.collections[col.Key] = col
	}
	return store
}

func (s *fakeCollectionStore) GetByKey(_ context.Context, key string) (*domain.Collection, error) {
	s.getCalls++
	col, ok := s.collections[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrCollectionNotFound, "get collection", fmt.Errorf("key %q", key))
	}
	return &col, nil
}

func (s *fakeCollectionStore) List(context.Context) ([]domain.Collection, error) {
	out := make([]domain.Collection, 0, len(s.collections))
	for _, col := range s.collections {
		out = append(out, col)
	}
	return out, nil
}

func (s *fakeCollectionStore) Upsert(_ context.Context, col *domain.Collection) error {
	s.collections[col.Key] = *col
	return nil
}

func (s *fakeCollectionStore) SetActive(_ context.Context, key string, active bool) error {
	col, ok := s.collections[key]
	if !ok {
		return domain.WrapError(domain.ErrCollectionNotFound, "set collection active", fmt.Errorf("key %q", key))
	}
	col.Active = active
	s.collections[key] = col
	return nil
}

func TestRegistryResolveCaches(t *testing.T) {
	store := newFakeCollectionStore(testCollection())
	registry := NewCollectionRegistry(store, &fakeProvider{embedder: &fakeEmbedder{dims: 4}})

	for i := 0; i < 3; i++ {
		col, err := registry.Resolve(context.Background(), "help_center")
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if col.Key != "help_center" {
			t.Fatalf("resolve %d returned %q", i, col.Key)
		}
	}
	if store.getCalls != 1 {
		t.Fatalf("store queried %d times, want 1 (cache miss only)", store.getCalls)
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	registry := NewCollectionRegistry(newFakeCollectionStore(), &fakeProvider{})
	_, err := registry.Resolve(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrCollectionNotFound) {
		t.Fatalf("want collection-not-found, got %v", err)
	}
}

func TestRegistryResolveInactive(t *testing.T) {
	col := testCollection()
	col.Active = false
	registry := NewCollectionRegistry(newFakeCollectionStore(col), &fakeProvider{})

	_, err := registry.Resolve(context.Background(), col.Key)
	if !domain.IsKind(err, domain.ErrCollectionNotFound) {
		t.Fatalf("inactive collection must resolve as not found, got %v", err)
	}
}

func TestRegistryInvalidate(t *testing.T) {
	store := newFakeCollectionStore(testCollection())
	registry := NewCollectionRegistry(store, &fakeProvider{embedder: &fakeEmbedder{dims: 4}})

	if _, err := registry.Resolve(context.Background(), "help_center"); err != nil {
		t.Fatal(err)
	}
	registry.Invalidate("help_center")
	if _, err := registry.Resolve(context.Background(), "help_center"); err != nil {
		t.Fatal(err)
	}
	if store.getCalls != 2 {
		t.Fatalf("store queried %d times after invalidation, want 2", store.getCalls)
	}
}

func TestCreateCollectionValidatesModel(t *testing.T) {
	registry := NewCollectionRegistry(
		newFakeCollectionStore(),
		&fakeProvider{err: domain.WrapError(domain.ErrInvalidInput, "resolve embedder", errors.New("unknown model"))},
	)

	col := testCollection()
	err := registry.CreateCollection(context.Background(), &col)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("unknown model must be rejected, got %v", err)
	}
}

func TestCreateCollectionValidatesDimensions(t *testing.T) {
	registry := NewCollectionRegistry(
		newFakeCollectionStore(),
		&fakeProvider{embedder: &fakeEmbedder{dims: 8}},
	)

	col := testCollection() // declares 4 dimensions
	err := registry.CreateCollection(context.Background(), &col)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("dimension mismatch must be rejected, got %v", err)
	}
}

func TestCreateCollectionRejectsBadTableName(t *testing.T) {
	registry := NewCollectionRegistry(newFakeCollectionStore(), &fakeProvider{embedder: &fakeEmbedder{dims: 4}})

	col := testCollection()
	col.ChunkTable = `chunks"; DROP TABLE articles; --`
	err := registry.CreateCollection(context.Background(), &col)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("invalid identifier must be rejected, got %v", err)
	}
}

func TestCreateCollectionAssignsIDAndTimestamps(t *testing.T) {
	store := newFakeCollectionStore()
	registry := NewCollectionRegistry(store, &fakeProvider{embedder: &fakeEmbedder{dims: 4}})

	col := testCollection()
	col.ID = ""
	if err := registry.CreateCollection(context.Background(), &col); err != nil {
		t.Fatal(err)
	}
	if col.ID == "" {
		t.Error("id not assigned")
	}
	if col.CreatedAt.IsZero() || col.UpdatedAt.IsZero() {
		t.Error("timestamps not assigned")
	}
	if _, ok := store.collections[col.Key]; !ok {
		t.Error("collection not persisted")
	}
}

func TestSetCollectionActiveInvalidatesCache(t *testing.T) {
	store := newFakeCollectionStore(testCollection())
	registry := NewCollectionRegistry(store, &fakeProvider{embedder: &fakeEmbedder{dims: 4}})

	if _, err := registry.Resolve(context.Background(), "help_center"); err != nil {
		t.Fatal(err)
	}
	if err := registry.SetCollectionActive(context.Background(), "help_center", false); err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Resolve(context.Background(), "help_center"); !domain.IsKind(err, domain.ErrCollectionNotFound) {
		t.Fatalf("deactivated collection still resolves: %v", err)
	}
}
