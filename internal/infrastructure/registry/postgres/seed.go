package postgres

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
	"github.com/mkorolev/helpcenter-rag/internal/core/ports"
)

type seedFile struct {
	Collections []seedCollection `yaml:"collections"`
}

type seedCollection struct {
	Key                 string `yaml:"collection_key"`
	Name                string `yaml:"name"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
	ChunkTable          string `yaml:"chunk_table"`
	LexicalIndex        string `yaml:"lexical_index"`
}

// SeedCollections registers the collections declared in a YAML seed file
// through the admin use case, so the same model/dimension validation applies
// to seeded and API-created collections. Existing collections are upserted;
// registration is idempotent across restarts.
func SeedCollections(ctx context.Context, path string, admin ports.CollectionAdmin) ([]domain.Collection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read collections seed: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse collections seed: %w", err)
	}
	if len(file.Collections) == 0 {
		return nil, fmt.Errorf("collections seed %s declares no collections", path)
	}

	out := make([]domain.Collection, 0, len(file.Collections))
	for _, seed := range file.Collections {
		col := domain.Collection{
			Key:                 seed.Key,
			Name:                seed.Name,
			EmbeddingModel:      seed.EmbeddingModel,
			EmbeddingDimensions: seed.EmbeddingDimensions,
			ChunkTable:          seed.ChunkTable,
			LexicalIndex:        seed.LexicalIndex,
			Active:              true,
		}
		if err := admin.CreateCollection(ctx, &col); err != nil {
			return nil, fmt.Errorf("seed collection %q: %w", seed.Key, err)
		}
		out = append(out, col)
	}
	return out, nil
}
