package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Collection is one logically isolated knowledge base. Collections may use
// different embedding models and therefore different vector dimensionalities,
// which is why each one names its own physical chunk table and lexical index.
// Everything except Active is immutable once the collection is in use.
type Collection struct {
	ID                  string    `json:"id"`
	Key                 string    `json:"collection_key"`
	Name                string    `json:"name"`
	EmbeddingModel      string    `json:"embedding_model"`
	EmbeddingDimensions int       `json:"embedding_dimensions"`
	ChunkTable          string    `json:"chunk_table"`
	LexicalIndex        string    `json:"lexical_index"`
	Active              bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

var sqlIdentifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidIdentifier reports whether s is safe to interpolate as a table name.
func ValidIdentifier(s string) bool {
	return sqlIdentifierPattern.MatchString(s)
}

func (c *Collection) Validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return WrapError(ErrInvalidInput, "validate collection", errors.New("collection_key is required"))
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		return WrapError(ErrInvalidInput, "validate collection", errors.New("embedding_model is required"))
	}
	if c.EmbeddingDimensions <= 0 {
		return WrapError(ErrInvalidInput, "validate collection", fmt.Errorf("embedding_dimensions must be positive, got %d", c.EmbeddingDimensions))
	}
	if !ValidIdentifier(c.ChunkTable) {
		return WrapError(ErrInvalidInput, "validate collection", fmt.Errorf("chunk_table %q is not a valid identifier", c.ChunkTable))
	}
	if strings.TrimSpace(c.LexicalIndex) == "" {
		return WrapError(ErrInvalidInput, "validate collection", errors.New("lexical_index is required"))
	}
	return nil
}
