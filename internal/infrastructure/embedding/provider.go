// Package embedding maps embedding model names onto concrete providers.
package embedding

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
	"github.com/mkorolev/helpcenter-rag/internal/core/ports"
)

// Registry is the EmbedderProvider implementation: a fixed set of embedders
// registered at bootstrap, resolved by model name per collection.
type Registry struct {
	mu        sync.RWMutex
	embedders map[string]ports.Embedder
}

func NewRegistry() *Registry {
	return &Registry{embedders: make(map[string]ports.Embedder)}
}

func (r *Registry) Register(model string, embedder ports.Embedder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders[model] = embedder
}

func (r *Registry) ForModel(model string) (ports.Embedder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	embedder, ok := r.embedders[model]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve embedder", fmt.Errorf("unknown embedding model %q", model))
	}
	return embedder, nil
}

func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]string, 0, len(r.embedders))
	for model := range r.embedders {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}
