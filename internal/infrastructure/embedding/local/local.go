// Package local provides a network-free embedder for development and tests.
// Vectors are a pure function of the input text: same text, same vector.
// They carry no semantic meaning, only stability, which is what downstream
// similarity tests need to be reproducible.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
)

const defaultDimensions = 256

type Embedder struct {
	dimensions int
}

func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, e.vectorFor(text))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) vectorFor(text string) []float32 {
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(hash.Sum64())))

	vector := make([]float64, e.dimensions)
	var norm float64
	for i := range vector {
		vector[i] = rng.NormFloat64()
		norm += vector[i] * vector[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, e.dimensions)
	for i := range vector {
		out[i] = float32(vector[i] / norm)
	}
	return out
}
