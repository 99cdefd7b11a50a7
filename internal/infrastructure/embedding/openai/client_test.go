package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func newEmbeddingsServer(t *testing.T, fn func(w http.ResponseWriter, req embeddingsRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		fn(w, req)
	}))
}

func respondInOrder(w http.ResponseWriter, req embeddingsRequest, dims int) {
	type item struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, len(req.Input))
	for i := range req.Input {
		vec := make([]float32, dims)
		vec[0] = float32(len(req.Input[i]))
		data[i] = item{Index: i, Embedding: vec}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func TestEmbedSingleBatch(t *testing.T) {
	server := newEmbeddingsServer(t, func(w http.ResponseWriter, req embeddingsRequest) {
		if req.Model != "text-embedding-3-small" {
			t.Errorf("model = %q", req.Model)
		}
		respondInOrder(w, req, 4)
	})
	defer server.Close()

	client := New(server.URL, "test-key", "text-embedding-3-small", 4, Options{})
	vectors, err := client.Embed(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors", len(vectors))
	}
	for i, want := range []float32{1, 2, 3} {
		if vectors[i][0] != want {
			t.Errorf("vector %d marker = %v, want %v", i, vectors[i][0], want)
		}
	}
}

func TestEmbedSplitsLargeInput(t *testing.T) {
	var calls atomic.Int32
	server := newEmbeddingsServer(t, func(w http.ResponseWriter, req embeddingsRequest) {
		calls.Add(1)
		if len(req.Input) > maxBatchSize {
			t.Errorf("batch size %d exceeds cap", len(req.Input))
		}
		respondInOrder(w, req, 2)
	})
	defer server.Close()

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}
	client := New(server.URL, "test-key", "text-embedding-3-small", 2, Options{RequestsPerSecond: 1000})
	vectors, err := client.Embed(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 250 {
		t.Fatalf("got %d vectors, want 250", len(vectors))
	}
	if calls.Load() != 3 {
		t.Fatalf("made %d requests, want 3", calls.Load())
	}
}

func TestEmbedReordersByIndex(t *testing.T) {
	server := newEmbeddingsServer(t, func(w http.ResponseWriter, req embeddingsRequest) {
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float32{float32(i)}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	defer server.Close()

	client := New(server.URL, "test-key", "m", 1, Options{})
	vectors, err := client.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	for i := range vectors {
		if vectors[i][0] != float32(i) {
			t.Fatalf("vector %d = %v, response order not corrected", i, vectors[i][0])
		}
	}
}

func TestEmbedUpstreamErrorFailsCall(t *testing.T) {
	server := newEmbeddingsServer(t, func(w http.ResponseWriter, _ embeddingsRequest) {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	})
	defer server.Close()

	client := New(server.URL, "test-key", "m", 2, Options{})
	if _, err := client.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error from 400 response")
	}
}

func TestEmbedSizeMismatchFails(t *testing.T) {
	server := newEmbeddingsServer(t, func(w http.ResponseWriter, _ embeddingsRequest) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})
	defer server.Close()

	client := New(server.URL, "test-key", "m", 2, Options{})
	if _, err := client.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error on missing embeddings")
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	client := New("http://unused", "test-key", "m", 2, Options{})
	vectors, err := client.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("empty input: vectors=%v err=%v", vectors, err)
	}
}

func TestSplitBatches(t *testing.T) {
	batches := splitBatches([]string{"a", "b", "c", "d", "e"}, 2)
	if len(batches) != 3 {
		t.Fatalf("got %d batches", len(batches))
	}
	if len(batches[2]) != 1 || batches[2][0] != "e" {
		t.Fatalf("last batch = %v", batches[2])
	}
}
