// Package meili implements lexical (BM25-style) retrieval against a
// Meilisearch instance, one index per collection.
package meili

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/resilience"
)

// Documents longer than this are truncated before indexing; Meilisearch only
// needs the text for term matching, the canonical copy stays in Postgres.
const maxIndexedContentLen = 10000

type Client struct {
	host       string
	masterKey  string
	httpClient *http.Client
	executor   *resilience.Executor

	mu         sync.Mutex
	configured map[string]bool
}

type Options struct {
	Executor *resilience.Executor
	Timeout  time.Duration
}

func NewClient(host, masterKey string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	executor := opts.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultPolicy())
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		masterKey:  masterKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		configured: make(map[string]bool),
	}
}

type searchRequest struct {
	Q                    string   `json:"q"`
	Limit                int      `json:"limit"`
	Filter               string   `json:"filter,omitempty"`
	AttributesToRetrieve []string `json:"attributesToRetrieve"`
	ShowRankingScore     bool     `json:"showRankingScore"`
}

type searchResponse struct {
	Hits []struct {
		ID           string   `json:"id"`
		Title        string   `json:"title"`
		Slug         string   `json:"slug"`
		Summary      string   `json:"summary"`
		Content      string   `json:"content"`
		HeadingPaths []string `json:"heading_paths"`
		RankingScore float64  `json:"_rankingScore"`
	} `json:"hits"`
}

func (c *Client) Search(
	ctx context.Context,
	col domain.Collection,
	query string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	body := searchRequest{
		Q:                    query,
		Limit:                limit,
		Filter:               buildFilter(filter),
		AttributesToRetrieve: []string{"id", "title", "slug", "summary", "content", "heading_paths"},
		ShowRankingScore:     true,
	}

	var resp searchResponse
	call := func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, fmt.Sprintf("/indexes/%s/search", col.LexicalIndex), body, &resp)
	}
	if err := c.executor.Execute(ctx, "meilisearch.search", call, resilience.ClassifyHTTPError); err != nil {
		return nil, err
	}

	out := make([]domain.SearchHit, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		hit := domain.SearchHit{
			ID:        h.ID,
			ArticleID: h.ID,
			Title:     h.Title,
			Content:   h.Summary,
			Score:     h.RankingScore,
			Source:    domain.SourceBM25,
		}
		if hit.Content == "" {
			hit.Content = h.Content
		}
		if h.Slug != "" {
			hit.URL = "/a/" + h.Slug
		}
		if len(h.HeadingPaths) > 0 {
			hit.HeadingPath = h.HeadingPaths[0]
		}
		out = append(out, hit)
	}
	return out, nil
}

type lexicalDocument struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Slug         string   `json:"slug"`
	Summary      string   `json:"summary"`
	Content      string   `json:"content"`
	Category     string   `json:"category"`
	Type         string   `json:"type"`
	Tags         []string `json:"tags"`
	HeadingPaths []string `json:"heading_paths"`
}

func (c *Client) UpsertArticle(ctx context.Context, col domain.Collection, article *domain.Article, headingPaths []string) error {
	if err := c.ensureIndexSettings(ctx, col.LexicalIndex); err != nil {
		return err
	}

	content := article.ContentMD
	if len(content) > maxIndexedContentLen {
		content = truncateRunesAt(content, maxIndexedContentLen)
	}
	docs := []lexicalDocument{{
		ID:           article.ID,
		Title:        article.Title,
		Slug:         article.Slug,
		Summary:      article.Summary,
		Content:      content,
		Category:     article.Category,
		Type:         article.Type,
		Tags:         article.Tags,
		HeadingPaths: headingPaths,
	}}

	call := func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPut, fmt.Sprintf("/indexes/%s/documents", col.LexicalIndex), docs, nil)
	}
	return c.executor.Execute(ctx, "meilisearch.upsert", call, resilience.ClassifyHTTPError)
}

func (c *Client) DeleteArticle(ctx context.Context, col domain.Collection, articleID string) error {
	call := func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodDelete, fmt.Sprintf("/indexes/%s/documents/%s", col.LexicalIndex, articleID), nil, nil)
	}
	return c.executor.Execute(ctx, "meilisearch.delete", call, resilience.ClassifyHTTPError)
}

type indexSettings struct {
	SearchableAttributes []string `json:"searchableAttributes"`
	FilterableAttributes []string `json:"filterableAttributes"`
	RankingRules         []string `json:"rankingRules"`
}

// ensureIndexSettings pushes searchable/filterable attributes once per index
// per process. Settings updates in Meilisearch are idempotent, so a restart
// re-pushing them is harmless.
func (c *Client) ensureIndexSettings(ctx context.Context, index string) error {
	c.mu.Lock()
	done := c.configured[index]
	c.mu.Unlock()
	if done {
		return nil
	}

	settings := indexSettings{
		SearchableAttributes: []string{"title", "summary", "content", "heading_paths", "tags"},
		FilterableAttributes: []string{"category", "type", "tags"},
		RankingRules:         []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
	}
	call := func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPatch, fmt.Sprintf("/indexes/%s/settings", index), settings, nil)
	}
	if err := c.executor.Execute(ctx, "meilisearch.settings", call, resilience.ClassifyHTTPError); err != nil {
		return err
	}

	c.mu.Lock()
	c.configured[index] = true
	c.mu.Unlock()
	return nil
}

func buildFilter(filter domain.SearchFilter) string {
	var parts []string
	if filter.Category != "" {
		parts = append(parts, fmt.Sprintf("category = %q", filter.Category))
	}
	if filter.Type != "" {
		parts = append(parts, fmt.Sprintf("type = %q", filter.Type))
	}
	return strings.Join(parts, " AND ")
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode meilisearch payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, body)
	if err != nil {
		return fmt.Errorf("build meilisearch request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.masterKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.masterKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("meilisearch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &resilience.HTTPStatusError{
			Service:    "meilisearch",
			Operation:  method + " " + path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode meilisearch response: %w", err)
	}
	return nil
}

func truncateRunesAt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
