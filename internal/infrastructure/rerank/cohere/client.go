// Package cohere implements cross-encoder reranking via the Cohere rerank
// API. The reranker is optional infrastructure: when no API key is configured
// the client reports itself unavailable and retrieval serves fused order.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/resilience"
)

const (
	defaultBaseURL = "https://api.cohere.com"
	defaultModel   = "rerank-english-v3.0"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	BaseURL  string
	Model    string
	Executor *resilience.Executor
	Timeout  time.Duration
}

func NewClient(apiKey string, opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	executor := opts.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.QueryPolicy())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) IsAvailable() bool {
	return c.apiKey != ""
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (c *Client) Rerank(
	ctx context.Context,
	query string,
	candidates []domain.RerankCandidate,
	topN int,
) ([]domain.RerankedItem, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("cohere: no api key configured")
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	documents := make([]string, len(candidates))
	for i, cand := range candidates {
		if cand.Title != "" {
			documents[i] = cand.Title + "\n" + cand.Text
		} else {
			documents[i] = cand.Text
		}
	}

	body := rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	}

	var resp rerankResponse
	call := func(callCtx context.Context) error {
		return c.postRerank(callCtx, body, &resp)
	}
	if err := c.executor.Execute(ctx, "cohere.rerank", call, resilience.ClassifyHTTPError); err != nil {
		return nil, err
	}

	out := make([]domain.RerankedItem, 0, len(resp.Results))
	for _, result := range resp.Results {
		if result.Index < 0 || result.Index >= len(candidates) {
			return nil, fmt.Errorf("cohere: result index %d out of range", result.Index)
		}
		out = append(out, domain.RerankedItem{
			Index:     result.Index,
			Relevance: result.RelevanceScore,
		})
	}
	return out, nil
}

func (c *Client) postRerank(ctx context.Context, body rerankRequest, out *rerankResponse) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/rerank", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cohere rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &resilience.HTTPStatusError{
			Service:    "cohere",
			Operation:  "rerank",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(errBody),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}
