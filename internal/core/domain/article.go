package domain

import "time"

// Article is a logical help-center document owned by the ingestion side.
// The retrieval engine reads articles and derives chunks from them.
type Article struct {
	ID            string    `json:"id"`
	CollectionKey string    `json:"collection_key"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary,omitempty"`
	ContentMD     string    `json:"content_md"`
	Category      string    `json:"category,omitempty"`
	Type          string    `json:"type,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Chunk is a bounded, heading-tagged slice of an article, the atomic unit of
// both dense and sparse indexing. Chunks are derived deterministically from
// the article markdown; concatenating chunk texts in Index order recovers the
// article content modulo whitespace at the boundaries.
type Chunk struct {
	ArticleID   string `json:"article_id"`
	Index       int    `json:"index"`
	HeadingPath string `json:"heading_path"`
	Text        string `json:"text"`
	TokenCount  int    `json:"token_count"`
}

type ArticleEventKind string

const (
	ArticleUpserted ArticleEventKind = "upserted"
	ArticleDeleted  ArticleEventKind = "deleted"
)

// ArticleEvent is the ingestion message handed from the API to the worker.
type ArticleEvent struct {
	Kind      ArticleEventKind `json:"kind"`
	ArticleID string           `json:"article_id"`
}
