package domain

// Hit sources. Scores are only comparable within one source: cosine
// similarity for vector, engine ranking score for bm25, RRF for fused and
// cross-encoder relevance for reranked.
const (
	SourceVector   = "vector"
	SourceBM25     = "bm25"
	SourceFused    = "fused"
	SourceReranked = "reranked"
)

// SearchFilter carries optional attribute restrictions passed through to both
// indexes.
type SearchFilter struct {
	Category string `json:"category,omitempty"`
	Type     string `json:"type,omitempty"`
}

// SearchHit is one retrieval candidate. Transient, never persisted.
type SearchHit struct {
	ID          string  `json:"id"`
	ArticleID   string  `json:"article_id,omitempty"`
	Title       string  `json:"title,omitempty"`
	URL         string  `json:"url,omitempty"`
	HeadingPath string  `json:"heading_path,omitempty"`
	Content     string  `json:"content"`
	Score       float64 `json:"score"`
	Source      string  `json:"source"`
}

type SearchRequest struct {
	Query         string       `json:"query"`
	CollectionKey string       `json:"collection_key"`
	TopK          int          `json:"top_k"`
	Filter        SearchFilter `json:"filter"`
}

type SearchResult struct {
	Hits []SearchHit `json:"hits"`
}

// RerankCandidate is the (title, text) pair sent to the cross-encoder.
type RerankCandidate struct {
	Title string
	Text  string
}

// RerankedItem points back into the candidate slice by index.
type RerankedItem struct {
	Index     int
	Relevance float64
}
