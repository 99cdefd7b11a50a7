package usecase

import (
	"context"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

// rerankCharBudget caps the text sent per candidate; the rerank service
// rejects oversized documents. Truncation changes how much of a candidate is
// compared, never which candidate is represented.
const rerankCharBudget = 4000

// applyRerank re-orders the fused head with the cross-encoder when one is
// configured and available. Any failure falls back to the fused order; a
// degraded ranking is still an answer.
func (uc *SearchUseCase) applyRerank(ctx context.Context, collectionKey, query string, fused []domain.SearchHit, topK int) []domain.SearchHit {
	if uc.reranker == nil || len(fused) == 0 || !uc.reranker.IsAvailable() {
		return fused
	}

	head := 2 * topK
	if head > len(fused) {
		head = len(fused)
	}
	candidates := make([]domain.RerankCandidate, head)
	for i, hit := range fused[:head] {
		candidates[i] = domain.RerankCandidate{
			Title: hit.Title,
			Text:  truncateRunes(hit.Content, rerankCharBudget),
		}
	}

	rerankCtx, cancel := context.WithTimeout(ctx, uc.cfg.RerankTimeout)
	defer cancel()
	ranked, err := uc.reranker.Rerank(rerankCtx, query, candidates, topK)
	if err != nil {
		uc.logger.Warn("rerank_failed", "error", err)
		uc.branchFailed(collectionKey, "rerank")
		return fused
	}

	out := make([]domain.SearchHit, 0, len(ranked))
	for _, item := range ranked {
		if item.Index < 0 || item.Index >= head {
			continue
		}
		hit := fused[item.Index]
		hit.Score = item.Relevance
		hit.Source = domain.SourceReranked
		out = append(out, hit)
	}
	if len(out) == 0 {
		return fused
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
