package usecase

import (
	"sort"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

const defaultRRFConstant = 60

type fusedHit struct {
	hit   domain.SearchHit
	score float64
	order int
}

// fuseHits merges the dense and sparse result lists with Reciprocal Rank
// Fusion: score(id) = sum over lists of 1/(k + rank), rank 1-based. An id
// present in both lists accumulates both terms, which is what rewards
// cross-method agreement. Ties break by first-seen input order so the final
// ranking is deterministic for deterministic inputs.
func fuseHits(vectorHits, lexicalHits []domain.SearchHit, rrfK int) []domain.SearchHit {
	if rrfK <= 0 {
		rrfK = defaultRRFConstant
	}

	acc := make(map[string]*fusedHit, len(vectorHits)+len(lexicalHits))
	nextOrder := 0
	addList := func(hits []domain.SearchHit) {
		for rank, hit := range hits {
			candidate, ok := acc[hit.ID]
			if !ok {
				candidate = &fusedHit{hit: hit, order: nextOrder}
				nextOrder++
				acc[hit.ID] = candidate
			} else {
				candidate.hit = preferRicherHit(candidate.hit, hit)
			}
			candidate.score += 1.0 / float64(rrfK+rank+1)
		}
	}

	addList(vectorHits)
	addList(lexicalHits)

	out := make([]*fusedHit, 0, len(acc))
	for _, candidate := range acc {
		out = append(out, candidate)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].order < out[j].order
	})

	fused := make([]domain.SearchHit, 0, len(out))
	for _, candidate := range out {
		hit := candidate.hit
		hit.Score = candidate.score
		hit.Source = domain.SourceFused
		fused = append(fused, hit)
	}
	return fused
}

// preferRicherHit keeps the first-seen hit but fills fields the other list
// happened to carry. Chunk-level hits have heading paths; article-level
// lexical hits have summaries.
func preferRicherHit(current, candidate domain.SearchHit) domain.SearchHit {
	if current.Title == "" {
		current.Title = candidate.Title
	}
	if current.URL == "" {
		current.URL = candidate.URL
	}
	if current.HeadingPath == "" {
		current.HeadingPath = candidate.HeadingPath
	}
	if current.Content == "" {
		current.Content = candidate.Content
	}
	if current.ArticleID == "" {
		current.ArticleID = candidate.ArticleID
	}
	return current
}

func trimHits(hits []domain.SearchHit, limit int) []domain.SearchHit {
	if limit <= 0 || len(hits) <= limit {
		return hits
	}
	return hits[:limit]
}
