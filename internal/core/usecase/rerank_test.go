package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

func TestApplyRerankUnavailableFallsBack(t *testing.T) {
	reranker := &fakeReranker{available: false}
	uc := newTestSearch(&fakeVectorSearcher{}, &fakeLexicalSearcher{}, reranker, nil)

	fused := []domain.SearchHit{hit("A"), hit("B")}
	got := uc.applyRerank(context.Background(), "help_center", "q", fused, 2)
	if len(got) != 2 || got[0].ID != "A" || got[1].ID != "B" {
		t.Fatalf("unavailable reranker must return fused order untouched, got %v", ids(got))
	}
	if reranker.gotCandidates != nil {
		t.Error("reranker must not be called when unavailable")
	}
}

func TestApplyRerankErrorFallsBack(t *testing.T) {
	reranker := &fakeReranker{available: true, err: errors.New("rerank service down")}
	metrics := newRecordingMetrics()
	uc := newTestSearch(&fakeVectorSearcher{}, &fakeLexicalSearcher{}, reranker, metrics)

	fused := []domain.SearchHit{hit("A"), hit("B"), hit("C")}
	got := uc.applyRerank(context.Background(), "help_center", "q", fused, 2)
	if len(got) != 3 || got[0].ID != "A" {
		t.Fatalf("rerank error must fall back to fused order, got %v", ids(got))
	}
	if metrics.failureCount("rerank") != 1 {
		t.Error("rerank failure not recorded")
	}
}

func TestApplyRerankEmptyResultFallsBack(t *testing.T) {
	reranker := &fakeReranker{available: true, items: nil}
	uc := newTestSearch(&fakeVectorSearcher{}, &fakeLexicalSearcher{}, reranker, nil)

	fused := []domain.SearchHit{hit("A")}
	got := uc.applyRerank(context.Background(), "help_center", "q", fused, 1)
	if len(got) != 1 || got[0].ID != "A" {
		t.Fatalf("empty rerank result must fall back, got %v", ids(got))
	}
}

func TestApplyRerankSendsBoundedHead(t *testing.T) {
	reranker := &fakeReranker{available: true, items: []domain.RerankedItem{{Index: 0, Relevance: 1}}}
	uc := newTestSearch(&fakeVectorSearcher{}, &fakeLexicalSearcher{}, reranker, nil)

	fused := make([]domain.SearchHit, 20)
	for i := range fused {
		fused[i] = hit(string(rune('a' + i)))
	}
	uc.applyRerank(context.Background(), "help_center", "q", fused, 3)
	// Only 2*topK candidates go to the cross-encoder.
	if len(reranker.gotCandidates) != 6 {
		t.Fatalf("sent %d candidates, want 6", len(reranker.gotCandidates))
	}
}

func TestApplyRerankTruncatesLongContent(t *testing.T) {
	reranker := &fakeReranker{available: true, items: []domain.RerankedItem{{Index: 0, Relevance: 1}}}
	uc := newTestSearch(&fakeVectorSearcher{}, &fakeLexicalSearcher{}, reranker, nil)

	long := hit("A")
	long.Content = strings.Repeat("x", rerankCharBudget+500)
	uc.applyRerank(context.Background(), "help_center", "q", []domain.SearchHit{long}, 1)

	if got := len([]rune(reranker.gotCandidates[0].Text)); got != rerankCharBudget {
		t.Fatalf("candidate text length = %d, want %d", got, rerankCharBudget)
	}
}

func TestApplyRerankIgnoresOutOfRangeIndexes(t *testing.T) {
	reranker := &fakeReranker{available: true, items: []domain.RerankedItem{
		{Index: 7, Relevance: 1},
		{Index: 0, Relevance: 0.5},
	}}
	uc := newTestSearch(&fakeVectorSearcher{}, &fakeLexicalSearcher{}, reranker, nil)

	fused := []domain.SearchHit{hit("A"), hit("B")}
	got := uc.applyRerank(context.Background(), "help_center", "q", fused, 2)
	if len(got) != 1 || got[0].ID != "A" {
		t.Fatalf("out-of-range index must be dropped, got %v", ids(got))
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 3); got != "hél" {
		t.Errorf("truncateRunes = %q", got)
	}
	if got := truncateRunes("hi", 10); got != "hi" {
		t.Errorf("under-limit string changed: %q", got)
	}
}
