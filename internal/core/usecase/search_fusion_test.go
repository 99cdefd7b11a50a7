package usecase

import (
	"math"
	"testing"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

func hit(id string) domain.SearchHit {
	return domain.SearchHit{ID: id, Title: "title " + id, Content: "content " + id}
}

func TestFuseHitsWorkedExample(t *testing.T) {
	// A is ranked 1 dense / 2 sparse, B is 2 dense / 1 sparse: identical
	// scores. C and D appear once each at rank 3.
	vector := []domain.SearchHit{hit("A"), hit("B"), hit("C")}
	lexical := []domain.SearchHit{hit("B"), hit("A"), hit("D")}

	fused := fuseHits(vector, lexical, 60)
	if len(fused) != 4 {
		t.Fatalf("got %d fused hits, want 4", len(fused))
	}

	wantOrder := []string{"A", "B", "C", "D"}
	for i, want := range wantOrder {
		if fused[i].ID != want {
			t.Fatalf("position %d = %s, want %s (full order %v)", i, fused[i].ID, want, ids(fused))
		}
	}

	wantAB := 1.0/61 + 1.0/62
	if diff := math.Abs(fused[0].Score - wantAB); diff > 1e-12 {
		t.Errorf("score(A) = %v, want %v", fused[0].Score, wantAB)
	}
	if fused[0].Score != fused[1].Score {
		t.Errorf("A and B must tie: %v vs %v", fused[0].Score, fused[1].Score)
	}
	wantC := 1.0 / 63
	if diff := math.Abs(fused[2].Score - wantC); diff > 1e-12 {
		t.Errorf("score(C) = %v, want %v", fused[2].Score, wantC)
	}
	for _, f := range fused {
		if f.Source != domain.SourceFused {
			t.Errorf("hit %s source = %q, want %q", f.ID, f.Source, domain.SourceFused)
		}
	}
}

func TestFuseHitsTieBreakIsFirstSeen(t *testing.T) {
	// C and D tie at 1/63 each; C entered via the first list, so C wins.
	vector := []domain.SearchHit{hit("X"), hit("Y"), hit("C")}
	lexical := []domain.SearchHit{hit("Y"), hit("X"), hit("D")}

	fused := fuseHits(vector, lexical, 60)
	got := ids(fused)
	if got[2] != "C" || got[3] != "D" {
		t.Fatalf("tie broke wrong: %v", got)
	}
}

func TestFuseHitsSingleList(t *testing.T) {
	lexical := []domain.SearchHit{hit("A"), hit("B")}
	fused := fuseHits(nil, lexical, 60)

	if len(fused) != 2 || fused[0].ID != "A" || fused[1].ID != "B" {
		t.Fatalf("single-list fusion must preserve order, got %v", ids(fused))
	}
	if fused[0].Score <= fused[1].Score {
		t.Errorf("rank 1 must outscore rank 2: %v vs %v", fused[0].Score, fused[1].Score)
	}
}

func TestFuseHitsMergesFields(t *testing.T) {
	chunkHit := domain.SearchHit{ID: "A", HeadingPath: "Billing > Refunds", Content: "chunk text"}
	articleHit := domain.SearchHit{ID: "A", Title: "Refund policy", URL: "/a/refund-policy", Content: "summary"}

	fused := fuseHits([]domain.SearchHit{chunkHit}, []domain.SearchHit{articleHit}, 60)
	if len(fused) != 1 {
		t.Fatalf("duplicate id must collapse, got %d hits", len(fused))
	}
	merged := fused[0]
	if merged.HeadingPath != "Billing > Refunds" {
		t.Errorf("lost heading path: %q", merged.HeadingPath)
	}
	if merged.Title != "Refund policy" || merged.URL != "/a/refund-policy" {
		t.Errorf("did not backfill article fields: %+v", merged)
	}
	if merged.Content != "chunk text" {
		t.Errorf("first-seen content must win, got %q", merged.Content)
	}
}

func TestFuseHitsBetterRankNeverLowersScore(t *testing.T) {
	// Move the same hit up one dense rank at a time against a fixed sparse
	// list; its fused score must strictly grow at every step.
	lexical := []domain.SearchHit{hit("noise-1"), hit("target"), hit("noise-2")}

	fusedScore := func(denseRank int) float64 {
		vector := make([]domain.SearchHit, 0, 5)
		for i := 1; i <= 5; i++ {
			if i == denseRank {
				vector = append(vector, hit("target"))
				continue
			}
			vector = append(vector, hit("filler-"+string(rune('a'+i))))
		}
		for _, f := range fuseHits(vector, lexical, 60) {
			if f.ID == "target" {
				return f.Score
			}
		}
		t.Fatalf("target missing from fusion at dense rank %d", denseRank)
		return 0
	}

	prev := fusedScore(5)
	for denseRank := 4; denseRank >= 1; denseRank-- {
		score := fusedScore(denseRank)
		if score <= prev {
			t.Fatalf("dense rank %d scored %v, not above rank %d's %v", denseRank, score, denseRank+1, prev)
		}
		prev = score
	}
}

func TestFuseHitsEmptyInputs(t *testing.T) {
	if fused := fuseHits(nil, nil, 60); len(fused) != 0 {
		t.Fatalf("fusing nothing produced %d hits", len(fused))
	}
}

func TestTrimHits(t *testing.T) {
	hits := []domain.SearchHit{hit("A"), hit("B"), hit("C")}
	if got := trimHits(hits, 2); len(got) != 2 {
		t.Errorf("trim to 2 gave %d", len(got))
	}
	if got := trimHits(hits, 10); len(got) != 3 {
		t.Errorf("trim above length gave %d", len(got))
	}
}

func ids(hits []domain.SearchHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}
