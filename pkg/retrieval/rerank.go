package retrieval

import (
	"context"
	"sort"
)

// Reranker re-scores (query, passage) pairs with a cross-encoder style
// relevance model.
//
// First-stage vector retrieval is fast but approximate at scale; a
// cross-encoder is accurate but too expensive to run over a full collection.
// Stage one therefore narrows the corpus to a small candidate set and the
// reranker re-scores only that set. Implementations live under pkg/rerank.
type Reranker interface {
	// Score returns one relevance score per text, in input order. The
	// scores are computed from the raw text pairs and are independent of
	// any first-stage similarity score.
	Score(ctx context.Context, query string, texts []string) ([]float64, error)

	// Model returns the relevance model identifier for logging.
	Model() string
}

// RerankCandidates applies cross-encoder scores to first-stage candidates
// and returns the top keepTopN, ordered by rerank score descending.
//
// scores[i] belongs to candidates[i]. The sort is stable: ties keep the
// original first-stage order. If fewer candidates than keepTopN were
// supplied, all of them are returned reranked; keepTopN <= 0 keeps all.
func RerankCandidates(candidates []Candidate, scores []float64, keepTopN int) []RerankedCandidate {
	reranked := make([]RerankedCandidate, len(candidates))
	for i, c := range candidates {
		reranked[i] = RerankedCandidate{Candidate: c, RerankScore: scores[i]}
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})

	if keepTopN > 0 && len(reranked) > keepTopN {
		reranked = reranked[:keepTopN]
	}
	return reranked
}
