package retrieval

import (
	"strings"

	"github.com/hbollon/go-edlib"
)

// ContextSeparator joins chunk texts into the context block handed to the
// answer generator. The format matches the corpus prompt layout.
const ContextSeparator = "\n\n---\n\n"

// Context assembles the candidate texts into a single context string in
// final ranking order.
func (r *Result) Context() string {
	return strings.Join(r.Texts(), ContextSeparator)
}

// dropNearDuplicates removes candidates whose text is nearly identical to an
// earlier (higher-ranked) candidate. Adjacent chunks overlap by design, so a
// query can pull in several copies of the same passage; feeding those to the
// generator wastes its context window.
//
// Similarity is bigram cosine over the raw texts. A threshold <= 0 disables
// filtering. Order is preserved.
func dropNearDuplicates(candidates []RerankedCandidate, threshold float64) []RerankedCandidate {
	if threshold <= 0 || len(candidates) < 2 {
		return candidates
	}

	kept := make([]RerankedCandidate, 0, len(candidates))
	for _, cand := range candidates {
		duplicate := false
		for _, k := range kept {
			if float64(edlib.CosineSimilarity(cand.Text, k.Text, 2)) >= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, cand)
		}
	}
	return kept
}
