// Package retrieval implements the retrieval core of a RAG pipeline:
// tenant-scoped vector storage, embedding-based candidate search, and an
// optional cross-encoder rerank stage.
//
// The package defines the contracts (VectorStore, Embedder, Reranker) and the
// composition root (Pipeline) that wires them together. Store adapters live
// in subpackages (qdrant, pgvector, memory); embedding clients live under
// pkg/embed. The pipeline produces ranked chunk texts for an external answer
// generator — it never calls the language model itself.
package retrieval

// EmbeddingVector is a fixed-length dense vector representation of text.
//
// Every vector stored in a given collection must have the length declared by
// the collection; mixing dimensionalities is a hard error, not a warning.
type EmbeddingVector []float32

// Payload field names shared by all store adapters.
const (
	PayloadText       = "text"
	PayloadDocumentID = "document_id"
	PayloadChunkIndex = "chunk_index"
	PayloadTitle      = "title"
	PayloadURL        = "url"
	PayloadTime       = "time"
)

// Point is an (id, vector, payload) triple handed to a vector store.
//
// The ID is the logical point key "{document_id}_{chunk_index}"; upserting
// the same ID again overwrites vector and payload in place. Once an upsert
// succeeds the store owns the point exclusively.
type Point struct {
	ID      string         `json:"id"`
	Vector  EmbeddingVector `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// ScoredPoint is a search hit: a stored point plus its similarity score.
type ScoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// DocumentMeta carries optional corpus metadata stored alongside each chunk
// and surfaced again on retrieval candidates.
type DocumentMeta struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
	Time  string `json:"time,omitempty"`
}

// Candidate is a first-stage retrieval result decoded from a search hit.
//
// Score is the vector store's native similarity score; candidate order by
// Score descending is preserved until a rerank stage (if any) replaces it.
type Candidate struct {
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title,omitempty"`
	URL        string  `json:"url,omitempty"`
	Score      float64 `json:"score"`
}

// RerankedCandidate is a Candidate with a second-stage relevance score.
//
// RerankScore is computed from the raw (query, text) pair by a cross-encoder
// model and is not a transformation of the first-stage Score, which is
// retained for inspection but no longer authoritative for ordering.
type RerankedCandidate struct {
	Candidate
	RerankScore float64 `json:"rerank_score"`
}

// Result is the outcome of a pipeline query.
//
// An empty candidate list is a valid terminal state (for example a tenant
// with no documents) and callers should short-circuit answer generation in
// that case; it is explicitly not an error. When Reranked is false the
// RerankScore of each candidate is zero and ordering is first-stage order.
type Result struct {
	Query      string              `json:"query"`
	Candidates []RerankedCandidate `json:"candidates"`
	Reranked   bool                `json:"reranked"`
}

// Empty reports whether the query matched no candidates.
func (r *Result) Empty() bool {
	return len(r.Candidates) == 0
}

// Texts returns the candidate chunk texts in final ranking order.
func (r *Result) Texts() []string {
	texts := make([]string, len(r.Candidates))
	for i, c := range r.Candidates {
		texts[i] = c.Text
	}
	return texts
}
