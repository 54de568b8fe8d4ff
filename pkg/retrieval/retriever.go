package retrieval

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Retriever turns a query into first-stage candidates: it embeds the query,
// searches the tenant's collection and decodes hit payloads.
type Retriever struct {
	embedder Embedder
	store    VectorStore
	log      zerolog.Logger
}

// NewRetriever wires an embedder and a vector store. The logger records
// skipped corrupt points; pass zerolog.Nop() to silence it.
func NewRetriever(embedder Embedder, store VectorStore, log zerolog.Logger) *Retriever {
	return &Retriever{embedder: embedder, store: store, log: log}
}

// Retrieve returns up to topK candidates for query within the tenant scope,
// ordered by first-stage similarity score descending.
//
// Hits whose payload is missing the text field are treated as corrupt data:
// logged, counted and skipped, never fatal. An empty result is a valid
// outcome (a tenant with no documents) and is distinct from an error.
func (r *Retriever) Retrieve(ctx context.Context, tenant Tenant, query string, topK int) ([]Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewInputError("query", ErrEmptyInput)
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.store.Search(ctx, tenant.Collection(), vector, topK)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		cand, err := decodeCandidate(hit)
		if err != nil {
			r.log.Warn().
				Str("tenant", tenant.ID()).
				Str("point_id", hit.ID).
				Err(err).
				Msg("skipping corrupt point")
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// decodeCandidate maps a search hit payload into a Candidate. A missing or
// empty text field makes the point corrupt.
func decodeCandidate(hit ScoredPoint) (Candidate, error) {
	text, ok := hit.Payload[PayloadText].(string)
	if !ok || text == "" {
		return Candidate{}, &CorruptPayloadError{PointID: hit.ID, Field: PayloadText}
	}

	cand := Candidate{
		Text:  text,
		Score: hit.Score,
	}
	if id, ok := hit.Payload[PayloadDocumentID].(string); ok {
		cand.DocumentID = id
	}
	cand.ChunkIndex = payloadInt(hit.Payload[PayloadChunkIndex])
	if title, ok := hit.Payload[PayloadTitle].(string); ok {
		cand.Title = title
	}
	if url, ok := hit.Payload[PayloadURL].(string); ok {
		cand.URL = url
	}
	return cand, nil
}

// payloadInt tolerates the numeric representations different stores round-trip
// integers through (JSON float64, protobuf int64).
func payloadInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
