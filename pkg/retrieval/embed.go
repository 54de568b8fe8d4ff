package retrieval

import "context"

// Embedder maps text to fixed-dimensional dense vectors.
//
// Implementations must be deterministic for a fixed model version: the same
// input yields the same vector, which is what makes re-ingestion idempotent
// and embedding caches valid. Clients live under pkg/embed.
type Embedder interface {
	// Embed encodes a single text.
	Embed(ctx context.Context, text string) (EmbeddingVector, error)

	// EmbedBatch encodes texts in input order, one vector per text. A
	// failure for any element fails the whole batch: index alignment
	// between chunk and vector is a correctness invariant, so silently
	// dropping an item is never acceptable.
	EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingVector, error)

	// Dimensions returns the declared output dimensionality, used to
	// validate collection compatibility before any vector is stored.
	Dimensions() int
}
