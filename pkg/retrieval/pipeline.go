package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/wayfind-ai/go-wayfind/pkg/chunk"
)

// Default pipeline parameters. Stage one casts a wide net; stage two keeps
// only what the generator can usefully consume.
const (
	DefaultTopK        = 20
	DefaultKeepTopN    = 10
	DefaultCallTimeout = 30 * time.Second
	DefaultMaxRetries  = 3
)

// Config assembles a Pipeline from injected dependencies.
//
// Embedder and Store are required. A nil Reranker disables the second stage:
// queries then return first-stage order. All remaining fields have working
// defaults.
type Config struct {
	// Embedder encodes chunks and queries. Required.
	Embedder Embedder

	// Store holds the tenant collections. Required.
	Store VectorStore

	// Reranker enables two-stage retrieval when non-nil.
	Reranker Reranker

	// Logger for structured pipeline logging. Defaults to a no-op logger.
	Logger *zerolog.Logger

	// Registerer receives the pipeline's prometheus collectors. Optional.
	Registerer prometheus.Registerer

	// ChunkSize and ChunkOverlap configure the splitter. Defaults: 1000/200.
	ChunkSize    int
	ChunkOverlap int

	// TopK is the first-stage candidate count. Default 20.
	TopK int

	// KeepTopN is how many candidates survive reranking. Default 10.
	KeepTopN int

	// CallTimeout bounds each external call (embedder inference, store
	// round-trip, rerank). Default 30s.
	CallTimeout time.Duration

	// MaxRetries bounds retries of transient backend failures. Default 3.
	MaxRetries uint64

	// DedupeThreshold drops retrieved chunks nearly identical to a higher
	// ranked one (bigram cosine similarity). Zero disables deduplication.
	DedupeThreshold float64
}

// Pipeline is the retrieval composition root.
//
// Ingestion: split -> batch embed -> upsert into the tenant collection.
// Query: embed -> vector search -> optional cross-encoder rerank -> ranked
// chunk texts for the external answer generator.
//
// Every call is synchronous and self-contained; concurrent use is safe
// because all store operations are idempotent and keyed deterministically.
type Pipeline struct {
	embedder  Embedder
	store     VectorStore
	reranker  Reranker
	splitter  *chunk.Splitter
	retriever *Retriever
	log       zerolog.Logger
	metrics   *pipelineMetrics

	topK            int
	keepTopN        int
	callTimeout     time.Duration
	maxRetries      uint64
	dedupeThreshold float64
}

// New validates cfg and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("retrieval: embedder is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("retrieval: vector store is required")
	}
	if cfg.Embedder.Dimensions() <= 0 {
		return nil, fmt.Errorf("retrieval: embedder declares invalid dimensionality %d", cfg.Embedder.Dimensions())
	}

	splitter, err := chunk.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	keepTopN := cfg.KeepTopN
	if keepTopN <= 0 {
		keepTopN = DefaultKeepTopN
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Pipeline{
		embedder:        cfg.Embedder,
		store:           cfg.Store,
		reranker:        cfg.Reranker,
		splitter:        splitter,
		retriever:       NewRetriever(cfg.Embedder, cfg.Store, log),
		log:             log,
		metrics:         newPipelineMetrics(cfg.Registerer),
		topK:            topK,
		keepTopN:        keepTopN,
		callTimeout:     callTimeout,
		maxRetries:      maxRetries,
		dedupeThreshold: cfg.DedupeThreshold,
	}, nil
}

// Ingest chunks, embeds and stores one document under the tenant scope.
//
// The operation is all-or-nothing per document: the whole batch is embedded
// before anything is written, and upsert is keyed by "{documentID}_{index}"
// so re-ingesting a document overwrites its previous points instead of
// appending. A failure aborts this document only; previously ingested
// documents in the collection are unaffected.
func (p *Pipeline) Ingest(ctx context.Context, tenant Tenant, documentID, text string, meta DocumentMeta) error {
	start := time.Now()

	if documentID == "" {
		return NewInputError("document id is required", nil)
	}
	chunks := p.splitter.SplitDocument(documentID, text)
	if len(chunks) == 0 {
		return NewInputError(fmt.Sprintf("document %s", documentID), ErrEmptyInput)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors []EmbeddingVector
	err := p.withRetry(ctx, func(callCtx context.Context) error {
		var embedErr error
		vectors, embedErr = p.embedder.EmbedBatch(callCtx, texts)
		return embedErr
	})
	if err != nil {
		return fmt.Errorf("embed document %s: %w", documentID, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed document %s: got %d vectors for %d chunks", documentID, len(vectors), len(chunks))
	}

	dims := p.embedder.Dimensions()
	points := make([]Point, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != dims {
			return &SchemaConflictError{Collection: tenant.Collection().Name(), Want: dims, Got: len(vectors[i])}
		}
		points[i] = Point{
			ID:      c.ID,
			Vector:  vectors[i],
			Payload: chunkPayload(c, meta),
		}
	}

	coll := tenant.Collection()
	err = p.withRetry(ctx, func(callCtx context.Context) error {
		return p.store.EnsureCollection(callCtx, coll, dims)
	})
	if err != nil {
		return fmt.Errorf("ensure collection %s: %w", coll.Name(), err)
	}

	err = p.withRetry(ctx, func(callCtx context.Context) error {
		return p.store.Upsert(callCtx, coll, points)
	})
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", documentID, err)
	}

	p.metrics.observeIngest(len(chunks), start)
	p.log.Info().
		Str("tenant", tenant.ID()).
		Str("document_id", documentID).
		Int("chunks", len(chunks)).
		Dur("elapsed", time.Since(start)).
		Msg("document ingested")
	return nil
}

// Query runs the retrieval path for one question under the tenant scope.
//
// Zero candidates yields an empty Result and no error, so the caller can
// short-circuit answer generation. With a reranker configured, the top-K
// first-stage candidates are re-scored and the best keep-top-N returned in
// rerank order; without one the first-stage order is returned as-is.
func (p *Pipeline) Query(ctx context.Context, tenant Tenant, query string) (*Result, error) {
	start := time.Now()

	var candidates []Candidate
	err := p.withRetry(ctx, func(callCtx context.Context) error {
		var retrieveErr error
		candidates, retrieveErr = p.retriever.Retrieve(callCtx, tenant, query, p.topK)
		return retrieveErr
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	result := &Result{Query: query}
	if len(candidates) == 0 {
		p.metrics.observeQuery(true, start)
		p.log.Debug().Str("tenant", tenant.ID()).Msg("no candidates for query")
		return result, nil
	}

	if p.reranker != nil {
		reranked, err := p.rerank(ctx, query, candidates)
		if err != nil {
			return nil, err
		}
		result.Candidates = reranked
		result.Reranked = true
	} else {
		result.Candidates = make([]RerankedCandidate, len(candidates))
		for i, c := range candidates {
			result.Candidates[i] = RerankedCandidate{Candidate: c}
		}
	}

	result.Candidates = dropNearDuplicates(result.Candidates, p.dedupeThreshold)

	p.metrics.observeQuery(false, start)
	p.log.Debug().
		Str("tenant", tenant.ID()).
		Int("candidates", len(result.Candidates)).
		Bool("reranked", result.Reranked).
		Dur("elapsed", time.Since(start)).
		Msg("query served")
	return result, nil
}

// DeleteDocument removes every chunk of the document from the tenant's
// collection. Deleting a document that was never ingested is success.
func (p *Pipeline) DeleteDocument(ctx context.Context, tenant Tenant, documentID string) error {
	if documentID == "" {
		return NewInputError("document id is required", nil)
	}

	err := p.withRetry(ctx, func(callCtx context.Context) error {
		return p.store.DeleteByFilter(callCtx, tenant.Collection(), map[string]any{
			PayloadDocumentID: documentID,
		})
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}

	p.log.Info().
		Str("tenant", tenant.ID()).
		Str("document_id", documentID).
		Msg("document deleted")
	return nil
}

// rerank re-scores candidates with the cross-encoder and keeps the top N.
func (p *Pipeline) rerank(ctx context.Context, query string, candidates []Candidate) ([]RerankedCandidate, error) {
	start := time.Now()

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	var scores []float64
	err := p.withRetry(ctx, func(callCtx context.Context) error {
		var scoreErr error
		scores, scoreErr = p.reranker.Score(callCtx, query, texts)
		return scoreErr
	})
	if err != nil {
		return nil, fmt.Errorf("rerank with %s: %w", p.reranker.Model(), err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("rerank with %s: got %d scores for %d candidates", p.reranker.Model(), len(scores), len(candidates))
	}

	p.metrics.rerankDuration.Observe(time.Since(start).Seconds())
	return RerankCandidates(candidates, scores, p.keepTopN), nil
}

// withRetry runs op under the per-call timeout, retrying transient backend
// failures with exponential backoff. Non-transient errors abort immediately.
// A timeout is retryable: the idempotent store operations leave no partial
// mutation behind.
func (p *Pipeline) withRetry(ctx context.Context, op func(context.Context) error) error {
	call := func() error {
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		defer cancel()

		err := op(callCtx)
		if err == nil {
			return nil
		}
		if IsTransient(err) && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.maxRetries), ctx)
	return backoff.Retry(call, policy)
}

// chunkPayload builds the stored payload for one chunk. Corpus metadata is
// only included when present.
func chunkPayload(c chunk.Chunk, meta DocumentMeta) map[string]any {
	payload := map[string]any{
		PayloadText:       c.Text,
		PayloadDocumentID: c.DocumentID,
		PayloadChunkIndex: c.Index,
	}
	if meta.Title != "" {
		payload[PayloadTitle] = meta.Title
	}
	if meta.URL != "" {
		payload[PayloadURL] = meta.URL
	}
	if meta.Time != "" {
		payload[PayloadTime] = meta.Time
	}
	return payload
}
