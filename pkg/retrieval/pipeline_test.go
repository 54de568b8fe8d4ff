package retrieval_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wayfind-ai/go-wayfind/pkg/retrieval"
	"github.com/wayfind-ai/go-wayfind/pkg/retrieval/memory"
)

// keywordEmbedder maps texts onto fixed axes by keyword, so similarity
// behaves predictably: texts about the same place land on the same axis.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, text string) (retrieval.EmbeddingVector, error) {
	vec := make(retrieval.EmbeddingVector, 4)
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "hanoi"):
		vec[0] = 1
	case strings.Contains(lower, "lisbon"):
		vec[1] = 1
	case strings.Contains(lower, "kyoto"):
		vec[2] = 1
	default:
		vec[3] = 1
	}
	return vec, nil
}

func (k keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]retrieval.EmbeddingVector, error) {
	vectors := make([]retrieval.EmbeddingVector, len(texts))
	for i, text := range texts {
		vec, err := k.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (keywordEmbedder) Dimensions() int { return 4 }

// scoreByLength reranks candidates by text length, shortest first. Arbitrary
// but deterministic, and clearly different from first-stage order.
type scoreByLength struct{}

func (scoreByLength) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	scores := make([]float64, len(texts))
	for i, text := range texts {
		scores[i] = -float64(len(text))
	}
	return scores, nil
}

func (scoreByLength) Model() string { return "score-by-length" }

// failingReranker always fails hard.
type failingReranker struct{}

func (failingReranker) Score(context.Context, string, []string) ([]float64, error) {
	return nil, errors.New("model crashed")
}

func (failingReranker) Model() string { return "broken" }

func newTestPipeline(t *testing.T, cfg retrieval.Config) (*retrieval.Pipeline, *memory.Store) {
	t.Helper()

	store := memory.New()
	if cfg.Embedder == nil {
		cfg.Embedder = keywordEmbedder{}
	}
	cfg.Store = store

	pipeline, err := retrieval.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return pipeline, store
}

func mustTenant(t *testing.T, id string) retrieval.Tenant {
	t.Helper()
	tenant, err := retrieval.NewTenant(id)
	if err != nil {
		t.Fatalf("NewTenant failed: %v", err)
	}
	return tenant
}

func TestIngestAndQuery(t *testing.T) {
	t.Parallel()

	pipeline, _ := newTestPipeline(t, retrieval.Config{})
	tenant := mustTenant(t, "traveler1")
	ctx := context.Background()

	docs := map[string]string{
		"guide-hanoi":  "Hanoi is famous for pho and bun cha in the Old Quarter.",
		"guide-lisbon": "Lisbon is known for pasteis de nata and its trams.",
	}
	for id, text := range docs {
		meta := retrieval.DocumentMeta{Title: id}
		if err := pipeline.Ingest(ctx, tenant, id, text, meta); err != nil {
			t.Fatalf("Ingest %s failed: %v", id, err)
		}
	}

	result, err := pipeline.Query(ctx, tenant, "street food in Hanoi")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if result.Empty() {
		t.Fatal("Expected candidates, got empty result")
	}
	if result.Reranked {
		t.Error("Expected no rerank stage without a reranker")
	}
	if top := result.Candidates[0]; top.DocumentID != "guide-hanoi" {
		t.Errorf("Expected guide-hanoi on top, got %q (score %f)", top.DocumentID, top.Score)
	}
	if result.Candidates[0].Title != "guide-hanoi" {
		t.Errorf("Expected title metadata on the candidate, got %q", result.Candidates[0].Title)
	}
}

func TestQueryEmptyTenant(t *testing.T) {
	t.Parallel()

	pipeline, _ := newTestPipeline(t, retrieval.Config{})
	tenant := mustTenant(t, "nobody")

	result, err := pipeline.Query(context.Background(), tenant, "anything at all")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !result.Empty() {
		t.Errorf("Expected empty result for a tenant with no documents, got %d candidates", len(result.Candidates))
	}
}

func TestQueryEmptyInput(t *testing.T) {
	t.Parallel()

	pipeline, _ := newTestPipeline(t, retrieval.Config{})
	tenant := mustTenant(t, "traveler1")

	_, err := pipeline.Query(context.Background(), tenant, "   ")
	if !retrieval.IsInputError(err) {
		t.Errorf("Expected input error for blank query, got %v", err)
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	t.Parallel()

	pipeline, _ := newTestPipeline(t, retrieval.Config{})
	tenant := mustTenant(t, "traveler1")

	err := pipeline.Ingest(context.Background(), tenant, "doc1", "  \n ", retrieval.DocumentMeta{})
	if !retrieval.IsInputError(err) {
		t.Errorf("Expected input error for empty document, got %v", err)
	}
	if !errors.Is(err, retrieval.ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput in chain, got %v", err)
	}

	err = pipeline.Ingest(context.Background(), tenant, "", "some text", retrieval.DocumentMeta{})
	if !retrieval.IsInputError(err) {
		t.Errorf("Expected input error for missing document id, got %v", err)
	}
}

func TestReingestOverwrites(t *testing.T) {
	t.Parallel()

	pipeline, store := newTestPipeline(t, retrieval.Config{})
	tenant := mustTenant(t, "traveler1")
	ctx := context.Background()

	text := "Hanoi has centuries-old architecture and vibrant street food."
	for i := 0; i < 3; i++ {
		if err := pipeline.Ingest(ctx, tenant, "guide-hanoi", text, retrieval.DocumentMeta{}); err != nil {
			t.Fatalf("Ingest round %d failed: %v", i, err)
		}
	}

	// One chunk per ingest, same point id each time: the store must hold
	// exactly one point, not three.
	if n := store.Len(tenant.Collection()); n != 1 {
		t.Errorf("Expected 1 point after re-ingest, got %d", n)
	}
}

func TestTenantIsolation(t *testing.T) {
	t.Parallel()

	pipeline, _ := newTestPipeline(t, retrieval.Config{})
	ctx := context.Background()
	alice := mustTenant(t, "alice")
	bob := mustTenant(t, "bob")

	err := pipeline.Ingest(ctx, alice, "secret-plan", "A secret trip to Hanoi in spring.", retrieval.DocumentMeta{})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	result, err := pipeline.Query(ctx, bob, "trip to Hanoi")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !result.Empty() {
		t.Errorf("Expected bob to see nothing of alice's documents, got %d candidates", len(result.Candidates))
	}
}

func TestDeleteDocument(t *testing.T) {
	t.Parallel()

	pipeline, store := newTestPipeline(t, retrieval.Config{})
	tenant := mustTenant(t, "traveler1")
	ctx := context.Background()

	if err := pipeline.Ingest(ctx, tenant, "guide-hanoi", "Hanoi street food guide.", retrieval.DocumentMeta{}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if err := pipeline.Ingest(ctx, tenant, "guide-lisbon", "Lisbon tram and tart guide.", retrieval.DocumentMeta{}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if err := pipeline.DeleteDocument(ctx, tenant, "guide-hanoi"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}

	// Only the other document's chunks remain.
	if n := store.Len(tenant.Collection()); n != 1 {
		t.Errorf("Expected 1 point after delete, got %d", n)
	}

	result, err := pipeline.Query(ctx, tenant, "Hanoi food")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	for _, c := range result.Candidates {
		if c.DocumentID == "guide-hanoi" {
			t.Errorf("Deleted document still retrievable: %+v", c)
		}
	}

	// Deleting a document that was never ingested is success.
	if err := pipeline.DeleteDocument(ctx, tenant, "never-existed"); err != nil {
		t.Errorf("Expected deleting an unknown document to succeed, got %v", err)
	}
}

func TestQueryWithReranker(t *testing.T) {
	t.Parallel()

	pipeline, _ := newTestPipeline(t, retrieval.Config{
		Reranker: scoreByLength{},
		KeepTopN: 2,
	})
	tenant := mustTenant(t, "traveler1")
	ctx := context.Background()

	docs := map[string]string{
		"h-long":   "Hanoi has a very long description of its many wonderful food streets.",
		"h-short":  "Hanoi pho.",
		"h-medium": "Hanoi street food is excellent.",
	}
	for id, text := range docs {
		if err := pipeline.Ingest(ctx, tenant, id, text, retrieval.DocumentMeta{}); err != nil {
			t.Fatalf("Ingest %s failed: %v", id, err)
		}
	}

	result, err := pipeline.Query(ctx, tenant, "hanoi")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !result.Reranked {
		t.Fatal("Expected reranked result")
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("Expected keep_top_n=2 candidates, got %d", len(result.Candidates))
	}
	// scoreByLength ranks shortest text first.
	if result.Candidates[0].DocumentID != "h-short" {
		t.Errorf("Expected h-short first, got %q", result.Candidates[0].DocumentID)
	}
	if result.Candidates[1].DocumentID != "h-medium" {
		t.Errorf("Expected h-medium second, got %q", result.Candidates[1].DocumentID)
	}
}

func TestQueryRerankerFailure(t *testing.T) {
	t.Parallel()

	pipeline, _ := newTestPipeline(t, retrieval.Config{Reranker: failingReranker{}})
	tenant := mustTenant(t, "traveler1")
	ctx := context.Background()

	if err := pipeline.Ingest(ctx, tenant, "guide-hanoi", "Hanoi guide.", retrieval.DocumentMeta{}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	_, err := pipeline.Query(ctx, tenant, "hanoi")
	if err == nil {
		t.Fatal("Expected rerank failure to propagate")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("Expected model name in error, got %v", err)
	}
}

// countingEmbedder breaks the batch contract on purpose.
type countingEmbedder struct {
	keywordEmbedder
}

func (c countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]retrieval.EmbeddingVector, error) {
	vectors, err := c.keywordEmbedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	return vectors[:len(vectors)-1], nil
}

func TestIngestRejectsMisalignedBatch(t *testing.T) {
	t.Parallel()

	pipeline, store := newTestPipeline(t, retrieval.Config{Embedder: countingEmbedder{}})
	tenant := mustTenant(t, "traveler1")

	text := "First paragraph about Hanoi.\n\n" + strings.Repeat("More Hanoi detail. ", 60)
	err := pipeline.Ingest(context.Background(), tenant, "guide", text, retrieval.DocumentMeta{})
	if err == nil {
		t.Fatal("Expected error for misaligned embedding batch")
	}
	// Nothing may be written when the batch is rejected.
	if n := store.Len(tenant.Collection()); n != 0 {
		t.Errorf("Expected no points after failed ingest, got %d", n)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  retrieval.Config
	}{
		{name: "missing embedder", cfg: retrieval.Config{Store: memory.New()}},
		{name: "missing store", cfg: retrieval.Config{Embedder: keywordEmbedder{}}},
		{
			name: "overlap not smaller than chunk size",
			cfg: retrieval.Config{
				Embedder:     keywordEmbedder{},
				Store:        memory.New(),
				ChunkSize:    100,
				ChunkOverlap: 100,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := retrieval.New(tt.cfg); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}
