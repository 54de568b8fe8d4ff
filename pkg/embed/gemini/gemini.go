// Package gemini provides a retrieval.Embedder backed by Google's Gemini
// embedding models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/wayfind-ai/go-wayfind/pkg/retrieval"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-embedding-001"

// DefaultDimensions is the recommended output size for gemini-embedding-001.
const DefaultDimensions = 768

// Embedder implements retrieval.Embedder for Gemini.
type Embedder struct {
	client *genai.Client
	model  string
	dims   int
}

// Config holds Gemini embedder configuration.
type Config struct {
	// Required. API key for Gemini authentication. Falls back to the
	// GOOGLE_API_KEY environment variable.
	APIKey string

	// Optional. Embedding model. Defaults to gemini-embedding-001.
	Model string

	// Optional. Output dimensionality, requested from the API via
	// output_dimensionality. Defaults to 768.
	Dimensions int
}

// New creates a Gemini embedder.
func New(ctx context.Context, config *Config) (*Embedder, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY environment variable not set or provided in config")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	dims := config.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	return &Embedder{client: client, model: model, dims: dims}, nil
}

// Embed encodes a single text.
func (e *Embedder) Embed(ctx context.Context, text string) (retrieval.EmbeddingVector, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch encodes texts in one request. The API returns one embedding per
// content in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]retrieval.EmbeddingVector, error) {
	if len(texts) == 0 {
		return nil, retrieval.NewInputError("texts are required", retrieval.ErrEmptyInput)
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	dims := int32(e.dims)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embeddings: got %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([]retrieval.EmbeddingVector, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) != e.dims {
			return nil, fmt.Errorf("gemini embeddings: vector %d has unexpected dimensionality", i)
		}
		vectors[i] = retrieval.EmbeddingVector(emb.Values)
	}
	return vectors, nil
}

// Dimensions returns the configured output dimensionality.
func (e *Embedder) Dimensions() int { return e.dims }

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// classify maps retryable API failures to transient errors.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return &retrieval.TransientError{Op: "gemini embeddings", Err: err}
		}
		return fmt.Errorf("gemini embeddings: %w", err)
	}
	return &retrieval.TransientError{Op: "gemini embeddings", Err: err}
}
