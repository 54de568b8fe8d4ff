// Package openai provides a retrieval.Embedder backed by OpenAI's
// embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/wayfind-ai/go-wayfind/pkg/retrieval"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.EmbeddingModelTextEmbedding3Small

// defaultDimensions maps known embedding models to their output size.
var defaultDimensions = map[openai.EmbeddingModel]int{
	openai.EmbeddingModelTextEmbedding3Small: 1536,
	openai.EmbeddingModelTextEmbedding3Large: 3072,
	openai.EmbeddingModelTextEmbeddingAda002: 1536,
}

// Embedder implements retrieval.Embedder for OpenAI.
type Embedder struct {
	client client
	model  openai.EmbeddingModel
	dims   int
}

// client is the slice of the OpenAI SDK the embedder uses. Narrowed for
// httptest-free unit testing.
type client interface {
	embed(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error)
}

type sdkClient struct{ c *openai.Client }

func (s sdkClient) embed(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error) {
	return s.c.Embeddings.New(ctx, params)
}

// Config holds OpenAI embedder configuration.
type Config struct {
	// Required. API key for OpenAI authentication. Falls back to the
	// OPENAI_API_KEY environment variable.
	APIKey string

	// Optional. Base URL for OpenAI-compatible endpoints.
	BaseURL string

	// Optional. Embedding model. Defaults to text-embedding-3-small.
	Model string

	// Optional. Output dimensionality. Defaults to the model's native size;
	// text-embedding-3 models accept reduced dimensions.
	Dimensions int
}

// New creates an OpenAI embedder.
//
// Example:
//
//	embedder, err := openai.New(&openai.Config{APIKey: key})
func New(config *Config) (*Embedder, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set or provided in config")
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(config.BaseURL))
	}

	model := openai.EmbeddingModel(config.Model)
	if model == "" {
		model = DefaultModel
	}

	dims := config.Dimensions
	if dims <= 0 {
		dims = defaultDimensions[model]
	}
	if dims <= 0 {
		return nil, fmt.Errorf("unknown embedding model %q: set Dimensions explicitly", model)
	}

	openaiClient := openai.NewClient(clientOptions...)

	return &Embedder{
		client: sdkClient{c: &openaiClient},
		model:  model,
		dims:   dims,
	}, nil
}

// Embed encodes a single text.
func (e *Embedder) Embed(ctx context.Context, text string) (retrieval.EmbeddingVector, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch encodes texts in one API call. The i-th vector corresponds to
// the i-th text: the API reports an index per datum and vectors are placed
// by it, not by response order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]retrieval.EmbeddingVector, error) {
	if len(texts) == 0 {
		return nil, retrieval.NewInputError("texts are required", retrieval.ErrEmptyInput)
	}

	params := openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dims != defaultDimensions[e.model] {
		params.Dimensions = openai.Int(int64(e.dims))
	}

	resp, err := e.client.embed(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([]retrieval.EmbeddingVector, len(texts))
	for _, datum := range resp.Data {
		if datum.Index < 0 || int(datum.Index) >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", datum.Index)
		}
		vec := make(retrieval.EmbeddingVector, len(datum.Embedding))
		for i, v := range datum.Embedding {
			vec[i] = float32(v)
		}
		vectors[datum.Index] = vec
	}
	return vectors, nil
}

// Dimensions returns the configured output dimensionality.
func (e *Embedder) Dimensions() int { return e.dims }

// Model returns the embedding model name.
func (e *Embedder) Model() string { return string(e.model) }

// classify maps retryable API failures to transient errors: rate limits,
// server errors and network-level failures.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return &retrieval.TransientError{Op: "openai embeddings", Err: err}
		}
		return fmt.Errorf("openai embeddings: %w", err)
	}
	// No structured API error means the request never completed.
	return &retrieval.TransientError{Op: "openai embeddings", Err: err}
}
