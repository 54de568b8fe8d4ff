// Package ollama provides a retrieval.Embedder backed by a local Ollama
// server, for running embedding models like nomic-embed-text without any
// external API.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/wayfind-ai/go-wayfind/pkg/retrieval"
)

// Embedder implements retrieval.Embedder for Ollama.
type Embedder struct {
	client *api.Client
	model  string
	dims   int
}

// Config holds Ollama embedder configuration.
type Config struct {
	// Optional. Ollama server host (defaults to localhost:11434 or the
	// OLLAMA_HOST env var).
	Host string

	// Required. Embedding model name, e.g. "nomic-embed-text".
	Model string

	// Required. Output dimensionality of the model, e.g. 768 for
	// nomic-embed-text. Vectors of any other size are rejected.
	Dimensions int
}

// New creates an Ollama embedder.
//
// Example:
//
//	embedder, err := ollama.New(&ollama.Config{
//	    Model:      "nomic-embed-text",
//	    Dimensions: 768,
//	})
func New(config *Config) (*Embedder, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	if config.Dimensions <= 0 {
		return nil, fmt.Errorf("ollama embedding dimensions are required")
	}

	var client *api.Client
	if config.Host == "" {
		// Use environment-based client (checks OLLAMA_HOST env var)
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create client from environment: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(config.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid host URL: %w", err)
		}
		client = api.NewClient(u, http.DefaultClient)
	}

	return &Embedder{
		client: client,
		model:  config.Model,
		dims:   config.Dimensions,
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

// EmbedBatch encodes texts in one request. Ollama returns embeddings in
// input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]retrieval.EmbeddingVector, error) {
	if len(texts) == 0 {
		return nil, retrieval.NewInputError("texts are required", retrieval.ErrEmptyInput)
	}

	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// The SDK surfaces connection failures and server errors the same
		// way; a local server restart is the common cause, so retry.
		return nil, &retrieval.TransientError{Op: "ollama embed", Err: err}
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([]retrieval.EmbeddingVector, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb) != e.dims {
			return nil, fmt.Errorf("ollama embed: model %s returned %d dimensions, expected %d", e.model, len(emb), e.dims)
		}
		vectors[i] = retrieval.EmbeddingVector(emb)
	}
	return vectors, nil
}

// Dimensions returns the configured output dimensionality.
func (e *Embedder) Dimensions() int { return e.dims }

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }
