// Package tei provides a retrieval.Reranker backed by a Hugging Face
// text-embeddings-inference server running a cross-encoder model such as
// BAAI/bge-reranker-base.
//
// Unlike the first-stage bi-encoder, the cross-encoder scores each
// (query, text) pair jointly, which is slower but considerably sharper; the
// pipeline therefore only sends it the first-stage candidates.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wayfind-ai/go-wayfind/pkg/retrieval"
)

// DefaultModel is the cross-encoder the corpus was tuned against.
const DefaultModel = "BAAI/bge-reranker-base"

// Reranker implements retrieval.Reranker against a TEI /rerank endpoint.
type Reranker struct {
	baseURL string
	model   string
	client  *http.Client
}

// Config holds TEI reranker configuration.
type Config struct {
	// Required. Base URL of the TEI server, e.g. "http://localhost:8080".
	BaseURL string

	// Optional. Model name, for logging only; the server decides which
	// model it serves. Defaults to BAAI/bge-reranker-base.
	Model string

	// Optional. HTTP client. Defaults to a client with a 60s timeout.
	HTTPClient *http.Client
}

// New creates a TEI reranker client.
func New(config *Config) (*Reranker, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("TEI base URL is required")
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	return &Reranker{baseURL: config.BaseURL, model: model, client: client}, nil
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one relevance score per text, in text order. The server
// responds sorted by score, so results are placed back by their index field.
func (r *Reranker) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, retrieval.NewInputError("texts are required", retrieval.ErrEmptyInput)
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("tei rerank: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tei rerank: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &retrieval.TransientError{Op: "tei rerank", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("tei rerank: server returned %d: %s", resp.StatusCode, msg)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, &retrieval.TransientError{Op: "tei rerank", Err: err}
		}
		return nil, err
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("tei rerank: decode response: %w", err)
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("tei rerank: got %d scores for %d texts", len(results), len(texts))
	}

	scores := make([]float64, len(texts))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(texts) {
			return nil, fmt.Errorf("tei rerank: index %d out of range", res.Index)
		}
		scores[res.Index] = res.Score
	}
	return scores, nil
}

// Model returns the configured model name.
func (r *Reranker) Model() string { return r.model }
