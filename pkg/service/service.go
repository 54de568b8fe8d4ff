// Package service assembles a retrieval pipeline from configuration: it
// picks the embedder provider, vector store backend and optional reranker,
// and owns their lifecycles.
package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/wayfind-ai/go-wayfind/pkg/config"
	"github.com/wayfind-ai/go-wayfind/pkg/embed/embedcache"
	"github.com/wayfind-ai/go-wayfind/pkg/embed/gemini"
	"github.com/wayfind-ai/go-wayfind/pkg/embed/ollama"
	"github.com/wayfind-ai/go-wayfind/pkg/embed/openai"
	"github.com/wayfind-ai/go-wayfind/pkg/rerank/tei"
	"github.com/wayfind-ai/go-wayfind/pkg/retrieval"
	"github.com/wayfind-ai/go-wayfind/pkg/retrieval/memory"
	"github.com/wayfind-ai/go-wayfind/pkg/retrieval/pgvector"
	"github.com/wayfind-ai/go-wayfind/pkg/retrieval/qdrant"
)

// Service bundles a configured pipeline with the resources behind it.
type Service struct {
	Pipeline *retrieval.Pipeline
	Log      zerolog.Logger

	store  retrieval.VectorStore
	closer []func() error
}

// New builds a Service from cfg. Registerer may be nil.
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*Service, error) {
	log := newLogger(cfg.Log)

	svc := &Service{Log: log}

	embedder, model, err := svc.buildEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, err
	}

	if cfg.Embedder.CacheDir != "" {
		cached, err := embedcache.New(embedder, model, cfg.Embedder.CacheDir)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.closer = append(svc.closer, cached.Close)
		embedder = cached
	}

	store, err := svc.buildStore(ctx, cfg.Store)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.store = store
	svc.closer = append(svc.closer, store.Close)

	var reranker retrieval.Reranker
	if cfg.Reranker.Enabled {
		reranker, err = tei.New(&tei.Config{BaseURL: cfg.Reranker.URL, Model: cfg.Reranker.Model})
		if err != nil {
			svc.Close()
			return nil, err
		}
	}

	pipeline, err := retrieval.New(retrieval.Config{
		Embedder:        embedder,
		Store:           store,
		Reranker:        reranker,
		Logger:          &log,
		Registerer:      reg,
		ChunkSize:       cfg.Retrieval.ChunkSize,
		ChunkOverlap:    cfg.Retrieval.ChunkOverlap,
		TopK:            cfg.Retrieval.TopK,
		KeepTopN:        cfg.Retrieval.KeepTopN,
		CallTimeout:     cfg.Retrieval.CallTimeout,
		MaxRetries:      cfg.Retrieval.MaxRetries,
		DedupeThreshold: cfg.Retrieval.DedupeThreshold,
	})
	if err != nil {
		svc.Close()
		return nil, err
	}

	svc.Pipeline = pipeline
	return svc, nil
}

// Health checks the backing store.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

// Close releases every resource the service opened, in reverse order.
func (s *Service) Close() error {
	var firstErr error
	for i := len(s.closer) - 1; i >= 0; i-- {
		if err := s.closer[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) buildEmbedder(ctx context.Context, cfg config.EmbedderConfig) (retrieval.Embedder, string, error) {
	switch cfg.Provider {
	case config.EmbedderOpenAI:
		e, err := openai.New(&openai.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, "", err
		}
		return e, e.Model(), nil
	case config.EmbedderOllama:
		e, err := ollama.New(&ollama.Config{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, "", err
		}
		return e, e.Model(), nil
	case config.EmbedderGemini:
		e, err := gemini.New(ctx, &gemini.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, "", err
		}
		return e, e.Model(), nil
	}
	return nil, "", fmt.Errorf("unknown embedder provider %q", cfg.Provider)
}

func (s *Service) buildStore(ctx context.Context, cfg config.StoreConfig) (retrieval.VectorStore, error) {
	switch cfg.Backend {
	case config.StoreQdrant:
		return qdrant.New(&qdrant.Config{URL: cfg.URL, APIKey: cfg.APIKey})
	case config.StorePGVector:
		return pgvector.New(ctx, &pgvector.Config{ConnectionString: cfg.ConnectionString})
	case config.StoreMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
