// Package config loads the retrieval service configuration from YAML with
// environment variable overrides. Secrets (API keys, connection strings)
// come from the environment only, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/wayfind-ai/go-wayfind/pkg/helpers"
)

// Supported embedder providers.
const (
	EmbedderOpenAI = "openai"
	EmbedderOllama = "ollama"
	EmbedderGemini = "gemini"
)

// Supported vector store backends.
const (
	StoreQdrant   = "qdrant"
	StorePGVector = "pgvector"
	StoreMemory   = "memory"
)

// Config is the root service configuration.
type Config struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Store     StoreConfig     `yaml:"store"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Log       LogConfig       `yaml:"log"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	// Provider: "openai", "ollama" or "gemini".
	Provider string `yaml:"provider"`

	// Model name. Empty uses the provider default.
	Model string `yaml:"model"`

	// Dimensions of the output vectors. Required for ollama; optional for
	// providers with known model sizes.
	Dimensions int `yaml:"dimensions"`

	// Host for local providers (ollama).
	Host string `yaml:"host"`

	// CacheDir enables the persistent embedding cache when non-empty.
	CacheDir string `yaml:"cache_dir"`

	// APIKey is environment-only: OPENAI_API_KEY / GOOGLE_API_KEY.
	APIKey string `yaml:"-"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	// Backend: "qdrant", "pgvector" or "memory".
	Backend string `yaml:"backend"`

	// URL of the qdrant server.
	URL string `yaml:"url"`

	// ConnectionString is environment-only: POSTGRES_URL.
	ConnectionString string `yaml:"-"`

	// APIKey is environment-only: QDRANT_API_KEY.
	APIKey string `yaml:"-"`
}

// RerankerConfig configures the optional cross-encoder stage.
type RerankerConfig struct {
	// Enabled turns the second retrieval stage on.
	Enabled bool `yaml:"enabled"`

	// URL of the text-embeddings-inference server.
	URL string `yaml:"url"`

	// Model name, for logging.
	Model string `yaml:"model"`
}

// RetrievalConfig tunes the pipeline.
type RetrievalConfig struct {
	ChunkSize       int           `yaml:"chunk_size"`
	ChunkOverlap    int           `yaml:"chunk_overlap"`
	TopK            int           `yaml:"top_k"`
	KeepTopN        int           `yaml:"keep_top_n"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
	MaxRetries      uint64        `yaml:"max_retries"`
	DedupeThreshold float64       `yaml:"dedupe_threshold"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level: trace, debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// Pretty switches from JSON to human-readable console output.
	Pretty bool `yaml:"pretty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Embedder: EmbedderConfig{Provider: EmbedderOpenAI},
		Store:    StoreConfig{Backend: StoreQdrant, URL: "http://localhost:6334"},
		Reranker: RerankerConfig{URL: "http://localhost:8080"},
		Retrieval: RetrievalConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			TopK:         20,
			KeepTopN:     10,
			CallTimeout:  30 * time.Second,
			MaxRetries:   3,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. An empty path skips the file. A .env file in the
// working directory is loaded first if present.
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over the file values. Secrets only
// exist here.
func (c *Config) applyEnv() {
	c.Embedder.Provider = helpers.GetStringFromEnv("EMBEDDER_PROVIDER", c.Embedder.Provider)
	c.Embedder.Model = helpers.GetStringFromEnv("EMBEDDER_MODEL", c.Embedder.Model)
	c.Embedder.Dimensions = helpers.GetIntFromEnv("EMBEDDER_DIMENSIONS", c.Embedder.Dimensions)
	c.Embedder.Host = helpers.GetStringFromEnv("OLLAMA_HOST", c.Embedder.Host)
	c.Embedder.CacheDir = helpers.GetStringFromEnv("EMBEDDING_CACHE_DIR", c.Embedder.CacheDir)
	switch c.Embedder.Provider {
	case EmbedderGemini:
		c.Embedder.APIKey = os.Getenv("GOOGLE_API_KEY")
	default:
		c.Embedder.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	c.Store.Backend = helpers.GetStringFromEnv("VECTOR_STORE", c.Store.Backend)
	c.Store.URL = helpers.GetStringFromEnv("QDRANT_URL", c.Store.URL)
	c.Store.APIKey = os.Getenv("QDRANT_API_KEY")
	c.Store.ConnectionString = os.Getenv("POSTGRES_URL")

	c.Reranker.Enabled = helpers.GetBoolFromEnv("RERANKER_ENABLED", c.Reranker.Enabled)
	c.Reranker.URL = helpers.GetStringFromEnv("RERANKER_URL", c.Reranker.URL)
	c.Reranker.Model = helpers.GetStringFromEnv("RERANKER_MODEL", c.Reranker.Model)

	c.Retrieval.TopK = helpers.GetIntFromEnv("RETRIEVAL_TOP_K", c.Retrieval.TopK)
	c.Retrieval.KeepTopN = helpers.GetIntFromEnv("RETRIEVAL_KEEP_TOP_N", c.Retrieval.KeepTopN)
	c.Retrieval.CallTimeout = helpers.GetDurationFromEnv("CALL_TIMEOUT", c.Retrieval.CallTimeout)
	c.Retrieval.DedupeThreshold = helpers.GetFloatFromEnv("DEDUPE_THRESHOLD", c.Retrieval.DedupeThreshold)

	c.Log.Level = helpers.GetStringFromEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = helpers.GetBoolFromEnv("LOG_PRETTY", c.Log.Pretty)
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Embedder.Provider {
	case EmbedderOpenAI, EmbedderOllama, EmbedderGemini:
	default:
		return fmt.Errorf("unknown embedder provider %q", c.Embedder.Provider)
	}
	if c.Embedder.Provider == EmbedderOllama && c.Embedder.Dimensions <= 0 {
		return fmt.Errorf("embedder.dimensions is required for the ollama provider")
	}

	switch c.Store.Backend {
	case StoreQdrant:
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for the qdrant backend")
		}
	case StorePGVector:
		if c.Store.ConnectionString == "" {
			return fmt.Errorf("POSTGRES_URL is required for the pgvector backend")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Reranker.Enabled && c.Reranker.URL == "" {
		return fmt.Errorf("reranker.url is required when the reranker is enabled")
	}

	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize && c.Retrieval.ChunkSize > 0 {
		return fmt.Errorf("retrieval.chunk_overlap must be smaller than retrieval.chunk_size")
	}
	return nil
}
