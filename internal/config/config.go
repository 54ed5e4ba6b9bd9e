// Package config loads and validates application configuration from an
// optional YAML file plus environment variables. Validation happens once at
// startup; bad parameters never reach the pipeline.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ragbot/docchat/internal/chat"
	"github.com/ragbot/docchat/internal/embedding"
	"github.com/ragbot/docchat/internal/storage"
)

// ErrInvalid marks configuration rejected at startup.
var ErrInvalid = errors.New("invalid configuration")

// ChunkingConfig controls the document chunk window.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig controls similarity search.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// GatewayConfig selects the chat gateway and model. The API credential is
// never read from the file, only from the environment.
type GatewayConfig struct {
	BaseURL                 string `yaml:"base_url"`
	Model                   string `yaml:"model"`
	MaxConsecutiveMalformed int    `yaml:"max_consecutive_malformed"`

	APIKey string `yaml:"-"`
}

// PromptConfig bounds what gets packed into each generation request.
type PromptConfig struct {
	MaxHistoryTurns  int `yaml:"max_history_turns"`
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// QdrantConfig contains vector store connection details.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// IngestConfig controls ingestion parallelism.
type IngestConfig struct {
	Workers int `yaml:"workers"`
}

// Config is the root application configuration.
type Config struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist, applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
		applyDefaults(cfg)
	case errors.Is(err, os.ErrNotExist):
		// Defaults plus environment only.
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Chunking:  ChunkingConfig{Size: 300, Overlap: 100},
		Retrieval: RetrievalConfig{TopK: 5},
		Embedding: EmbeddingConfig{
			Model:     embedding.DefaultModel,
			Dimension: embedding.DefaultDimension,
			BatchSize: embedding.DefaultBatchSize,
		},
		Gateway: GatewayConfig{
			BaseURL:                 chat.DefaultBaseURL,
			Model:                   chat.DefaultModel,
			MaxConsecutiveMalformed: chat.DefaultMaxConsecutiveMalformed,
		},
		Prompt: PromptConfig{
			MaxHistoryTurns:  20,
			MaxContextTokens: 14000,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: storage.DefaultCollection,
		},
		Ingest: IngestConfig{Workers: 4},
	}
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = def.Chunking.Size
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = def.Chunking.Overlap
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = def.Embedding.Dimension
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = def.Gateway.BaseURL
	}
	if cfg.Gateway.Model == "" {
		cfg.Gateway.Model = def.Gateway.Model
	}
	if cfg.Gateway.MaxConsecutiveMalformed == 0 {
		cfg.Gateway.MaxConsecutiveMalformed = def.Gateway.MaxConsecutiveMalformed
	}
	if cfg.Prompt.MaxHistoryTurns == 0 {
		cfg.Prompt.MaxHistoryTurns = def.Prompt.MaxHistoryTurns
	}
	if cfg.Prompt.MaxContextTokens == 0 {
		cfg.Prompt.MaxContextTokens = def.Prompt.MaxContextTokens
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = def.Qdrant.Host
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = def.Qdrant.Port
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = def.Qdrant.Collection
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = def.Ingest.Workers
	}
}

// applyEnv overlays environment variables. Recognized options:
// OPENROUTER_API_KEY authenticates gateway requests, OPENROUTER_MODEL selects
// the served model, QDRANT_HOST/QDRANT_PORT locate the vector store.
func applyEnv(cfg *Config) {
	cfg.Gateway.APIKey = os.Getenv("OPENROUTER_API_KEY")
	if model := os.Getenv("OPENROUTER_MODEL"); model != "" {
		cfg.Gateway.Model = model
	}
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		cfg.Qdrant.Host = host
	}
	if port := os.Getenv("QDRANT_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			cfg.Qdrant.Port = p
		}
	}
}

// Validate rejects parameter combinations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 || c.Chunking.Overlap <= 0 {
		return fmt.Errorf("%w: chunking size and overlap must be positive", ErrInvalid)
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: chunking overlap %d must be smaller than size %d",
			ErrInvalid, c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval top_k must be positive", ErrInvalid)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive", ErrInvalid)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("%w: ingest workers must be at least 1", ErrInvalid)
	}
	return nil
}
