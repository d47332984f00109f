// Package config provides configuration loading for answerd.
//
// Configuration is assembled from three layers, highest precedence first:
//
//  1. Environment variables (SERVER_HTTP_PORT, SESSION_REDIS_ADDR, ...)
//  2. YAML config file (path given on the command line)
//  3. Hardcoded defaults
//
// The resulting Config is constructed once at startup and passed by
// reference into each component's constructor. There is no ambient
// global configuration state.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/arbiterlabs/answerd/internal/logging"
)

// Config holds the complete answerd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    logging.Config   `koanf:"logging"`
	Chunking   ChunkingConfig   `koanf:"chunking"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Index      IndexConfig      `koanf:"index"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Generation GenerationConfig `koanf:"generation"`
	Session    SessionConfig    `koanf:"session"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ChunkingConfig holds document chunking parameters.
type ChunkingConfig struct {
	// Size is the chunk window size in characters.
	Size int `koanf:"size"`
	// Overlap is how many characters consecutive chunks share.
	Overlap int `koanf:"overlap"`
}

// EmbeddingConfig holds embedding backend configuration.
type EmbeddingConfig struct {
	// BaseURL is the OpenAI-compatible endpoint for the remote backend.
	BaseURL string `koanf:"base_url"`
	// Model is the remote embedding model name.
	Model string `koanf:"model"`
	// APIKey authenticates against the remote backend.
	APIKey string `koanf:"api_key"`
	// LocalModel is the fastembed model used by the local fallback backend.
	LocalModel string `koanf:"local_model"`
	// LocalCacheDir caches downloaded ONNX model files.
	LocalCacheDir string `koanf:"local_cache_dir"`
	// BatchSize is how many chunks are embedded per request during ingestion.
	BatchSize int `koanf:"batch_size"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	// Path is where the serving process reads the persisted index.
	Path string `koanf:"path"`
	// DataDir is the knowledge base document directory for ingestion.
	DataDir string `koanf:"data_dir"`
	// RequireAtStartup aborts serve startup when the index file is missing.
	RequireAtStartup bool `koanf:"require_at_startup"`
	// WatchForReload reloads the index when the file is atomically replaced.
	WatchForReload bool `koanf:"watch_for_reload"`
}

// RetrievalConfig holds query-time retrieval parameters.
type RetrievalConfig struct {
	// TopK is how many chunks are retrieved per question.
	TopK int `koanf:"top_k"`
	// MinSimilarity drops retrieved chunks scoring below the floor.
	// Zero keeps everything topK returned.
	MinSimilarity float64 `koanf:"min_similarity"`
	// MaxContextChars bounds the assembled context window.
	MaxContextChars int `koanf:"max_context_chars"`
}

// GenerationConfig holds the generative model collaborator configuration.
type GenerationConfig struct {
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	APIKey      string        `koanf:"api_key"`
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
}

// SessionConfig holds session store configuration.
type SessionConfig struct {
	// TTL expires a session after this much inactivity.
	TTL time.Duration `koanf:"ttl"`
	// SweepInterval is how often the memory tier removes expired sessions.
	SweepInterval time.Duration `koanf:"sweep_interval"`
	// RedisAddr is the durable backend address. Empty disables the Redis
	// tier entirely and sessions live in process memory only.
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	DialTimeout   time.Duration `koanf:"dial_timeout"`
}

// Default returns a Config populated with defaults. Loaded file and
// environment values override these.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 100,
		},
		Embedding: EmbeddingConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "text-embedding-3-small",
			LocalModel:    "BAAI/bge-small-en-v1.5",
			LocalCacheDir: ".cache/answerd/models",
			BatchSize:     64,
		},
		Index: IndexConfig{
			Path:           "data/index.json",
			DataDir:        "knowledge_data",
			WatchForReload: true,
		},
		Retrieval: RetrievalConfig{
			TopK:            3,
			MinSimilarity:   0,
			MaxContextChars: 8000,
		},
		Generation: GenerationConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0,
			Timeout:     30 * time.Second,
		},
		Session: SessionConfig{
			TTL:           24 * time.Hour,
			SweepInterval: 10 * time.Minute,
			RedisAddr:     "localhost:6379",
			DialTimeout:   5 * time.Second,
		},
	}
}

// Validate validates the configuration. A validation failure here is
// fatal at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap <= 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunk overlap must satisfy 0 < overlap < size, got overlap=%d size=%d",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Index.Path == "" {
		return errors.New("index path is required")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity must be in [0,1], got %g", c.Retrieval.MinSimilarity)
	}
	if c.Generation.Timeout <= 0 {
		return errors.New("generation timeout must be positive")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("session sweep interval must be positive")
	}
	return nil
}
