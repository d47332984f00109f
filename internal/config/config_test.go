package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answerd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9100
chunking:
  size: 500
  overlap: 50
retrieval:
  top_k: 5
  min_similarity: 0.25
session:
  redis_addr: "redis.internal:6379"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.25, cfg.Retrieval.MinSimilarity)
	assert.Equal(t, "redis.internal:6379", cfg.Session.RedisAddr)

	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answerd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9100\n"), 0o644))

	t.Setenv("SERVER_HTTP_PORT", "9200")
	t.Setenv("GENERATION_MODEL", "deepseek-chat")
	t.Setenv("EMBEDDING_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "deepseek-chat", cfg.Generation.Model)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestTransformEnvKey(t *testing.T) {
	assert.Equal(t, "server.http_port", transformEnvKey("SERVER_HTTP_PORT"))
	assert.Equal(t, "session.redis_addr", transformEnvKey("SESSION_REDIS_ADDR"))
	assert.Equal(t, "embedding.api_key", transformEnvKey("EMBEDDING_API_KEY"))
	assert.Empty(t, transformEnvKey("PATH"), "unrelated variables are ignored")
	assert.Empty(t, transformEnvKey("HOME"))
	assert.Empty(t, transformEnvKey("SERVER_"), "bare section prefix is ignored")
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"zero chunk size", func(c *Config) { c.Chunking.Size = 0 }},
		{"overlap equals size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }},
		{"zero overlap", func(c *Config) { c.Chunking.Overlap = 0 }},
		{"negative top_k", func(c *Config) { c.Retrieval.TopK = -1 }},
		{"similarity above one", func(c *Config) { c.Retrieval.MinSimilarity = 1.5 }},
		{"zero generation timeout", func(c *Config) { c.Generation.Timeout = 0 }},
		{"zero session ttl", func(c *Config) { c.Session.TTL = 0 }},
		{"empty index path", func(c *Config) { c.Index.Path = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
