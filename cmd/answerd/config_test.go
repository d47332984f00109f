package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadConfig_RejectsInvalidEnvironment(t *testing.T) {
	// Values Load accepts but a running daemon must not: a negative TTL
	// would silently disable session expiry, an oversized overlap would
	// stall the chunker.
	t.Setenv("SESSION_TTL", "-24h")
	t.Setenv("CHUNKING_OVERLAP", "5000")

	_, err := loadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadConfig_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answerd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 0\n"), 0o644))

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
