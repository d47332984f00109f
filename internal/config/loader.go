package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables
//  2. YAML config file
//  3. Defaults from Default()
//
// Environment variables map to config keys by lowercasing and splitting
// on the first underscore group matching a section name:
//
//	SERVER_HTTP_PORT       -> server.http_port
//	SESSION_REDIS_ADDR     -> session.redis_addr
//	EMBEDDING_API_KEY      -> embedding.api_key
//	GENERATION_MODEL       -> generation.model
//
// configPath may be empty, in which case only defaults and environment
// variables apply. A present but unreadable or oversized file is an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			f, err := os.Open(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open config file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return nil, fmt.Errorf("failed to stat config file: %w", err)
			}
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file %s too large: %d bytes (max %d)",
					configPath, info.Size(), maxConfigFileSize)
			}

			content, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// sections are the top-level config keys an environment variable may
// target. Variables whose prefix matches no section are ignored so that
// unrelated process environment (PATH, HOME, ...) never lands in config.
var sections = []string{
	"server", "logging", "chunking", "embedding",
	"index", "retrieval", "generation", "session",
}

// transformEnvKey maps SECTION_FIELD_NAME to section.field_name.
// Returns "" for variables that target no known section.
func transformEnvKey(s string) string {
	lower := strings.ToLower(s)
	for _, section := range sections {
		prefix := section + "_"
		if strings.HasPrefix(lower, prefix) && len(lower) > len(prefix) {
			return section + "." + strings.TrimPrefix(lower, prefix)
		}
	}
	return ""
}
