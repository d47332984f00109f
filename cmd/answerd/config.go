package main

import (
	"fmt"

	"github.com/arbiterlabs/answerd/internal/config"
)

// loadConfig loads and validates configuration. Both subcommands go
// through here so an invalid config always aborts startup with a
// diagnostic instead of running degraded.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
