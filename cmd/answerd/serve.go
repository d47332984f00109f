package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arbiterlabs/answerd/internal/config"
	"github.com/arbiterlabs/answerd/internal/generation"
	"github.com/arbiterlabs/answerd/internal/httpapi"
	"github.com/arbiterlabs/answerd/internal/index"
	"github.com/arbiterlabs/answerd/internal/logging"
	"github.com/arbiterlabs/answerd/internal/retriever"
	"github.com/arbiterlabs/answerd/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question-answering HTTP API",
	Long: `Serve loads the persisted vector index and answers questions over
HTTP until interrupted. If the index file is missing the server starts
degraded and becomes ready as soon as an ingest run writes it.

Examples:
  # Serve with config file
  answerd serve --config answerd.yaml

  # Override the listen port
  SERVER_HTTP_PORT=9000 answerd serve --config answerd.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logging.Sync(logger) }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Index handle: load if present, optionally hard-require at startup.
	handle := index.NewHandle(cfg.Index.Path)
	if err := handle.Reload(); err != nil {
		if cfg.Index.RequireAtStartup {
			return fmt.Errorf("loading index %s: %w", cfg.Index.Path, err)
		}
		logger.Warn("starting without index, serving degraded until ingest",
			zap.String("path", cfg.Index.Path), zap.Error(err))
	} else {
		logger.Info("index loaded",
			zap.String("path", cfg.Index.Path),
			zap.Int("records", handle.Records()))
	}

	if cfg.Index.WatchForReload {
		go func() {
			if err := handle.Watch(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("index watcher stopped", zap.Error(err))
			}
		}()
	}

	sessions := buildSessionStore(cfg, logger)
	defer func() { _ = sessions.Close() }()

	embedder, err := buildEmbedder(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	genClient, err := generation.NewOpenAIClient(generation.OpenAIConfig{
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		APIKey:      cfg.Generation.APIKey,
		Temperature: cfg.Generation.Temperature,
		Timeout:     cfg.Generation.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating generation client: %w", err)
	}
	logger.Info("generation client configured",
		zap.String("model", cfg.Generation.Model),
		logging.Redacted("api_key", cfg.Generation.APIKey))

	service, err := retriever.New(embedder, handle, genClient, sessions, retriever.Config{
		TopK:            cfg.Retrieval.TopK,
		MinSimilarity:   cfg.Retrieval.MinSimilarity,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating retriever: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server, err := httpapi.NewServer(service, sessions, handle, sessions, registry, logger, httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildSessionStore assembles the two-tier session store. Redis is
// optional: an empty address or an unreachable backend at startup still
// yields a working store, just memory-only.
func buildSessionStore(cfg *config.Config, logger *zap.Logger) *session.FailoverStore {
	memory := session.NewMemoryStore(cfg.Session.TTL, cfg.Session.SweepInterval, logger)

	var durable session.Store
	if cfg.Session.RedisAddr != "" {
		redis, err := session.NewRedisStore(session.RedisConfig{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
			Timeout:  cfg.Session.DialTimeout,
		}, cfg.Session.TTL, logger)
		if err != nil {
			logger.Warn("redis unavailable at startup, sessions held in memory",
				zap.String("addr", cfg.Session.RedisAddr), zap.Error(err))
		} else {
			durable = redis
			logger.Info("session store using redis", zap.String("addr", cfg.Session.RedisAddr))
		}
	}

	return session.NewFailoverStore(durable, memory, logger)
}
