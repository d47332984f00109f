package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arbiterlabs/answerd/internal/config"
	"github.com/arbiterlabs/answerd/internal/embeddings"
	"github.com/arbiterlabs/answerd/internal/ingest"
	"github.com/arbiterlabs/answerd/internal/logging"
)

var ingestDataDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the vector index from the knowledge base directory",
	Long: `Ingest reads every supported document under the data directory,
chunks and embeds the text, and writes the vector index the serve
command answers from. The index file is replaced atomically, so a
running server picks up the new index without restarting.

Examples:
  # Ingest using the configured data directory
  answerd ingest --config answerd.yaml

  # Override the data directory
  answerd ingest --config answerd.yaml --data ./docs`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDataDir, "data", "", "knowledge base directory (overrides config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logging.Sync(logger) }()

	dataDir := cfg.Index.DataDir
	if ingestDataDir != "" {
		dataDir = ingestDataDir
	}

	embedder, err := buildEmbedder(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	pipeline, err := ingest.New(
		ingest.DefaultReaders(nil),
		embedder,
		embedder.Generation,
		ingest.Config{
			ChunkSize:    cfg.Chunking.Size,
			ChunkOverlap: cfg.Chunking.Overlap,
			BatchSize:    cfg.Embedding.BatchSize,
			IndexPath:    cfg.Index.Path,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	report, err := pipeline.Ingest(cmd.Context(), dataDir)
	if err != nil {
		return err
	}

	logger.Info("index written",
		zap.String("path", cfg.Index.Path),
		zap.Int("documents", report.Documents),
		zap.Int("skipped", report.Skipped),
		zap.Int("chunks", report.Chunks),
		zap.String("embedder", report.Embedder))

	fmt.Printf("Indexed %d documents (%d chunks, %d skipped) in %s\n",
		report.Documents, report.Chunks, report.Skipped, report.Duration.Round(time.Millisecond))
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return nil
}

// buildEmbedder assembles the remote-primary/local-secondary failover
// embedder both subcommands share.
func buildEmbedder(cfg *config.Config, logger *zap.Logger) (*embeddings.Failover, error) {
	primary, err := embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.Embedding.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("remote provider: %w", err)
	}

	secondary, err := embeddings.NewFastEmbedProvider(embeddings.FastEmbedConfig{
		Model:    cfg.Embedding.LocalModel,
		CacheDir: cfg.Embedding.LocalCacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("local provider: %w", err)
	}

	return embeddings.NewFailover(primary, secondary, logger), nil
}
