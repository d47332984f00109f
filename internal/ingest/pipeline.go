// Package ingest builds the vector index from a knowledge-base document
// directory.
//
// Ingestion is an offline, single-writer batch process: enumerate
// supported files, extract text, chunk, embed in batches, assemble a
// fresh index, persist it with an atomic rename. It never mutates an
// index a serving process is reading.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterlabs/answerd/internal/chunker"
	"github.com/arbiterlabs/answerd/internal/index"
)

// ErrEmptyKnowledgeBase indicates no document in the directory could be
// processed.
var ErrEmptyKnowledgeBase = errors.New("no documents could be ingested")

// Embedder is the slice of the embedding contract ingestion needs.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

// GenerationFunc reports the embedding backend generation. A change
// between the start and end of a build means the backend switched
// mid-run and the partial index mixes vectors from two backends.
type GenerationFunc func() uint64

// BuildReport summarizes one ingestion run.
type BuildReport struct {
	// Documents is the number of successfully processed documents.
	Documents int
	// Skipped is the number of documents that failed and were skipped.
	Skipped int
	// Chunks is the total number of indexed chunks.
	Chunks int
	// Dimension is the index vector dimensionality.
	Dimension int
	// Embedder names the backend that produced the vectors.
	Embedder string
	// Warnings records one line per skipped document.
	Warnings []string
	// Duration is the wall-clock build time.
	Duration time.Duration
}

// Config holds pipeline parameters.
type Config struct {
	// ChunkSize and ChunkOverlap configure the chunker.
	ChunkSize    int
	ChunkOverlap int
	// BatchSize is how many chunks are embedded per call.
	BatchSize int
	// IndexPath is where the finished index is persisted.
	IndexPath string
}

// Pipeline drives Chunker -> Embedder -> Index.
type Pipeline struct {
	readers    []Reader
	embedder   Embedder
	generation GenerationFunc
	config     Config
	logger     *zap.Logger
}

// New creates an ingestion pipeline. generation may be nil when the
// embedder cannot switch backends (deterministic test embedders).
func New(readers []Reader, embedder Embedder, generation GenerationFunc, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if len(readers) == 0 {
		return nil, errors.New("at least one reader is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.IndexPath == "" {
		return nil, errors.New("index path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		readers:    readers,
		embedder:   embedder,
		generation: generation,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Ingest builds a fresh index from the documents under dir and persists
// it. A single unreadable document is skipped with a warning; the run
// fails only when nothing at all could be processed. If the embedding
// backend switches mid-build the partial index is discarded and the
// build restarts once under the new backend.
func (p *Pipeline) Ingest(ctx context.Context, dir string) (*BuildReport, error) {
	report, err := p.build(ctx, dir)
	if err == nil && report.restarted {
		// Backend switched mid-build: the discarded attempt already moved
		// the failover to its final backend, so one restart suffices.
		p.logger.Warn("embedding backend switched mid-build, rebuilding index",
			zap.String("embedder", p.embedder.Name()))
		report, err = p.build(ctx, dir)
		if err == nil && report.restarted {
			return nil, errors.New("embedding backend switched again during rebuild")
		}
	}
	if err != nil {
		return nil, err
	}
	return &report.BuildReport, nil
}

type buildResult struct {
	BuildReport
	restarted bool
}

func (p *Pipeline) build(ctx context.Context, dir string) (*buildResult, error) {
	start := time.Now()

	files, err := p.enumerate(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no supported files in %s", ErrEmptyKnowledgeBase, dir)
	}

	var startGen uint64
	if p.generation != nil {
		startGen = p.generation()
	}

	chk, err := chunker.New(p.config.ChunkSize, p.config.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	result := &buildResult{}
	var allChunks []chunker.Chunk
	origins := map[string]string{}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := p.read(path)
		if err != nil {
			result.Skipped++
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			p.logger.Warn("skipping document", zap.String("path", path), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			result.Skipped++
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no text content", filepath.Base(path)))
			p.logger.Warn("skipping empty document", zap.String("path", path))
			continue
		}

		docID := filepath.Base(path)
		chunks := chk.Split(docID, text)
		allChunks = append(allChunks, chunks...)
		origins[docID] = filepath.Base(path)
		result.Documents++

		p.logger.Info("document chunked",
			zap.String("document", docID),
			zap.Int("chars", len([]rune(text))),
			zap.Int("chunks", len(chunks)))
	}

	if result.Documents == 0 {
		return nil, fmt.Errorf("%w: all %d documents failed", ErrEmptyKnowledgeBase, len(files))
	}

	ix, err := index.New(p.embedder.Dimension(), p.embedder.Name())
	if err != nil {
		return nil, err
	}

	for batchStart := 0; batchStart < len(allChunks); batchStart += p.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := batchStart + p.config.BatchSize
		if end > len(allChunks) {
			end = len(allChunks)
		}
		batch := allChunks[batchStart:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch at %d: %w", batchStart, err)
		}

		if p.generation != nil && p.generation() != startGen {
			result.restarted = true
			return result, nil
		}

		records := make([]index.Record, len(batch))
		for i, c := range batch {
			records[i] = index.Record{
				ID:         fmt.Sprintf("%s:%d", c.DocumentID, c.Seq),
				DocumentID: c.DocumentID,
				Seq:        c.Seq,
				Origin:     origins[c.DocumentID],
				Text:       c.Text,
				Vector:     vectors[i],
			}
		}
		if err := ix.Add(records); err != nil {
			return nil, fmt.Errorf("adding records: %w", err)
		}
	}

	if err := ix.Save(p.config.IndexPath); err != nil {
		return nil, fmt.Errorf("persisting index: %w", err)
	}

	result.Chunks = ix.Len()
	result.Dimension = ix.Dimension()
	result.Embedder = ix.Embedder()
	result.Duration = time.Since(start)

	p.logger.Info("ingestion complete",
		zap.Int("documents", result.Documents),
		zap.Int("skipped", result.Skipped),
		zap.Int("chunks", result.Chunks),
		zap.Int("dimension", result.Dimension),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// enumerate lists supported files under dir, sorted by name so repeated
// runs over an unchanged directory visit documents in the same order.
func (p *Pipeline) enumerate(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading document directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		for _, r := range p.readers {
			if r.Supports(path) {
				files = append(files, path)
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func (p *Pipeline) read(path string) (string, error) {
	for _, r := range p.readers {
		if r.Supports(path) {
			return r.Read(path)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}
