// Package embeddings provides embedding generation via multiple providers.
//
// Two providers satisfy the same contract: a remote OpenAI-compatible
// backend and a local ONNX backend (fastembed). The Failover wrapper
// selects between them at runtime. Vectors from different providers are
// never usable inside one index; the failover generation counter lets
// the ingestion pipeline detect a mid-build switch.
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrInvalidInput indicates empty or whitespace-only text.
	ErrInvalidInput = errors.New("invalid embedding input")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embedding configuration")

	// ErrEmbeddingFailed indicates the backend failed to produce vectors.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Provider generates vector embeddings from text.
//
// EmbedDocuments preserves input order and returns exactly one vector per
// input. All vectors from one provider share the dimensionality reported
// by Dimension.
type Provider interface {
	// EmbedQuery generates an embedding for a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments generates embeddings for multiple passages.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Name identifies the provider for logs and index metadata.
	Name() string

	// Close releases resources held by the provider.
	Close() error
}
