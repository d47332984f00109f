// Package generation wraps the generative-model collaborator.
//
// The retriever hands a fully assembled prompt to a Client and receives
// prose back. Provider-specific failures (rate limits, auth, transport)
// are mapped onto two stable errors so callers never branch on SDK
// error types.
package generation

import (
	"context"
	"errors"
)

var (
	// ErrGeneration indicates the collaborator failed to produce text.
	ErrGeneration = errors.New("generation failed")

	// ErrGenerationTimeout indicates the collaborator exceeded the
	// bounded call timeout.
	ErrGenerationTimeout = errors.New("generation timed out")
)

// Client generates prose from an assembled prompt.
//
// Implementations must respect context cancellation and return
// ErrGenerationTimeout when the deadline elapses.
type Client interface {
	// Generate returns the model's text response for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}
