// Package chunker splits raw document text into overlapping fixed-size
// passages, the unit of retrieval.
//
// Offsets are measured in characters (runes), not bytes or tokens, so the
// same text always produces the same chunk boundaries regardless of the
// embedding backend in use.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig indicates chunking parameters that cannot produce
// forward progress.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// Chunk is a contiguous slice of a document's text. Chunks are created
// once during ingestion and immutable thereafter.
type Chunk struct {
	// DocumentID identifies the parent document.
	DocumentID string
	// Seq is the zero-based position of this chunk within its document.
	Seq int
	// Start and End are character offsets into the document text.
	Start int
	End   int
	// Text is the chunk content.
	Text string
	// Overlap is how many characters this chunk shares with its
	// predecessor. Zero for the first chunk of a document.
	Overlap int
}

// Chunker produces fixed-size overlapping windows.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Requires 0 < overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap <= 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must satisfy 0 < overlap < size, got overlap=%d size=%d",
			ErrInvalidConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split walks the text producing windows of size characters, advancing by
// size-overlap each step. The final window takes whatever remains even if
// shorter. Text shorter than one window yields exactly one chunk holding
// the full text. Whitespace-only text yields no chunks.
func (c *Chunker) Split(documentID, text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	stride := c.size - c.overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		overlap := 0
		if start > 0 {
			overlap = c.overlap
		}

		chunks = append(chunks, Chunk{
			DocumentID: documentID,
			Seq:        len(chunks),
			Start:      start,
			End:        end,
			Text:       string(runes[start:end]),
			Overlap:    overlap,
		})

		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap length.
func (c *Chunker) Overlap() int { return c.overlap }
