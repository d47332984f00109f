package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat indicates a file extension no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtraction indicates a reader failed to extract text.
	ErrExtraction = errors.New("text extraction failed")
)

// Reader extracts plain text from a document file. The pipeline depends
// only on this contract, never on format-specific detail.
type Reader interface {
	// Supports reports whether this reader handles the file.
	Supports(path string) bool
	// Read returns the extracted plain text.
	Read(path string) (string, error)
}

// ExtractorFunc is an external text extractor for binary formats
// (PDF, DOCX). Given a file path it returns extracted plain text.
type ExtractorFunc func(path string) (string, error)

// PlainReader reads UTF-8 text and markdown files directly.
type PlainReader struct{}

// Supports reports true for .txt and .md files.
func (PlainReader) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// Read returns the file contents.
func (PlainReader) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return string(data), nil
}

// ExtractorReader routes binary formats through an external extractor
// collaborator. With a nil extractor the formats are recognized but fail,
// so they show up as skipped documents in the build report rather than
// being silently ignored.
type ExtractorReader struct {
	// Extensions this reader claims, lowercase with dot (".pdf").
	Extensions []string
	// Extract is the collaborator; nil means extraction is unavailable.
	Extract ExtractorFunc
}

// Supports reports whether the extension is claimed.
func (r ExtractorReader) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range r.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Read extracts text via the collaborator.
func (r ExtractorReader) Read(path string) (string, error) {
	if r.Extract == nil {
		return "", fmt.Errorf("%w: no extractor configured for %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	text, err := r.Extract(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return text, nil
}

// DefaultReaders returns the reader chain: plain text plus PDF/DOCX via
// the given extractor (which may be nil).
func DefaultReaders(extract ExtractorFunc) []Reader {
	return []Reader{
		PlainReader{},
		ExtractorReader{Extensions: []string{".pdf", ".docx"}, Extract: extract},
	}
}
