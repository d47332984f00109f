package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arbiterlabs/answerd/internal/index"
)

// hashEmbedder is a deterministic embedder: the vector depends only on
// the input text, so re-ingestion reproduces identical vectors.
type hashEmbedder struct {
	name  string
	dim   int
	calls atomic.Int64
}

func (e *hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dim)
		for j, r := range t {
			v[j%e.dim] += float32(r%13) / 13
		}
		out[i] = v
	}
	return out, nil
}

func (e *hashEmbedder) Dimension() int { return e.dim }
func (e *hashEmbedder) Name() string   { return e.name }

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newPipeline(t *testing.T, emb Embedder, gen GenerationFunc, indexPath string) *Pipeline {
	t.Helper()
	p, err := New(DefaultReaders(nil), emb, gen, Config{
		ChunkSize:    100,
		ChunkOverlap: 20,
		BatchSize:    4,
		IndexPath:    indexPath,
	}, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestIngest_TwoDocumentScenario(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", strings.Repeat("a", 50))
	writeDoc(t, dir, "b.txt", strings.Repeat("b", 250))

	indexPath := filepath.Join(t.TempDir(), "index.json")
	p := newPipeline(t, &hashEmbedder{name: "test", dim: 8}, nil, indexPath)

	report, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 0, report.Skipped)
	// doc A (50 chars) -> 1 chunk; doc B (250 chars) -> 3 chunks.
	assert.Equal(t, 4, report.Chunks)
	assert.Equal(t, 8, report.Dimension)

	ix, err := index.Load(indexPath)
	require.NoError(t, err)
	assert.Equal(t, 4, ix.Len())
}

func TestIngest_SkipsUnreadableDocument(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good.txt", strings.Repeat("content ", 20))
	// A PDF with no extractor configured is recognized but unreadable.
	writeDoc(t, dir, "scan.pdf", "%PDF-1.4 binary payload")

	indexPath := filepath.Join(t.TempDir(), "index.json")
	p := newPipeline(t, &hashEmbedder{name: "test", dim: 8}, nil, indexPath)

	report, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "scan.pdf")
}

func TestIngest_EmptyDirectory(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "index.json")
	p := newPipeline(t, &hashEmbedder{name: "test", dim: 8}, nil, indexPath)

	_, err := p.Ingest(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrEmptyKnowledgeBase)
}

func TestIngest_AllDocumentsFail(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "one.pdf", "binary")
	writeDoc(t, dir, "two.docx", "binary")
	writeDoc(t, dir, "blank.txt", "   \n ")

	indexPath := filepath.Join(t.TempDir(), "index.json")
	p := newPipeline(t, &hashEmbedder{name: "test", dim: 8}, nil, indexPath)

	_, err := p.Ingest(context.Background(), dir)
	assert.ErrorIs(t, err, ErrEmptyKnowledgeBase)
}

func TestIngest_Reproducible(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc.md", strings.Repeat("reproducible text ", 40))

	indexPath := filepath.Join(t.TempDir(), "index.json")
	p := newPipeline(t, &hashEmbedder{name: "test", dim: 8}, nil, indexPath)

	_, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)
	first, err := os.ReadFile(indexPath)
	require.NoError(t, err)

	_, err = p.Ingest(context.Background(), dir)
	require.NoError(t, err)
	second, err := os.ReadFile(indexPath)
	require.NoError(t, err)

	assert.Equal(t, first, second, "unchanged directory must reproduce a bit-identical index")
}

// switchingEmbedder simulates a backend failover after the first batch.
type switchingEmbedder struct {
	hashEmbedder
	generation atomic.Uint64
	switched   atomic.Bool
}

func (e *switchingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.hashEmbedder.EmbedDocuments(ctx, texts)
	if !e.switched.Swap(true) {
		e.generation.Add(1)
	}
	return vectors, err
}

func TestIngest_RestartsOnBackendSwitch(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc.txt", strings.Repeat("x", 900))

	indexPath := filepath.Join(t.TempDir(), "index.json")
	emb := &switchingEmbedder{hashEmbedder: hashEmbedder{name: "test", dim: 8}}
	p := newPipeline(t, emb, emb.generation.Load, indexPath)

	report, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	// 900 chars, chunk 100/20 -> stride 80 -> 11 chunks, reindexed once.
	assert.Equal(t, 11, report.Chunks)
	assert.GreaterOrEqual(t, emb.calls.Load(), int64(2), "build must have restarted")

	_, err = index.Load(indexPath)
	require.NoError(t, err)
}

func TestIngest_ContextCancellation(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc.txt", strings.Repeat("x", 500))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPipeline(t, &hashEmbedder{name: "test", dim: 8}, nil, filepath.Join(t.TempDir(), "i.json"))
	_, err := p.Ingest(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReaders_Support(t *testing.T) {
	readers := DefaultReaders(nil)

	supported := func(name string) bool {
		for _, r := range readers {
			if r.Supports(name) {
				return true
			}
		}
		return false
	}

	assert.True(t, supported("notes.txt"))
	assert.True(t, supported("README.md"))
	assert.True(t, supported("manual.PDF"))
	assert.True(t, supported("rules.docx"))
	assert.False(t, supported("image.png"))
	assert.False(t, supported("data.csv"))
}

func TestExtractorReader_UsesCollaborator(t *testing.T) {
	r := ExtractorReader{
		Extensions: []string{".pdf"},
		Extract: func(path string) (string, error) {
			return "extracted text", nil
		},
	}
	text, err := r.Read("doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "extracted text", text)

	failing := ExtractorReader{
		Extensions: []string{".pdf"},
		Extract: func(path string) (string, error) {
			return "", errors.New("parse error")
		},
	}
	_, err = failing.Read("doc.pdf")
	assert.ErrorIs(t, err, ErrExtraction)
}
