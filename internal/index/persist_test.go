package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	ix, err := New(2, "fastembed:BAAI/bge-small-en-v1.5")
	require.NoError(t, err)
	require.NoError(t, ix.Add([]Record{
		{ID: "a:0", DocumentID: "a", Seq: 0, Origin: "a.txt", Text: "first", Vector: []float32{1, 0}},
		{ID: "a:1", DocumentID: "a", Seq: 1, Origin: "a.txt", Text: "second", Vector: []float32{0, 1}},
	}))

	require.NoError(t, ix.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, 2, loaded.Dimension())
	assert.Equal(t, "fastembed:BAAI/bge-small-en-v1.5", loaded.Embedder())

	hits, err := loaded.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "a:0", hits[0].Record.ID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCorruptIndex, "a missing file is not corruption")
}

func corruptEnvelope(t *testing.T, mutate func(*envelope)) string {
	t.Helper()
	env := envelope{
		Magic:     fileMagic,
		Version:   fileVersion,
		Embedder:  "test",
		Dimension: 2,
		Count:     1,
		Records:   []Record{{ID: "a:0", Vector: []float32{1, 0}}},
	}
	mutate(&env)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoad_RejectsCorruptFiles(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*envelope)
	}{
		{"wrong magic", func(e *envelope) { e.Magic = "not-an-index" }},
		{"unknown version", func(e *envelope) { e.Version = 99 }},
		{"count mismatch", func(e *envelope) { e.Count = 7 }},
		{"dimension mismatch", func(e *envelope) { e.Dimension = 5 }},
		{"non-positive dimension", func(e *envelope) { e.Dimension = 0; e.Records = nil; e.Count = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := corruptEnvelope(t, tt.mutate)
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrCorruptIndex)
		})
	}
}

func TestLoad_RejectsNonJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrCorruptIndex)
}

func TestSave_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	first, err := New(2, "test")
	require.NoError(t, err)
	require.NoError(t, first.Add([]Record{{ID: "old", Vector: []float32{1, 0}}}))
	require.NoError(t, first.Save(path))

	second, err := New(2, "test")
	require.NoError(t, err)
	require.NoError(t, second.Add([]Record{{ID: "new", Vector: []float32{0, 1}}}))
	require.NoError(t, second.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHandle_ReadyAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	h := NewHandle(path)
	assert.False(t, h.Ready())
	assert.Nil(t, h.Get())
	assert.Error(t, h.Reload(), "reload before the file exists fails")

	ix, err := New(2, "test")
	require.NoError(t, err)
	require.NoError(t, ix.Add([]Record{{ID: "a", Vector: []float32{1, 0}}}))
	require.NoError(t, ix.Save(path))

	require.NoError(t, h.Reload())
	assert.True(t, h.Ready())
	assert.Equal(t, 1, h.Get().Len())
}
