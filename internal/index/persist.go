package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	fileMagic   = "answerd-index"
	fileVersion = 1
)

// envelope is the persisted index format. Dimension and Count are
// declared in the header and validated against the payload on load; a
// loader must never trust the records before that check passes.
type envelope struct {
	Magic     string   `json:"magic"`
	Version   int      `json:"version"`
	Embedder  string   `json:"embedder"`
	Dimension int      `json:"dimension"`
	Count     int      `json:"count"`
	Records   []Record `json:"records"`
}

// Save persists the index. The file is written to a temporary sibling
// and renamed into place so readers never observe a partial write, which
// is what lets ingestion atomically swap the index under a live server.
func (ix *Index) Save(path string) error {
	env := envelope{
		Magic:     fileMagic,
		Version:   fileVersion,
		Embedder:  ix.embedder,
		Dimension: ix.dimension,
		Count:     len(ix.records),
		Records:   ix.records,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp index file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing index file: %w", err)
	}
	return nil
}

// Load reads a persisted index and validates the declared shape against
// the payload. Any inconsistency (wrong magic, unknown version, count or
// dimension disagreeing with the records) fails with ErrCorruptIndex.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	if env.Magic != fileMagic {
		return nil, fmt.Errorf("%w: unexpected magic %q", ErrCorruptIndex, env.Magic)
	}
	if env.Version != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, env.Version)
	}
	if env.Dimension <= 0 {
		return nil, fmt.Errorf("%w: declared dimension %d", ErrCorruptIndex, env.Dimension)
	}
	if env.Count != len(env.Records) {
		return nil, fmt.Errorf("%w: header declares %d records, payload has %d",
			ErrCorruptIndex, env.Count, len(env.Records))
	}
	for i, r := range env.Records {
		if len(r.Vector) != env.Dimension {
			return nil, fmt.Errorf("%w: record %d has dimension %d, header declares %d",
				ErrCorruptIndex, i, len(r.Vector), env.Dimension)
		}
	}

	return &Index{
		dimension: env.Dimension,
		embedder:  env.Embedder,
		records:   env.Records,
	}, nil
}
