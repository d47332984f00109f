// Package index provides the vector index over embedded knowledge-base
// chunks.
//
// The index is a flat, exhaustively searched collection: ingestion builds
// it once offline, Save persists it, and the serving process loads it
// read-only. Records are never mutated after Load, so the query path
// needs no locking. Rebuilding means re-running ingestion; there is no
// incremental delete.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrDimensionMismatch indicates a vector whose dimensionality
	// differs from the index's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyIndex indicates a search against an index with no records.
	ErrEmptyIndex = errors.New("index contains no records")

	// ErrCorruptIndex indicates a persisted index whose declared shape
	// disagrees with its payload.
	ErrCorruptIndex = errors.New("corrupt index file")
)

// Record is one embedded chunk plus its source metadata. The index owns
// its records exclusively.
type Record struct {
	// ID uniquely identifies the record, "<documentID>:<seq>".
	ID string `json:"id"`
	// DocumentID identifies the source document.
	DocumentID string `json:"document_id"`
	// Seq is the chunk's position within its document.
	Seq int `json:"seq"`
	// Origin is a human-readable source reference (file name).
	Origin string `json:"origin"`
	// Text is the chunk content.
	Text string `json:"text"`
	// Vector is the chunk embedding.
	Vector []float32 `json:"vector"`
}

// Hit is one search result: a record and its similarity to the query.
type Hit struct {
	Record Record
	// Score is cosine similarity in [-1, 1]; higher is more similar.
	Score float64
}

// Index is an ordered collection of records with exhaustive cosine
// similarity search. Insertion order is preserved and breaks score ties.
type Index struct {
	dimension int
	embedder  string
	records   []Record
}

// New creates an empty index for vectors of the given dimension.
// embedder names the backend that produced the vectors; mixing backends
// in one index is forbidden.
func New(dimension int, embedder string) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	return &Index{dimension: dimension, embedder: embedder}, nil
}

// Add appends records, rejecting any whose vector dimensionality differs
// from the index's. On error no records are added.
func (ix *Index) Add(records []Record) error {
	for i, r := range records {
		if len(r.Vector) != ix.dimension {
			return fmt.Errorf("%w: record %d has dimension %d, index has %d",
				ErrDimensionMismatch, i, len(r.Vector), ix.dimension)
		}
	}
	ix.records = append(ix.records, records...)
	return nil
}

// Search returns the k records most similar to the query vector, sorted
// by descending cosine similarity with ties broken by insertion order.
// k is clamped to the index size.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(ix.records) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			ErrDimensionMismatch, len(query), ix.dimension)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if k > len(ix.records) {
		k = len(ix.records)
	}

	type scored struct {
		pos   int
		score float64
	}
	all := make([]scored, len(ix.records))
	for i := range ix.records {
		all[i] = scored{pos: i, score: cosineSimilarity(query, ix.records[i].Vector)}
	}

	// SliceStable keeps insertion order for equal scores.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].score > all[j].score
	})

	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = Hit{Record: ix.records[all[i].pos], Score: all[i].score}
	}
	return hits, nil
}

// Len returns the number of records.
func (ix *Index) Len() int { return len(ix.records) }

// Dimension returns the vector dimensionality.
func (ix *Index) Dimension() int { return ix.dimension }

// Embedder returns the name of the backend that built this index.
func (ix *Index) Embedder() string { return ix.embedder }

// cosineSimilarity computes cos(a, b) = (a·b) / (||a||·||b||).
// Returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
