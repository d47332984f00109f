package retriever

import "github.com/arbiterlabs/answerd/internal/index"

// confidence scores an answer from its retrieval evidence: the cosine
// similarity of the best surviving hit, clamped to [0, 1]. No surviving
// evidence means zero confidence. Monotone in retrieval quality: a
// better top hit never lowers the score.
func confidence(hits []index.Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	return clamp01(hits[0].Score)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
