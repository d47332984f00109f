// Package retriever orchestrates one question/answer round trip:
// embed the question, search the index, filter by the similarity floor,
// assemble a grounded prompt, call the generative model, score
// confidence, and record the exchange in the caller's session.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterlabs/answerd/internal/generation"
	"github.com/arbiterlabs/answerd/internal/index"
	"github.com/arbiterlabs/answerd/internal/session"
)

var (
	// ErrEmptyQuestion indicates a blank or whitespace-only question.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrNotReady indicates the service has no loaded index to search.
	ErrNotReady = errors.New("knowledge base not ready")
)

// refusalAnswer is returned verbatim when no excerpt clears the
// similarity floor; it matches the refusal line the prompt mandates.
const refusalAnswer = "I don't know based on the available documents."

// excerptPreview bounds how much chunk text a source reference carries.
const excerptPreview = 200

// QueryEmbedder is the slice of the embedding contract the retriever
// needs.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// IndexProvider yields the current index snapshot; nil means no index
// has been loaded yet.
type IndexProvider interface {
	Get() *index.Index
}

// Config holds retrieval parameters.
type Config struct {
	// TopK is how many candidate excerpts the search returns.
	TopK int
	// MinSimilarity is the cosine floor a hit must clear to be used as
	// evidence. The comparison is inclusive, so the zero default keeps
	// every non-negative hit; anti-similar excerpts (negative cosine)
	// are excluded at any floor.
	MinSimilarity float64
	// MaxContextChars bounds the assembled context block. The best hit is
	// always kept even if it alone exceeds the bound. Zero means no bound.
	MaxContextChars int
}

// Answer is the result of one Ask.
type Answer struct {
	Text       string              `json:"answer"`
	SessionID  string              `json:"session_id"`
	Sources    []session.SourceRef `json:"sources"`
	Confidence float64             `json:"confidence"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Service answers questions over the loaded knowledge base.
type Service struct {
	embedder QueryEmbedder
	provider IndexProvider
	client   generation.Client
	sessions session.Store
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// New creates the question-answering service.
func New(embedder QueryEmbedder, provider IndexProvider, client generation.Client, sessions session.Store, cfg Config, logger *zap.Logger) (*Service, error) {
	if embedder == nil || provider == nil || client == nil || sessions == nil {
		return nil, errors.New("embedder, index provider, generation client and session store are required")
	}
	if cfg.TopK <= 0 {
		return nil, errors.New("top_k must be positive")
	}
	if cfg.MinSimilarity < 0 || cfg.MinSimilarity > 1 {
		return nil, errors.New("min_similarity must be in [0, 1]")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder: embedder,
		provider: provider,
		client:   client,
		sessions: sessions,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Ask answers a question against the knowledge base and appends the
// exchange to the caller's session. An empty sessionID starts a new
// session; the returned Answer carries the id to continue it.
func (s *Service) Ask(ctx context.Context, question, sessionID string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	ix := s.provider.Get()
	if ix == nil {
		return nil, ErrNotReady
	}

	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	hits, err := ix.Search(vector, s.config.TopK)
	if err != nil {
		if errors.Is(err, index.ErrEmptyIndex) {
			return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
		}
		return nil, fmt.Errorf("searching index: %w", err)
	}

	surviving := hits[:0]
	for _, h := range hits {
		if h.Score >= s.config.MinSimilarity {
			surviving = append(surviving, h)
		}
	}
	surviving = capContext(surviving, s.config.MaxContextChars)

	answer := &Answer{Timestamp: s.now().UTC()}

	if len(surviving) == 0 {
		// Nothing clears the floor: refuse without consulting the model,
		// so an empty evidence set can never hallucinate an answer.
		answer.Text = refusalAnswer
		answer.Confidence = 0
		s.logger.Info("no excerpt cleared similarity floor",
			zap.Float64("floor", s.config.MinSimilarity),
			zap.Int("candidates", len(hits)))
	} else {
		text, err := s.client.Generate(ctx, buildPrompt(question, surviving))
		if err != nil {
			return nil, err
		}
		answer.Text = strings.TrimSpace(text)
		answer.Confidence = confidence(surviving)
		answer.Sources = sourceRefs(surviving)
	}

	turn := session.Turn{
		Question:   question,
		Answer:     answer.Text,
		Sources:    answer.Sources,
		Confidence: answer.Confidence,
		Timestamp:  answer.Timestamp,
	}
	id, err := s.sessions.Append(ctx, sessionID, turn)
	if err != nil {
		return nil, fmt.Errorf("recording session turn: %w", err)
	}
	answer.SessionID = id

	s.logger.Info("question answered",
		zap.String("session", id),
		zap.Int("sources", len(answer.Sources)),
		zap.Float64("confidence", answer.Confidence))

	return answer, nil
}

// capContext drops trailing hits once the accumulated excerpt text
// exceeds the character bound. Hits arrive best-first, so what survives
// is always the strongest evidence.
func capContext(hits []index.Hit, maxChars int) []index.Hit {
	if maxChars <= 0 {
		return hits
	}
	total := 0
	for i, h := range hits {
		total += len([]rune(h.Record.Text))
		if total > maxChars && i > 0 {
			return hits[:i]
		}
	}
	return hits
}

func sourceRefs(hits []index.Hit) []session.SourceRef {
	refs := make([]session.SourceRef, len(hits))
	for i, h := range hits {
		refs[i] = session.SourceRef{
			Excerpt: truncate(h.Record.Text, excerptPreview),
			Origin:  h.Record.Origin,
			Score:   clamp01(h.Score),
		}
	}
	return refs
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
