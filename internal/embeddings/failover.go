package embeddings

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Failover wraps a primary (remote) and secondary (local) provider behind
// one Provider reference. A quota or authentication failure from the
// primary permanently switches the active provider to the secondary for
// the remainder of the process lifetime; the transition is logged once.
//
// A switch changes the active generation. The ingestion pipeline records
// the generation before a build and compares afterwards: a mismatch means
// the partially built index mixes backends and must be rebuilt under the
// new one.
type Failover struct {
	mu         sync.RWMutex
	primary    Provider
	secondary  Provider
	active     Provider
	generation uint64
	logger     *zap.Logger
}

// NewFailover creates a failover embedder. secondary may be nil, in which
// case primary errors propagate unchanged.
func NewFailover(primary, secondary Provider, logger *zap.Logger) *Failover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Failover{
		primary:   primary,
		secondary: secondary,
		active:    primary,
		logger:    logger,
	}
}

// Generation returns a counter that increments on every backend switch.
func (f *Failover) Generation() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.generation
}

// EmbedQuery embeds a query via the active provider, switching to the
// secondary on quota/auth failure.
func (f *Failover) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	p := f.current()
	vec, err := p.EmbedQuery(ctx, text)
	if err != nil && f.shouldSwitch(p, err) {
		return f.current().EmbedQuery(ctx, text)
	}
	return vec, err
}

// EmbedDocuments embeds passages via the active provider, switching to
// the secondary on quota/auth failure.
func (f *Failover) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	p := f.current()
	vectors, err := p.EmbedDocuments(ctx, texts)
	if err != nil && f.shouldSwitch(p, err) {
		return f.current().EmbedDocuments(ctx, texts)
	}
	return vectors, err
}

// Dimension returns the active provider's dimension.
func (f *Failover) Dimension() int { return f.current().Dimension() }

// Name returns the active provider's name.
func (f *Failover) Name() string { return f.current().Name() }

// Close closes both underlying providers.
func (f *Failover) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.primary.Close()
	if f.secondary != nil {
		if serr := f.secondary.Close(); err == nil {
			err = serr
		}
	}
	return err
}

func (f *Failover) current() Provider {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

// shouldSwitch switches to the secondary when the failed provider is the
// primary and the error is quota/auth class. Returns true if the caller
// should retry against the new active provider.
func (f *Failover) shouldSwitch(failed Provider, err error) bool {
	if f.secondary == nil || !isQuotaOrAuthError(err) {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != f.primary || failed != f.primary {
		// Already switched (possibly by a concurrent caller).
		return f.active != failed
	}

	f.logger.Warn("embedding backend switched to local fallback",
		zap.String("from", f.primary.Name()),
		zap.String("to", f.secondary.Name()),
		zap.Error(err))
	f.active = f.secondary
	f.generation++
	return true
}

// isQuotaOrAuthError reports whether err looks like a quota exhaustion or
// authentication failure from the remote backend. Provider SDKs surface
// these as opaque errors, so classification is by status code and the
// phrasing OpenAI-compatible servers use.
func isQuotaOrAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "quota", "rate limit",
		"401", "403", "unauthorized", "authentication", "invalid api key", "incorrect api key",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
