package embeddings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// mockProvider is a hand-rolled Provider with function fields.
type mockProvider struct {
	name      string
	dimension int
	queryFunc func(ctx context.Context, text string) ([]float32, error)
	docsFunc  func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, text)
	}
	return make([]float32, m.dimension), nil
}

func (m *mockProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if m.docsFunc != nil {
		return m.docsFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, m.dimension)
	}
	return out, nil
}

func (m *mockProvider) Dimension() int { return m.dimension }
func (m *mockProvider) Name() string   { return m.name }
func (m *mockProvider) Close() error   { return nil }

func TestFailover_SwitchesOnQuotaError(t *testing.T) {
	primary := &mockProvider{
		name:      "remote",
		dimension: 1536,
		queryFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("request failed: 429 insufficient_quota")
		},
	}
	secondary := &mockProvider{name: "local", dimension: 384}

	core, logs := observer.New(zap.WarnLevel)
	f := NewFailover(primary, secondary, zap.New(core))

	require.Equal(t, uint64(0), f.Generation())

	vec, err := f.EmbedQuery(context.Background(), "question")
	require.NoError(t, err)
	assert.Len(t, vec, 384)

	assert.Equal(t, uint64(1), f.Generation())
	assert.Equal(t, "local", f.Name())
	assert.Equal(t, 384, f.Dimension())

	// Transition logged exactly once.
	assert.Equal(t, 1, logs.FilterMessage("embedding backend switched to local fallback").Len())

	// Subsequent calls stay on the secondary and log nothing further.
	_, err = f.EmbedQuery(context.Background(), "another")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Generation())
	assert.Equal(t, 1, logs.FilterMessage("embedding backend switched to local fallback").Len())
}

func TestFailover_SwitchesOnAuthError(t *testing.T) {
	primary := &mockProvider{
		name:      "remote",
		dimension: 1536,
		docsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("401 Unauthorized: incorrect API key provided")
		},
	}
	secondary := &mockProvider{name: "local", dimension: 384}
	f := NewFailover(primary, secondary, zap.NewNop())

	vectors, err := f.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, uint64(1), f.Generation())
}

func TestFailover_DoesNotSwitchOnTransientError(t *testing.T) {
	transient := errors.New("connection reset by peer")
	primary := &mockProvider{
		name:      "remote",
		dimension: 1536,
		queryFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, transient
		},
	}
	secondary := &mockProvider{name: "local", dimension: 384}
	f := NewFailover(primary, secondary, zap.NewNop())

	_, err := f.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, uint64(0), f.Generation())
	assert.Equal(t, "remote", f.Name())
}

func TestFailover_NoSecondaryPropagatesError(t *testing.T) {
	primary := &mockProvider{
		name:      "remote",
		dimension: 1536,
		queryFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("429 quota exceeded")
		},
	}
	f := NewFailover(primary, nil, zap.NewNop())

	_, err := f.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, uint64(0), f.Generation())
}

func TestFailover_ConcurrentSwitchIncrementsGenerationOnce(t *testing.T) {
	primary := &mockProvider{
		name:      "remote",
		dimension: 1536,
		queryFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("429 rate limit")
		},
	}
	secondary := &mockProvider{name: "local", dimension: 384}
	f := NewFailover(primary, secondary, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.EmbedQuery(context.Background(), "q")
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(1), f.Generation())
}

func TestIsQuotaOrAuthError(t *testing.T) {
	assert.True(t, isQuotaOrAuthError(errors.New("HTTP 429 Too Many Requests")))
	assert.True(t, isQuotaOrAuthError(errors.New("you exceeded your current quota")))
	assert.True(t, isQuotaOrAuthError(errors.New("403 Forbidden")))
	assert.False(t, isQuotaOrAuthError(errors.New("dial tcp: connection refused")))
	assert.False(t, isQuotaOrAuthError(nil))
}
