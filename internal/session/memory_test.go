package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestMemoryStore(t *testing.T, ttl time.Duration) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(ttl, time.Hour, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemoryStore_CreateAppendGet(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, 24*time.Hour)

	id, err := s.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	for i := 0; i < 3; i++ {
		returned, err := s.Append(ctx, id, Turn{
			Question:  fmt.Sprintf("q%d", i),
			Answer:    fmt.Sprintf("a%d", i),
			Timestamp: time.Now(),
		})
		require.NoError(t, err)
		assert.Equal(t, id, returned)
	}

	sess, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 3)
	assert.Equal(t, "q0", sess.Turns[0].Question)
	assert.Equal(t, "q2", sess.Turns[2].Question)
}

func TestMemoryStore_EmptyIDCreatesSession(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, 24*time.Hour)

	id, err := s.Append(ctx, "", Turn{Question: "q", Answer: "a"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sess.Turns, 1)
}

func TestMemoryStore_UnknownIDStartsFresh(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, 24*time.Hour)

	id, err := s.Append(ctx, "no-such-session", Turn{Question: "q", Answer: "a"})
	require.NoError(t, err)
	assert.NotEqual(t, "no-such-session", id)
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := newTestMemoryStore(t, 24*time.Hour)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, 24*time.Hour)

	id, err := s.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	require.NoError(t, s.Delete(ctx, id))

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, time.Hour)

	base := time.Now()
	s.now = func() time.Time { return base }

	id, err := s.Append(ctx, "", Turn{Question: "q", Answer: "a"})
	require.NoError(t, err)

	// Just inside the TTL the session is visible.
	s.now = func() time.Time { return base.Add(time.Hour) }
	_, err = s.Get(ctx, id)
	require.NoError(t, err)

	// One second past the TTL it behaves as not-found.
	s.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	// Appending to the expired id yields a fresh session.
	newID, err := s.Append(ctx, id, Turn{Question: "q2", Answer: "a2"})
	require.NoError(t, err)
	assert.NotEqual(t, id, newID)
}

func TestMemoryStore_SweepRemovesExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, time.Minute)

	base := time.Now()
	s.now = func() time.Time { return base }

	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, "", Turn{Question: "q"})
		require.NoError(t, err)
	}
	require.Equal(t, 5, s.Len())

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	s.sweepExpired()

	s.mu.RLock()
	physical := len(s.sessions)
	s.mu.RUnlock()
	assert.Zero(t, physical)
}

func TestMemoryStore_ConcurrentAppendsSameSession(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, 24*time.Hour)

	id, err := s.Create(ctx)
	require.NoError(t, err)

	const writers = 16
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := s.Append(ctx, id, Turn{
					Question: fmt.Sprintf("w%d-q%d", w, i),
					Answer:   "a",
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	sess, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sess.Turns, writers*perWriter)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, 24*time.Hour)

	id, err := s.Append(ctx, "", Turn{Question: "original"})
	require.NoError(t, err)

	sess, err := s.Get(ctx, id)
	require.NoError(t, err)
	sess.Turns[0].Question = "mutated"

	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Turns[0].Question)
}
