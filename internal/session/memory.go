package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memoryStripes bounds lock granularity: sessions hash onto a fixed set
// of mutexes so concurrent appends to different sessions rarely contend.
const memoryStripes = 64

// MemoryStore keeps sessions in process memory. It is the fallback tier
// behind FailoverStore and also serves single-process deployments that
// run without Redis. Contents are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	stripes  [memoryStripes]sync.Mutex

	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryStore creates an in-memory store and starts its expiry
// janitor. sweep controls how often expired sessions are physically
// removed; expiry itself is enforced logically on every read.
func NewMemoryStore(ttl, sweep time.Duration, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go s.janitor(sweep)
	return s
}

func (s *MemoryStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	s.sessions[id] = &Session{ID: id, CreatedAt: now, UpdatedAt: now}
	s.mu.Unlock()

	return id, nil
}

func (s *MemoryStore) Append(ctx context.Context, id string, turn Turn) (string, error) {
	if id == "" {
		var err error
		if id, err = s.Create(ctx); err != nil {
			return "", err
		}
	}

	// Striped per-id lock: appends to the same session serialize, the
	// global map lock is held only for lookups.
	stripe := &s.stripes[stripeFor(id)]
	stripe.Lock()
	defer stripe.Unlock()

	now := s.now()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok && s.expired(sess, now) {
		delete(s.sessions, id)
		ok = false
	}
	if !ok {
		// Unknown or expired id: start a fresh session under a new id so
		// callers never silently resurrect dropped history.
		id = uuid.NewString()
		sess = &Session{ID: id, CreatedAt: now}
		s.sessions[id] = sess
	}
	sess.Turns = append(sess.Turns, turn)
	sess.UpdatedAt = now
	s.mu.Unlock()

	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess, now) {
		return nil, ErrNotFound
	}

	// Copy out so callers cannot mutate stored state.
	return &Session{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
		Turns:     append([]Turn(nil), sess.Turns...),
	}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds: process memory has no transport to fail.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// Len reports the number of live (unexpired) sessions.
func (s *MemoryStore) Len() int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sess := range s.sessions {
		if !s.expired(sess, now) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.UpdatedAt) > s.ttl
}

func (s *MemoryStore) janitor(sweep time.Duration) {
	if sweep <= 0 {
		sweep = time.Minute
	}
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *MemoryStore) sweepExpired() {
	now := s.now()
	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug("swept expired sessions", zap.Int("removed", removed))
	}
}

func stripeFor(id string) int {
	// FNV-1a, inlined; the stripe count is a power of two.
	var h uint32 = 2166136261
	for i := 0; i < len(id); i++ {
		h ^= uint32(id[i])
		h *= 16777619
	}
	return int(h % memoryStripes)
}
