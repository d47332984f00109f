package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FailoverStore serves sessions from a durable tier and falls back to a
// memory tier when the durable tier is unreachable. Fallback triggers on
// connection-class errors only; a logical not-found passes through
// unchanged. The tiers are independent histories and are never
// reconciled: a session created during an outage lives in memory only.
type FailoverStore struct {
	durable Store
	memory  Store
	logger  *zap.Logger

	mu         sync.Mutex
	lastWarned time.Time
	warnEvery  time.Duration
	degraded   bool
}

// NewFailoverStore wraps durable with a memory fallback. durable may be
// nil (Redis not configured), in which case the memory tier serves
// everything and the store never reports degradation.
func NewFailoverStore(durable, memory Store, logger *zap.Logger) *FailoverStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FailoverStore{
		durable:   durable,
		memory:    memory,
		logger:    logger,
		warnEvery: time.Minute,
	}
}

func (f *FailoverStore) Create(ctx context.Context) (string, error) {
	if f.durable != nil {
		id, err := f.durable.Create(ctx)
		if !IsUnavailable(err) {
			f.recovered()
			return id, err
		}
		f.degrade(err)
	}
	return f.memory.Create(ctx)
}

func (f *FailoverStore) Append(ctx context.Context, id string, turn Turn) (string, error) {
	if f.durable != nil {
		newID, err := f.durable.Append(ctx, id, turn)
		if !IsUnavailable(err) {
			f.recovered()
			return newID, err
		}
		f.degrade(err)
	}
	return f.memory.Append(ctx, id, turn)
}

func (f *FailoverStore) Get(ctx context.Context, id string) (*Session, error) {
	if f.durable != nil {
		sess, err := f.durable.Get(ctx, id)
		if !IsUnavailable(err) {
			f.recovered()
			return sess, err
		}
		f.degrade(err)
	}
	return f.memory.Get(ctx, id)
}

func (f *FailoverStore) Delete(ctx context.Context, id string) error {
	// Delete hits both tiers so a session does not reappear after a
	// failover window closes.
	var durableErr error
	if f.durable != nil {
		durableErr = f.durable.Delete(ctx, id)
		if IsUnavailable(durableErr) {
			f.degrade(durableErr)
			durableErr = nil
		} else {
			f.recovered()
		}
	}
	if err := f.memory.Delete(ctx, id); err != nil {
		return err
	}
	return durableErr
}

func (f *FailoverStore) Ping(ctx context.Context) error {
	if f.durable != nil {
		err := f.durable.Ping(ctx)
		if err == nil {
			f.recovered()
			return nil
		}
		// A failed ping degrades immediately so Tier reflects the outage
		// before any session operation observes it.
		f.degrade(err)
	}
	return f.memory.Ping(ctx)
}

func (f *FailoverStore) Close() error {
	var firstErr error
	if f.durable != nil {
		firstErr = f.durable.Close()
	}
	if err := f.memory.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Tier reports which tier is currently serving: "redis" or "memory".
func (f *FailoverStore) Tier() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.durable != nil && !f.degraded {
		return "redis"
	}
	return "memory"
}

// degrade records the fallback and logs one warning per window so a
// flapping backend does not flood the log.
func (f *FailoverStore) degrade(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	first := !f.degraded
	f.degraded = true
	if first || time.Since(f.lastWarned) >= f.warnEvery {
		f.lastWarned = time.Now()
		f.logger.Warn("durable session store unavailable, serving from memory",
			zap.Error(err))
	}
}

func (f *FailoverStore) recovered() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded {
		f.degraded = false
		f.logger.Info("durable session store recovered")
	}
}
