// Package session maintains per-caller conversational history.
//
// Sessions are keyed by an opaque id, expire after a fixed TTL of
// inactivity, and are owned exclusively by the Store: no other component
// mutates them. The production store is two-tiered: Redis first, process
// memory as a transparent fallback when Redis is unreachable (see
// FailoverStore). The tiers are never reconciled.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates an unknown or expired session id.
	ErrNotFound = errors.New("session not found")

	// ErrUnavailable indicates a connection-class backend failure.
	// The failover tier recognizes it; callers of the assembled store
	// never see it.
	ErrUnavailable = errors.New("session backend unavailable")
)

// SourceRef is a compact reference to a supporting excerpt.
type SourceRef struct {
	Excerpt string  `json:"excerpt"`
	Origin  string  `json:"origin"`
	Score   float64 `json:"score"`
}

// Turn is one question/answer exchange.
type Turn struct {
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	Sources    []SourceRef `json:"sources,omitempty"`
	Confidence float64     `json:"confidence"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Session is an ordered conversation history.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     []Turn    `json:"turns"`
}

// Store is the session storage contract.
//
// Concurrent Appends against the same id serialize: history within one
// session never interleaves. A session older than the TTL is treated as
// not-found and is eligible for physical removal.
type Store interface {
	// Create allocates a new empty session and returns its id.
	Create(ctx context.Context) (string, error)

	// Append adds a turn. An empty or unknown id creates a session
	// implicitly; the (possibly new) session id is returned. Appending
	// refreshes the session's last-updated timestamp.
	Append(ctx context.Context, id string, turn Turn) (string, error)

	// Get returns the session, or ErrNotFound for unknown/expired ids.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes the session. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Ping checks backend reachability.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// IsUnavailable reports whether err is a connection-class failure that
// the failover tier should absorb. Logical not-found never qualifies.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
