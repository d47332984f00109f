package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig configures the durable session tier.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

// RedisStore persists sessions in Redis so histories survive restarts.
//
// Layout per session:
//
//	session:<id>:meta   hash  {created_at, updated_at}
//	session:<id>:turns  list  JSON-encoded turns, RPUSH order
//
// RPUSH is atomic per key, which gives Append its serialization without
// client-side locking. Both keys carry the session TTL, refreshed on
// every append.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies reachability.
func NewRedisStore(cfg RedisConfig, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &RedisStore{client: client, ttl: ttl, logger: logger}, nil
}

func metaKey(id string) string  { return "session:" + id + ":meta" }
func turnsKey(id string) string { return "session:" + id + ":turns" }

func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, metaKey(id), "created_at", now, "updated_at", now)
	pipe.Expire(ctx, metaKey(id), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", wrapRedisErr(err)
	}
	return id, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, turn Turn) (string, error) {
	if id == "" {
		var err error
		if id, err = s.Create(ctx); err != nil {
			return "", err
		}
	} else {
		exists, err := s.client.Exists(ctx, metaKey(id)).Result()
		if err != nil {
			return "", wrapRedisErr(err)
		}
		if exists == 0 {
			// Unknown or expired id: start a fresh session rather than
			// resurrecting dropped history under the old id.
			if id, err = s.Create(ctx); err != nil {
				return "", err
			}
		}
	}

	payload, err := json.Marshal(turn)
	if err != nil {
		return "", fmt.Errorf("encoding turn: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, turnsKey(id), payload)
	pipe.HSet(ctx, metaKey(id), "updated_at", now)
	pipe.Expire(ctx, metaKey(id), s.ttl)
	pipe.Expire(ctx, turnsKey(id), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", wrapRedisErr(err)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	meta, err := s.client.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return nil, wrapRedisErr(err)
	}
	if len(meta) == 0 {
		return nil, ErrNotFound
	}

	raw, err := s.client.LRange(ctx, turnsKey(id), 0, -1).Result()
	if err != nil {
		return nil, wrapRedisErr(err)
	}

	sess := &Session{ID: id, Turns: make([]Turn, 0, len(raw))}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, meta["created_at"])
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, meta["updated_at"])

	for i, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decoding turn %d of session %s: %w", i, id, err)
		}
		sess.Turns = append(sess.Turns, t)
	}
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, metaKey(id), turnsKey(id)).Err(); err != nil {
		return wrapRedisErr(err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrapRedisErr(err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// wrapRedisErr classifies go-redis errors. redis.Nil is a logical miss;
// everything else from the client is treated as a connection-class
// failure the failover tier may absorb.
func wrapRedisErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
