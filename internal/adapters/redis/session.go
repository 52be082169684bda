package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"review_analysis/internal/adapters/observability"
	"review_analysis/internal/domain"
)

const keyPrefix = "review_session:"

// SessionStore keeps review sets as JSON strings with a TTL.
type SessionStore struct {
	c   *redis.Client
	ttl time.Duration
}

func New(addr, pass string, db int, ttl time.Duration) *SessionStore {
	return &SessionStore{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), ttl: ttl}
}

func (r *SessionStore) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *SessionStore) Close() error { return r.c.Close() }

func (r *SessionStore) Get(ctx context.Context, id string) (domain.ReviewSet, bool, error) {
	v, err := r.c.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveSession("redis", "miss")
		return domain.ReviewSet{}, false, nil
	}
	if err != nil {
		observability.ObserveSession("redis", "error")
		return domain.ReviewSet{}, false, err
	}
	var set domain.ReviewSet
	if err := json.Unmarshal(v, &set); err != nil {
		observability.ObserveSession("redis", "error")
		return domain.ReviewSet{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	observability.ObserveSession("redis", "hit")
	return set, true, nil
}

func (r *SessionStore) Put(ctx context.Context, id string, set domain.ReviewSet) error {
	b, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.c.Set(ctx, keyPrefix+id, b, r.ttl).Err(); err != nil {
		observability.ObserveSession("redis", "error")
		return fmt.Errorf("set session %s: %w", id, err)
	}
	observability.ObserveSession("redis", "set")
	return nil
}
