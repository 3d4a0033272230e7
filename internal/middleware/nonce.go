package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const (
	noncePrefix          = "bunny:nonce:v1:"
	defaultNonceCapacity = 100_000
)

// NonceStore remembers caller nonces for the replay window.
type NonceStore interface {
	// Claim marks key as used and reports whether it was unused before.
	Claim(ctx context.Context, key string) (bool, error)
}

// RedisNonceStore shares used nonces across every API replica.
type RedisNonceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisNonceStore keeps each nonce for ttl, which should cover twice the
// allowed clock skew.
func NewRedisNonceStore(client *redis.Client, ttl time.Duration) *RedisNonceStore {
	return &RedisNonceStore{client: client, ttl: ttl}
}

func (s *RedisNonceStore) Claim(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, noncePrefix+key, 1, s.ttl).Result()
}

// MemoryNonceStore is a single-process store for deployments without Redis.
// Once capacity is reached the oldest nonces are forgotten early.
type MemoryNonceStore struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

// NewMemoryNonceStore holds up to capacity nonces for ttl each.
func NewMemoryNonceStore(capacity int, ttl time.Duration) *MemoryNonceStore {
	return &MemoryNonceStore{seen: expirable.NewLRU[string, struct{}](capacity, nil, ttl)}
}

func (s *MemoryNonceStore) Claim(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen.Peek(key); ok {
		return false, nil
	}
	s.seen.Add(key, struct{}{})
	return true, nil
}
