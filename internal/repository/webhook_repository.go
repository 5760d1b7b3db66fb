package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultWebhookTTL is how long a message id is remembered
const DefaultWebhookTTL = 24 * time.Hour

// IdempotencyStore remembers processed webhook message ids
type IdempotencyStore interface {
	// MarkSeen records the id and reports true the first time it is seen
	MarkSeen(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
}

// RedisIdempotencyStore shares seen message ids through Redis
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore creates a store on an existing Redis client
func NewRedisIdempotencyStore(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "supplier:webhook:"
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// MarkSeen uses SETNX so concurrent deliveries of one message race safely
func (s *RedisIdempotencyStore) MarkSeen(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+messageID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark webhook %s: %w", messageID, err)
	}
	return ok, nil
}

// MemoryIdempotencyStore is the in-process fallback when Redis is not configured
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	maxSize int
	now     func() time.Time
}

// NewMemoryIdempotencyStore creates a store holding at most maxSize ids
func NewMemoryIdempotencyStore(maxSize int) *MemoryIdempotencyStore {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryIdempotencyStore{
		seen:    make(map[string]time.Time),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (s *MemoryIdempotencyStore) MarkSeen(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.seen[messageID]; ok && now.Before(exp) {
		return false, nil
	}
	if len(s.seen) >= s.maxSize {
		s.prune(now)
	}
	s.seen[messageID] = now.Add(ttl)
	return true, nil
}

// prune drops expired ids, then the ones closest to expiry until there is room
func (s *MemoryIdempotencyStore) prune(now time.Time) {
	for id, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, id)
		}
	}
	for len(s.seen) >= s.maxSize {
		var oldestID string
		var oldest time.Time
		for id, exp := range s.seen {
			if oldestID == "" || exp.Before(oldest) {
				oldestID, oldest = id, exp
			}
		}
		delete(s.seen, oldestID)
	}
}
