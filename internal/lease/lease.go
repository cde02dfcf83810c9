package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

// Lease is a mutually exclusive per-document processing claim. Acquire
// returns false when another holder is already processing the document,
// so concurrent ingest runs cannot double-insert chunks.
type Lease interface {
	Acquire(ctx context.Context, documentID uint) (bool, error)
	Release(ctx context.Context, documentID uint) error
}

// releaseScript deletes the lease only if this process still holds it, so
// an expired lease taken over by someone else is never released from here.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

type RedisLease struct {
	client *redisv9.Client
	ttl    time.Duration
	holder string
}

func NewRedisLease(client *redisv9.Client, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLease{
		client: client,
		ttl:    ttl,
		holder: uuid.NewString(),
	}
}

func (l *RedisLease) Acquire(ctx context.Context, documentID uint) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(documentID), l.holder, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire processing lease failed: %w", err)
	}
	return ok, nil
}

func (l *RedisLease) Release(ctx context.Context, documentID uint) error {
	err := l.client.Eval(ctx, releaseScript, []string{l.key(documentID)}, l.holder).Err()
	if err != nil && err != redisv9.Nil {
		return fmt.Errorf("release processing lease failed: %w", err)
	}
	return nil
}

func (l *RedisLease) key(documentID uint) string {
	return fmt.Sprintf("ingest:lease:doc:%d", documentID)
}

// MemoryLease implements Lease in-process, for tests and single-node runs.
type MemoryLease struct {
	mu   sync.Mutex
	held map[uint]time.Time
	ttl  time.Duration
}

func NewMemoryLease(ttl time.Duration) *MemoryLease {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryLease{
		held: make(map[uint]time.Time),
		ttl:  ttl,
	}
}

func (l *MemoryLease) Acquire(_ context.Context, documentID uint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if expiry, ok := l.held[documentID]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	l.held[documentID] = time.Now().Add(l.ttl)
	return true, nil
}

func (l *MemoryLease) Release(_ context.Context, documentID uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, documentID)
	return nil
}
