package broker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptTracker counts failed deliveries of one message on one queue.
type AttemptTracker interface {
	// Incr records a failed attempt and returns the failure count so far.
	Incr(ctx context.Context, key string) (int, error)
	// Reset forgets the count once the message leaves the queue.
	Reset(ctx context.Context, key string) error
}

// AttemptKey identifies a delivery for attempt counting. Messages without a
// message id are keyed by a hash of their body.
func AttemptKey(queue string, d *Delivery) string {
	id := d.MessageID
	if id == "" {
		sum := sha256.Sum256(d.Body)
		id = "sha256:" + hex.EncodeToString(sum[:])
	}
	return queue + ":" + id
}

// MemoryAttemptTracker keeps counts in process. Counts are lost on restart
// and are not shared between instances.
type MemoryAttemptTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryAttemptTracker() *MemoryAttemptTracker {
	return &MemoryAttemptTracker{counts: make(map[string]int)}
}

func (t *MemoryAttemptTracker) Incr(_ context.Context, key string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key]++
	return t.counts[key], nil
}

func (t *MemoryAttemptTracker) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, key)
	return nil
}

const defaultAttemptTTL = 24 * time.Hour

// RedisAttemptTracker shares counts between consumer instances.
type RedisAttemptTracker struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisAttemptTracker creates a tracker whose keys expire after ttl of
// inactivity so abandoned counts do not accumulate.
func NewRedisAttemptTracker(client redis.Cmdable, ttl time.Duration) *RedisAttemptTracker {
	if ttl <= 0 {
		ttl = defaultAttemptTTL
	}
	return &RedisAttemptTracker{client: client, prefix: "cityfix:attempts:", ttl: ttl}
}

func (t *RedisAttemptTracker) Incr(ctx context.Context, key string) (int, error) {
	k := t.prefix + key
	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (t *RedisAttemptTracker) Reset(ctx context.Context, key string) error {
	return t.client.Del(ctx, t.prefix+key).Err()
}
