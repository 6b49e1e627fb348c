package invoice

import (
	"context"
	"sync"
	"time"

	"campaign-billing/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker enforces at-most-one-active-transition per invoice request.
// Acquire is try-only: a second concurrent transition on the same id is
// rejected outright rather than queued, so a human double-submit can never
// issue twice.
type Locker interface {
	// Acquire returns ok=false when another transition holds the lease.
	// On ok=true the returned release func must be called once the provider
	// call and the store update have both completed (or both failed).
	Acquire(ctx context.Context, workspaceID, requestID string) (release func(), ok bool, err error)
}

// MemoryLocker is an in-process Locker for tests and single-instance
// deployments.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, workspaceID, requestID string) (func(), bool, error) {
	_ = ctx
	k := workspaceID + "/" + requestID

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[k]; taken {
		return nil, false, nil
	}
	l.held[k] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, k)
			l.mu.Unlock()
		})
	}
	return release, true, nil
}

// RedisLocker backs the transition lease with Redis so the discipline holds
// across API instances. The TTL bounds a leaked lease after a crash.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, workspaceID, requestID string) (func(), bool, error) {
	key := "billing:transition:" + workspaceID + "/" + requestID
	owner := uuid.NewString()

	ok, err := utils.AcquireLease(ctx, l.rdb, key, owner, l.ttl)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// Release must not inherit a cancelled request context.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = utils.ReleaseLease(rctx, l.rdb, key, owner)
		})
	}
	return release, true, nil
}
