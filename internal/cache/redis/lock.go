package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

// releaseLua deletes the lock only while it still carries the caller's
// token, so a run whose lock expired cannot release its successor's lock.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const releaseTimeout = 5 * time.Second

// Cmdable is the subset of go-redis the lock uses.
type Cmdable interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RunLock implements domain.LockManager with SET NX and a token-checked
// release.
type RunLock struct {
	rdb Cmdable
}

// NewRunLock creates a RunLock on the client's connection.
func NewRunLock(c *Client) *RunLock {
	return NewRunLockWith(c.rdb)
}

// NewRunLockWith creates a RunLock on any go-redis command interface, such as
// a cluster or ring client.
func NewRunLockWith(rdb Cmdable) *RunLock {
	return &RunLock{rdb: rdb}
}

// Acquire takes the lock named key for at most ttl. The returned function
// releases it and may be called more than once. A lock held elsewhere yields
// an error wrapping domain.ErrLockHeld.
func (l *RunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: acquire %s: %w", key, domain.ErrLockHeld)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled at this point.
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = l.rdb.Eval(ctx, releaseLua, []string{key}, token).Err()
		})
	}, nil
}

// Holder returns the token of the current lock holder, or "" when the lock
// is free.
func (l *RunLock) Holder(ctx context.Context, key string) (string, error) {
	v, err := l.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis: holder %s: %w", key, err)
	}
	return v, nil
}

var _ domain.LockManager = (*RunLock)(nil)
