package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

// fakeRedis keeps string keys in memory and understands the release script.
type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	evals   int
	failSet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet != nil {
		return redis.NewBoolResult(false, f.failSet)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if script != releaseLua || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, errors.New("unexpected script"))
	}
	if f.values[keys[0]] == args[0] {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRunLockAcquireRelease(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	lock := NewRunLockWith(rdb)

	unlock, err := lock.Acquire(ctx, "xetraetl:run:meta.csv", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, rdb.ttls["xetraetl:run:meta.csv"])

	holder, err := lock.Holder(ctx, "xetraetl:run:meta.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, holder)

	_, err = lock.Acquire(ctx, "xetraetl:run:meta.csv", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	assert.Equal(t, 1, rdb.evals, "release runs once")

	holder, err = lock.Holder(ctx, "xetraetl:run:meta.csv")
	require.NoError(t, err)
	assert.Empty(t, holder)

	again, err := lock.Acquire(ctx, "xetraetl:run:meta.csv", time.Minute)
	require.NoError(t, err)
	again()
}

func TestRunLockReleaseKeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	lock := NewRunLockWith(rdb)

	unlock, err := lock.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	// The lock expired and another run took it.
	rdb.values["k"] = "someone-else"
	unlock()
	assert.Equal(t, "someone-else", rdb.values["k"])
}

func TestRunLockAcquireError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failSet = errors.New("connection refused")

	_, err := NewRunLockWith(rdb).Acquire(context.Background(), "k", time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrLockHeld)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClientConfigOptions(t *testing.T) {
	opts := ClientConfig{Addr: "cache:6380", DB: 2, PoolSize: 4, TLSEnabled: true}.Options()
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	require.NotNil(t, opts.TLSConfig)

	assert.Nil(t, ClientConfig{Addr: "cache:6379"}.Options().TLSConfig)
}
