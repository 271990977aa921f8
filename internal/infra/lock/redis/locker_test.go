package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayhub/internal/app/policies"
)

// fakeRedis implements SET NX and the release script against a map.
type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{keys: map[string]string{}} }

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *goredis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return goredis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeRedis) release(keys []string, args []interface{}) *goredis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[keys[0]] == args[0].(string) {
		delete(f.keys, keys[0])
		return goredis.NewCmdResult(int64(1), nil)
	}
	return goredis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *goredis.Cmd {
	return f.release(keys, args)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *goredis.Cmd {
	return f.release(keys, args)
}

func (f *fakeRedis) EvalRO(_ context.Context, _ string, keys []string, args ...interface{}) *goredis.Cmd {
	return f.release(keys, args)
}

func (f *fakeRedis) EvalShaRO(_ context.Context, _ string, keys []string, args ...interface{}) *goredis.Cmd {
	return f.release(keys, args)
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *goredis.BoolSliceCmd {
	return goredis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(context.Context, string) *goredis.StringCmd {
	return goredis.NewStringResult("sha", nil)
}

func (f *fakeRedis) holder(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.keys[key]
	return v, ok
}

func TestLockIsExclusiveUntilReleased(t *testing.T) {
	fake := newFakeRedis()
	l := &Locker{Client: fake, TTL: time.Second, RetryInterval: time.Millisecond, Prefix: "t:"}

	unlock, err := l.Lock(context.Background(), "property:flat-1")
	require.NoError(t, err)
	_, held := fake.holder("t:property:flat-1")
	assert.True(t, held)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "property:flat-1")
	assert.ErrorIs(t, err, policies.ErrLockTimeout)

	unlock()
	_, held = fake.holder("t:property:flat-1")
	assert.False(t, held)

	unlock2, err := l.Lock(context.Background(), "property:flat-1")
	require.NoError(t, err)
	unlock2()
}

func TestReleaseKeepsForeignToken(t *testing.T) {
	fake := newFakeRedis()
	l := &Locker{Client: fake, TTL: time.Second, Prefix: "t:"}
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	// the lease expired and another instance took it
	fake.mu.Lock()
	fake.keys["t:k"] = "someone-else"
	fake.mu.Unlock()

	unlock()
	owner, held := fake.holder("t:k")
	assert.True(t, held)
	assert.Equal(t, "someone-else", owner)
}
