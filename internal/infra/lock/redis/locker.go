package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"stayhub/internal/app/policies"
)

// releaseScript deletes the key only while it still holds our token, so an expired
// lock re-acquired by another instance is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	goredis.Scripter
}

// Locker is a per-key lease held in Redis with SET NX PX. The TTL bounds how long a
// crashed holder can block others; config validation keeps it above the persist timeout.
type Locker struct {
	Client        client
	TTL           time.Duration
	RetryInterval time.Duration
	Prefix        string
	Logger        *slog.Logger
}

func New(c *goredis.Client, ttl time.Duration, logger *slog.Logger) *Locker {
	return &Locker{Client: c, TTL: ttl, RetryInterval: 25 * time.Millisecond, Prefix: "stayhub:lock:", Logger: logger}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.Prefix + key
	token := uuid.NewString()
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	retry := l.RetryInterval
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	for {
		ok, err := l.Client.SetNX(ctx, full, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", policies.ErrLockTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return l.release(full, token), nil
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", policies.ErrLockTimeout, key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *Locker) release(key, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := releaseScript.Run(ctx, l.Client, []string{key}, token).Int()
		if err != nil || n == 0 {
			logger := l.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("redis lock not released", "key", key, "released", n, "error", err)
		}
	}
}

var _ policies.PropertyLocker = (*Locker)(nil)
