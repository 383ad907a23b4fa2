package lease

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mind-engage/skillway/internal/logger"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every gateway instance.
type Redis struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
}

// DialRedis connects to addr and pings it.
func DialRedis(ctx context.Context, log *logger.Logger, addr string) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(log, rdb), nil
}

func NewRedis(log *logger.Logger, rdb goredis.UniversalClient) *Redis {
	return &Redis{log: log.With("service", "RedisLease"), rdb: rdb, prefix: "skillway:lease:"}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := newToken()
	full := r.prefix + key
	ok, err := r.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func() {
		// Release after the request context may be gone.
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, r.rdb, []string{full}, token).Err(); err != nil {
			r.log.Warn("lease release failed", "key", key, "error", err)
		}
	}, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
