package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

const (
	defaultTTL  = 2 * time.Minute
	defaultPoll = 50 * time.Millisecond
	keyPrefix   = "chatrelay:session-lock:"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key's expiry only if it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a SessionLocker shared by every replica pointing at the same Redis.
// The TTL bounds how long a crashed holder can block a session. A live
// holder renews its lease every ttl/3 until it unlocks.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	renew  time.Duration
	poll   time.Duration
}

var _ domain.SessionLocker = (*Redis)(nil)

// NewRedis parses a redis:// URL and pings the server.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisFromClient(client), nil
}

func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client, ttl: defaultTTL, renew: defaultTTL / 3, poll: defaultPoll}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Lock(ctx context.Context, sessionID domain.SessionID) (func(), error) {
	key := keyPrefix + string(sessionID)
	token := domain.NewID()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, domain.Unavailable("redis lock", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	// The lease outlives the caller's context; unlock is the only way to end it.
	holdCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.keepAlive(holdCtx, key, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done

			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
		})
	}, nil
}

// keepAlive extends the lease until ctx is cancelled or the key no longer
// holds token.
func (r *Redis) keepAlive(ctx context.Context, key, token string) {
	ticker := time.NewTicker(r.renew)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := renewScript.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int64()
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			// Transient; the next tick retries while the lease is still valid.
			observability.LoggerFromContext(ctx).Warn("session lock renewal failed", "key", key, "error", err)
		case n == 0:
			observability.LoggerFromContext(ctx).Error("session lock lost", "key", key)
			return
		}
	}
}
