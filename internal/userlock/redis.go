package userlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	DefaultLockTTL       = 30 * time.Second
	DefaultRetryInterval = 50 * time.Millisecond
	lockKeyPrefix        = "balance_lock:"
)

var ErrLockNotHeld = errors.New("balance lock not held")

// Only the token holder may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a Locker shared by every process using the same Redis.
// While held, the lease is renewed every RenewInterval; a lock whose holder
// dies expires after TTL. If renewal fails the lock can lapse mid-cycle, in
// which case the version check on the user row still rejects a stale write.
type RedisLocker struct {
	Client        *redis.Client
	TTL           time.Duration
	RetryInterval time.Duration
	RenewInterval time.Duration // defaults to TTL/3
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{Client: client, TTL: ttl, RetryInterval: DefaultRetryInterval}
}

func LockKey(userID uint) string {
	return fmt.Sprintf("%s%d", lockKeyPrefix, userID)
}

func (l *RedisLocker) Lock(ctx context.Context, userID uint) (func(), error) {
	key := LockKey(userID)
	token := uuid.New().String()

	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// Released with a fresh context so a cancelled caller still frees the key.
			_ = l.release(context.Background(), key, token)
		})
	}, nil
}

// keepAlive extends the lease until stop is closed or the key no longer
// carries token.
func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.RenewInterval
	if interval <= 0 {
		interval = l.TTL / 3
	}
	if interval <= 0 {
		interval = DefaultLockTTL / 3
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.TTL)
			n, err := renewScript.Run(ctx, l.Client, []string{key}, token, l.TTL.Milliseconds()).Int()
			cancel()
			if err != nil || n == 0 {
				return
			}
		}
	}
}

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.Client, []string{key}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
