package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT LOCKER
// ══════════════════════════════════════════════════════════════════════════════

// LockClient is the subset of the client the locker needs.
type LockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// releaseScript deletes the lock only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AccountLocker serializes commands per account across processes.
type AccountLocker struct {
	client LockClient
	ttl    time.Duration
	poll   time.Duration
	logger *slog.Logger
}

// LockerOption configures an AccountLocker.
type LockerOption func(*AccountLocker)

// WithLockTTL sets how long a lock lives if never released.
func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *AccountLocker) { l.ttl = ttl }
}

// WithPollInterval sets how often a waiting caller retries.
func WithPollInterval(d time.Duration) LockerOption {
	return func(l *AccountLocker) { l.poll = d }
}

// WithLockerLogger sets the logger.
func WithLockerLogger(logger *slog.Logger) LockerOption {
	return func(l *AccountLocker) { l.logger = logger }
}

// NewAccountLocker creates a locker.
func NewAccountLocker(client LockClient, opts ...LockerOption) *AccountLocker {
	l := &AccountLocker{
		client: client,
		ttl:    TTLAccountLock,
		poll:   25 * time.Millisecond,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock implements uow.Locker. It waits until the lock is acquired or ctx is done.
func (l *AccountLocker) Lock(ctx context.Context, accountID string) (func(), error) {
	key := LockKey(accountID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				l.logger.Warn("failed to release account lock",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
		})
	}, nil
}
