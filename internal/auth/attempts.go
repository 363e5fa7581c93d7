package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MaxLoginAttempts is how many failed lookups a client gets before lockout.
const MaxLoginAttempts = 3

// ErrTooManyAttempts means the client must contact student affairs or wait for
// the lockout to expire.
var ErrTooManyAttempts = errors.New("too many failed login attempts")

// Attempts counts failed logins per client in Redis.
type Attempts struct {
	client *redis.Client
	prefix string
	max    int
	ttl    time.Duration
}

// NewAttempts builds a counter that locks a client out for ttl after max
// failures.
func NewAttempts(client *redis.Client, max int, ttl time.Duration) *Attempts {
	if max <= 0 {
		max = MaxLoginAttempts
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Attempts{client: client, prefix: "portal:login:attempts:", max: max, ttl: ttl}
}

func (a *Attempts) key(client string) string { return a.prefix + client }

// Check returns ErrTooManyAttempts when client is locked out.
func (a *Attempts) Check(ctx context.Context, client string) error {
	n, err := a.client.Get(ctx, a.key(client)).Int()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("attempts: read: %w", err)
	}
	if n >= a.max {
		return ErrTooManyAttempts
	}
	return nil
}

// Fail records one failed login and returns the attempts left.
func (a *Attempts) Fail(ctx context.Context, client string) (int, error) {
	key := a.key(client)
	pipe := a.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, a.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("attempts: record: %w", err)
	}
	left := a.max - int(incr.Val())
	if left < 0 {
		left = 0
	}
	return left, nil
}

// Reset clears the counter of client.
func (a *Attempts) Reset(ctx context.Context, client string) error {
	return a.client.Del(ctx, a.key(client)).Err()
}
