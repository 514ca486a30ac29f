package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter throttles repeated failed logins per account using redis
// counters. A nil limiter never blocks, so the auth flow works without
// redis in tests.
type LoginLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

// NewLoginLimiter constructs a limiter allowing max failures per window.
func NewLoginLimiter(client *redis.Client, max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{client: client, max: max, window: window}
}

func (l *LoginLimiter) key(userName string) string {
	return fmt.Sprintf("login_attempts:%s", userName)
}

// Blocked reports whether the account has exhausted its attempts.
func (l *LoginLimiter) Blocked(ctx context.Context, userName string) (bool, error) {
	if l == nil || l.client == nil {
		return false, nil
	}
	count, err := l.client.Get(ctx, l.key(userName)).Int()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return count >= l.max, nil
}

// RecordFailure increments the failure counter, starting the window on the
// first failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, userName string) error {
	if l == nil || l.client == nil {
		return nil
	}
	count, err := l.client.Incr(ctx, l.key(userName)).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		return l.client.Expire(ctx, l.key(userName), l.window).Err()
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, userName string) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Del(ctx, l.key(userName)).Err()
}
