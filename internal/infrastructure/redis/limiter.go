package redisinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-otp-gate/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "otpgate:otp-fail:"

// AttemptLimiter counts failed OTP submissions per email in a fixed window.
// Once maxAttempts failures are recorded, Check rejects until the window
// expires or Reset is called.
type AttemptLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	window      time.Duration
}

func NewAttemptLimiter(client redis.UniversalClient, maxAttempts int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{redis: client, maxAttempts: maxAttempts, window: window}
}

// Check returns domain.ErrTooManyAttempts when the failure budget for email is spent.
func (l *AttemptLimiter) Check(ctx context.Context, email string) error {
	count, err := l.redis.Get(ctx, failureKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", domain.ErrLimiterUnavailable, err)
	}
	if count >= int64(l.maxAttempts) {
		return domain.ErrTooManyAttempts
	}
	return nil
}

// RecordFailure counts one failed submission. The window starts at the first
// failure; INCR and EXPIRE NX run in one MULTI/EXEC so a counter never lives
// without a TTL.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, email string) error {
	key := failureKey(email)
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLimiterUnavailable, err)
	}
	return nil
}

// Reset clears the failure counter, called after a successful verification.
func (l *AttemptLimiter) Reset(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, failureKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLimiterUnavailable, err)
	}
	return nil
}

func failureKey(email string) string {
	return keyPrefix + email
}
