package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefixClient is the prefix for per-client window keys.
	KeyPrefixClient = "ratelimit:client:"
	// KeyPrefixService is the prefix for per-service window keys.
	KeyPrefixService = "ratelimit:service:"
)

// Result reports the outcome of a single window check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is a sliding-window rate limiter backed by a Redis sorted set
// per key. The window state is shared by every gateway instance; all four
// steps of a check run in a single MULTI/EXEC so concurrent checks on the
// same key never double-admit.
type Limiter struct {
	client        *redis.Client
	defaultLimit  int
	window        time.Duration
	serviceLimits map[string]int
}

// New creates a limiter. serviceLimits maps service name to its budget;
// services absent from the map use defaultLimit.
func New(client *redis.Client, defaultLimit int, window time.Duration, serviceLimits map[string]int) *Limiter {
	if defaultLimit < 1 {
		defaultLimit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		client:        client,
		defaultLimit:  defaultLimit,
		window:        window,
		serviceLimits: serviceLimits,
	}
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Check runs the sliding-window algorithm for key: prune markers older
// than the window, count what is left, record this attempt, refresh the
// key TTL so abandoned keys self-clean. The attempt is recorded even when
// the request is rejected, so retry storms keep the window saturated.
func (l *Limiter) Check(ctx context.Context, key string, limit int) (*Result, error) {
	if limit < 1 {
		limit = l.defaultLimit
	}

	now := time.Now()
	windowStart := now.Add(-l.window)

	var countCmd *redis.IntCmd
	var oldestCmd *redis.ZSliceCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatFloat(unixSeconds(windowStart), 'f', 6, 64))
		countCmd = pipe.ZCard(ctx, key)
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  unixSeconds(now),
			Member: uuid.NewString(),
		})
		pipe.Expire(ctx, key, l.window)
		oldestCmd = pipe.ZRangeWithScores(ctx, key, 0, 0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed for %s: %w", key, err)
	}

	count := int(countCmd.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(l.window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = fromUnixSeconds(oldest[0].Score).Add(l.window)
	}

	return &Result{
		Allowed:   count < limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// CheckClient checks the global per-client window.
func (l *Limiter) CheckClient(ctx context.Context, clientIP string) (*Result, error) {
	return l.Check(ctx, KeyPrefixClient+clientIP, l.defaultLimit)
}

// CheckService checks the per-service window using the service's own
// budget, falling back to the global default. This is applied in addition
// to the client-level check, never instead of it.
func (l *Limiter) CheckService(ctx context.Context, serviceName string) (*Result, error) {
	limit, ok := l.serviceLimits[serviceName]
	if !ok {
		limit = l.defaultLimit
	}
	return l.Check(ctx, KeyPrefixService+serviceName, limit)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*float64(time.Second)))
}
