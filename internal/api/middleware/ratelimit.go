package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimiter caps pushed events per signer in a fixed Redis window.
type RateLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
	logger   zerolog.Logger
}

// NewRateLimiter allows requests per window for each verified signer, or
// each client IP when no signer is known.
func NewRateLimiter(client *redis.Client, requests int, window time.Duration, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		client:   client,
		requests: requests,
		window:   window,
		logger:   logger,
	}
}

// requestKey returns the rate limit key for r: the verified signer when
// RequireAuth ran first, otherwise the client IP.
func requestKey(r *http.Request) string {
	if signer := SignerFromContext(r.Context()); signer != "" {
		return "ratelimit:agent:" + signer
	}
	return "ratelimit:ip:" + RealIP(r)
}

// RealIP extracts the client IP from proxy headers or the connection.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("Fly-Client-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// CheckAndIncrement counts one request against key.
// Returns (allowed, remaining, resetAt).
func (rl *RateLimiter) CheckAndIncrement(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := time.Now()
	bucket := now.UnixMilli() / rl.window.Milliseconds()
	windowKey := fmt.Sprintf("%s:%d", key, bucket)

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, rl.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, rl.requests, now, err
	}

	count := int(incr.Val())
	remaining := max(rl.requests-count, 0)
	resetAt := time.UnixMilli((bucket + 1) * rl.window.Milliseconds())
	return count <= rl.requests, remaining, resetAt, nil
}

// Middleware rejects requests over the limit with 429. Redis failures
// let the request through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := requestKey(r)
		allowed, remaining, resetAt, err := rl.CheckAndIncrement(r.Context(), key)
		if err != nil {
			rl.logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(max(int(time.Until(resetAt).Seconds()), 1)))
			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", RealIP(r)).
				Str("agent", SignerFromContext(r.Context())).
				Str("endpoint", r.URL.Path).
				Msg("rate limit exceeded")
			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
