// Package ratelimit throttles write requests with a Redis fixed-window
// counter shared by every instance of the service.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/eventhub/internal/auth"
)

const keyPrefix = "eventhub:ratelimit:"

// Limiter counts requests per identity in fixed windows.
type Limiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
	logger *slog.Logger
}

// New returns a limiter allowing limit requests per window.
func New(client redis.Cmdable, limit int64, window time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{redis: client, limit: limit, window: window, logger: logger}
}

// Allow counts one request for id and reports whether it is within the
// limit. The window starts on the first request and expires with its key.
// INCR and EXPIRE NX run in one MULTI/EXEC, so every write to the counter
// also makes sure it has a TTL.
func (l *Limiter) Allow(ctx context.Context, id string) (bool, error) {
	key := keyPrefix + id
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("count %s: %w", key, err)
	}
	return incr.Val() <= l.limit, nil
}

// Middleware rejects requests over the limit with 429. Authenticated
// callers are counted per user, everyone else per client IP. When Redis is
// unreachable requests are let through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := l.Allow(r.Context(), identity(r))
		if err != nil {
			l.logger.WarnContext(r.Context(), "rate limiter unavailable", slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "Too many requests. Please try again later.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identity(r *http.Request) string {
	if sess, ok := auth.FromContext(r.Context()); ok && sess.UserID != "" {
		return "user:" + sess.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
