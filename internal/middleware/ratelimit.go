package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter throttles requests per client IP. With a redis client the
// counters live in redis so the limit holds across instances; without one
// it falls back to an in-process sliding window.
type RateLimiter struct {
	name   string
	limit  int
	window time.Duration
	rdb    *redis.Client
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window.
// rdb may be nil.
func NewRateLimiter(name string, limit int, window time.Duration, rdb *redis.Client, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		name:   name,
		limit:  limit,
		window: window,
		rdb:    rdb,
		logger: logger,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Middleware rejects over-limit clients with 429 and a Retry-After hint.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(r.Context(), clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			http.Error(w, "Too many requests, please try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(ctx context.Context, ip string) bool {
	if l.rdb != nil {
		return l.allowRedis(ctx, ip)
	}
	return l.allowLocal(ip)
}

// allowRedis runs a fixed-window counter keyed per client. A redis outage
// fails open so the limiter never takes the API down with it.
func (l *RateLimiter) allowRedis(ctx context.Context, ip string) bool {
	key := fmt.Sprintf("ratelimit:%s:%s", l.name, ip)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("rate limit counter unavailable", zap.Error(err))
		return true
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.Warn("rate limit expiry not set", zap.Error(err))
		}
	}

	return count <= int64(l.limit)
}

func (l *RateLimiter) allowLocal(ip string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.hits[ip][:0]
	for _, t := range l.hits[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.hits[ip] = recent
		return false
	}

	l.hits[ip] = append(recent, now)
	return true
}

// clientIP prefers the first X-Forwarded-For hop, then the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
