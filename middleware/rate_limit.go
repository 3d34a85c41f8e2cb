package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dontidros/natours-project/logger"
	"github.com/dontidros/natours-project/utils/errors"
)

var ErrTooManyRequests = errors.NewAPIError(errors.CodeRateLimited,
	"Too many requests from this IP, please try again in an hour", http.StatusTooManyRequests)

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Requests int           // max requests per window
	Window   time.Duration // fixed window length
	KeyFunc  func(r *http.Request) string
	SkipFunc func(r *http.Request) bool
}

// RateLimiter counts requests per key in fixed Redis windows.
type RateLimiter struct {
	client *redis.Client
	config RateLimitConfig
	errors *ErrorHandler
}

func NewRateLimiter(client *redis.Client, config RateLimitConfig, eh *ErrorHandler) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientIPKey
	}
	return &RateLimiter{client: client, config: config, errors: eh}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.config.SkipFunc != nil && rl.config.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			count, ttl, err := rl.hit(r.Context(), rl.config.KeyFunc(r))
			if err != nil {
				// Redis trouble never blocks traffic.
				logger.WarnContext(r.Context(), "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			remaining := max(rl.config.Requests-int(count), 0)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if int(count) > rl.config.Requests {
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
				rl.errors.Write(w, r, ErrTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// hit increments the key's counter, starting its window on the first hit.
func (rl *RateLimiter) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	key = "ratelimit:" + key
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.config.Window).Err(); err != nil {
			return 0, 0, err
		}
		return count, rl.config.Window, nil
	}
	ttl, err := rl.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// A crash between INCR and EXPIRE would leave the counter forever.
		if err := rl.client.Expire(ctx, key, rl.config.Window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = rl.config.Window
	}
	return count, ttl, nil
}

// SkipNonAPI limits only /api routes.
func SkipNonAPI(r *http.Request) bool {
	return !IsAPI(r)
}

func ClientIPKey(r *http.Request) string {
	return "ip:" + getClientIP(r)
}

// getClientIP extracts the real client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
