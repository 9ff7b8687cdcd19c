package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gearloop/assetloan/internal/apperr"
	"github.com/gearloop/assetloan/internal/cache"
	"github.com/gearloop/assetloan/internal/httpserver"
)

// Tier is a rate-limit budget class (§4.11). Requests are counted per
// client IP and tier in a fixed window: the counter starts with the first
// request and expires one window later. The window does not slide.
type Tier struct {
	name   string
	budget int
}

var (
	TierLogin = Tier{name: "login", budget: 5}
	TierMutate = Tier{name: "mutate", budget: 30}
	TierGeneral = Tier{name: "general", budget: 100}
)

// RateLimiter limits requests per IP per tier using the cache's
// INCR+EXPIRE pattern.
type RateLimiter struct {
	cache  *cache.Cache
	window time.Duration
}

// NewRateLimiter creates a rate limiter whose counters last window. It
// applies no default of its own; config.RateLimitWindow defaults to 15
// minutes.
func NewRateLimiter(c *cache.Cache, window time.Duration) *RateLimiter {
	return &RateLimiter{cache: c, window: window}
}

// Result holds the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time
}

// Check increments the counter for (tier, ip) and reports whether the
// request is allowed under the tier's budget.
func (rl *RateLimiter) Check(ctx context.Context, tier Tier, ip string) (*Result, error) {
	key := rl.key(tier, ip)

	count, err := rl.cache.Incr(ctx, key, rl.window)
	if err != nil {
		return nil, fmt.Errorf("checking rate limit: %w", err)
	}

	if count > int64(tier.budget) {
		ttl, err := rl.cache.TTL(ctx, key)
		if err != nil {
			ttl = rl.window
		}
		return &Result{Allowed: false, Remaining: 0, RetryAt: time.Now().Add(ttl)}, nil
	}

	return &Result{Allowed: true, Remaining: tier.budget - int(count)}, nil
}

// Reset clears the counter for (tier, ip), e.g. after a successful login.
func (rl *RateLimiter) Reset(ctx context.Context, tier Tier, ip string) error {
	return rl.cache.Delete(ctx, rl.key(tier, ip))
}

func (rl *RateLimiter) key(tier Tier, ip string) string {
	return fmt.Sprintf("ratelimit:%s:%s", tier.name, ip)
}

// Middleware returns HTTP middleware enforcing tier's budget per client IP,
// responding 429 with Retry-After when exceeded.
func (rl *RateLimiter) Middleware(tier Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			result, err := rl.Check(r.Context(), tier, ip)
			if err != nil {
				// Fail open: the cache is not the source of truth for
				// anything except revocation; an outage here must not
				// block traffic (§4.2).
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(result.RetryAt).Seconds()), 10))
				httpserver.RespondError(w, apperr.KindRateLimited, "rate limit exceeded, retry later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client address, preferring X-Forwarded-For then
// X-Real-IP before falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return fwd[:idx]
		}
		return fwd
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	return r.RemoteAddr
}
