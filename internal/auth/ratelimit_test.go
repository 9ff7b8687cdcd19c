package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gearloop/assetloan/internal/cache"
)

func newTestRateLimiter(t *testing.T) *RateLimiter {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRateLimiter(cache.New(rdb, logger), 15*time.Minute)
}

// TestRateLimiter_LoginTierBudget exercises Auth-Idem: repeated identical
// login attempts from one IP stay within budget, and the attempt past the
// login tier's budget is rejected.
func TestRateLimiter_LoginTierBudget(t *testing.T) {
	rl := newTestRateLimiter(t)
	ctx := context.Background()
	const ip = "203.0.113.7"

	for i := 1; i <= TierLogin.budget; i++ {
		result, err := rl.Check(ctx, TierLogin, ip)
		if err != nil {
			t.Fatalf("Check (attempt %d): %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("attempt %d: Allowed = false, want true (budget %d)", i, TierLogin.budget)
		}
	}

	result, err := rl.Check(ctx, TierLogin, ip)
	if err != nil {
		t.Fatalf("Check (over budget): %v", err)
	}
	if result.Allowed {
		t.Error("Allowed = true after exceeding the login tier budget, want false")
	}
}

func TestRateLimiter_SeparateIPsDoNotShareABudget(t *testing.T) {
	rl := newTestRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < TierLogin.budget; i++ {
		if _, err := rl.Check(ctx, TierLogin, "203.0.113.1"); err != nil {
			t.Fatalf("Check ip1: %v", err)
		}
	}

	result, err := rl.Check(ctx, TierLogin, "203.0.113.2")
	if err != nil {
		t.Fatalf("Check ip2: %v", err)
	}
	if !result.Allowed {
		t.Error("a fresh IP should not inherit another IP's exhausted budget")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := newTestRateLimiter(t)
	ctx := context.Background()
	const ip = "203.0.113.9"

	for i := 0; i < TierLogin.budget; i++ {
		if _, err := rl.Check(ctx, TierLogin, ip); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}

	if err := rl.Reset(ctx, TierLogin, ip); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	result, err := rl.Check(ctx, TierLogin, ip)
	if err != nil {
		t.Fatalf("Check after reset: %v", err)
	}
	if !result.Allowed {
		t.Error("Allowed = false right after Reset, want true")
	}
}

func TestRateLimiter_Middleware_RejectsOverBudget(t *testing.T) {
	rl := newTestRateLimiter(t)
	mw := rl.Middleware(TierLogin)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i <= TierLogin.budget; i++ {
		r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		r.RemoteAddr = "203.0.113.20:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		last = w
	}

	if last.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", last.Code, http.StatusTooManyRequests)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header on the rejected request")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"X-Forwarded-For single", func(r *http.Request) { r.Header.Set("X-Forwarded-For", "198.51.100.1") }, "198.51.100.1"},
		{"X-Forwarded-For list takes first", func(r *http.Request) { r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1") }, "198.51.100.1"},
		{"X-Real-IP", func(r *http.Request) { r.Header.Set("X-Real-IP", "198.51.100.2") }, "198.51.100.2"},
		{"falls back to RemoteAddr", func(r *http.Request) { r.RemoteAddr = "198.51.100.3:4000" }, "198.51.100.3:4000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
