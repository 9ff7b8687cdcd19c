package auth

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gearloop/assetloan/internal/cache"
)

// newTestTokenService backs a TokenService with a real redis.Client pointed
// at an in-process miniredis instance, the same pairing the pack's own
// Redis-backed services test against rather than a hand-rolled cache fake.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ts, err := NewTokenService(
		"test-access-token-secret-at-least-32-bytes",
		"test-refresh-token-secret-at-least-32-bytes",
		cache.New(rdb, logger),
	)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestTokenService_IssuePairAndVerify(t *testing.T) {
	ts := newTestTokenService(t)
	userID := uuid.New()
	ctx := context.Background()

	access, refresh, err := ts.IssuePair(userID, RoleManager)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	accessClaims, err := ts.VerifyAccess(ctx, access)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if accessClaims.Subject != userID.String() || accessClaims.Role != RoleManager {
		t.Errorf("access claims = %+v, want subject %q role %q", accessClaims, userID, RoleManager)
	}

	refreshClaims, err := ts.VerifyRefresh(ctx, refresh)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if refreshClaims.Subject != userID.String() {
		t.Errorf("refresh Subject = %q, want %q", refreshClaims.Subject, userID)
	}

	// The two signing keys are independent: a refresh token must not verify
	// as an access token or vice versa.
	if _, err := ts.VerifyAccess(ctx, refresh); err == nil {
		t.Error("VerifyAccess unexpectedly accepted a refresh token")
	}
	if _, err := ts.VerifyRefresh(ctx, access); err == nil {
		t.Error("VerifyRefresh unexpectedly accepted an access token")
	}
}

func TestTokenService_VerifyAccess_RejectsMalformedToken(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.VerifyAccess(context.Background(), "not-a-jwt"); err == nil {
		t.Error("expected an error verifying a malformed token")
	}
}

// TestTokenService_Revoke exercises the single-token half of testable
// property T1: a token successfully revoked via logout fails verify_access
// on the very next call, well before its natural expiry.
func TestTokenService_Revoke(t *testing.T) {
	ts := newTestTokenService(t)
	ctx := context.Background()
	userID := uuid.New()

	access, _, err := ts.IssuePair(userID, RoleManager)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := ts.VerifyAccess(ctx, access); err != nil {
		t.Fatalf("VerifyAccess before revoke: %v", err)
	}

	if err := ts.Revoke(ctx, access, time.Now().Add(AccessTokenTTL)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if _, err := ts.VerifyAccess(ctx, access); err == nil {
		t.Error("expected VerifyAccess to reject a revoked token")
	}
}

func TestTokenService_Revoke_PastExpiryIsNoop(t *testing.T) {
	ts := newTestTokenService(t)
	ctx := context.Background()

	// A token whose expiresAt has already passed needs no blacklist entry;
	// Revoke must not error just because there is nothing left to do.
	if err := ts.Revoke(ctx, "whatever-token", time.Now().Add(-time.Minute)); err != nil {
		t.Errorf("Revoke with a past expiry returned an error: %v", err)
	}
}

// TestTokenService_InvalidateUser exercises the global-invalidation half of
// T1: a user whose sessions are invalidated at time τ cannot use any token
// with issued-at < τ, even though that token was never individually
// revoked. A token issued after τ must still verify.
func TestTokenService_InvalidateUser(t *testing.T) {
	ts := newTestTokenService(t)
	ctx := context.Background()
	userID := uuid.New()

	access, _, err := ts.IssuePair(userID, RoleManager)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := ts.VerifyAccess(ctx, access); err != nil {
		t.Fatalf("VerifyAccess before invalidation: %v", err)
	}

	// Ensure the invalidation timestamp lands strictly after the token's
	// (second-resolution) issued-at before writing it.
	time.Sleep(5 * time.Millisecond)

	if err := ts.InvalidateUser(ctx, userID.String()); err != nil {
		t.Fatalf("InvalidateUser: %v", err)
	}

	if _, err := ts.VerifyAccess(ctx, access); err == nil {
		t.Error("expected VerifyAccess to reject a token issued before global invalidation")
	}

	access2, _, err := ts.IssuePair(userID, RoleManager)
	if err != nil {
		t.Fatalf("IssuePair (post-invalidation): %v", err)
	}
	if _, err := ts.VerifyAccess(ctx, access2); err != nil {
		t.Errorf("VerifyAccess rejected a token issued after invalidation: %v", err)
	}
}

// TestTokenService_InvalidateUser_DoesNotAffectOtherUsers confirms the
// invalidation key is scoped per user, not global across every session.
func TestTokenService_InvalidateUser_DoesNotAffectOtherUsers(t *testing.T) {
	ts := newTestTokenService(t)
	ctx := context.Background()

	victim := uuid.New()
	bystander := uuid.New()

	victimToken, _, err := ts.IssuePair(victim, RoleManager)
	if err != nil {
		t.Fatalf("IssuePair victim: %v", err)
	}
	bystanderToken, _, err := ts.IssuePair(bystander, RoleManager)
	if err != nil {
		t.Fatalf("IssuePair bystander: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := ts.InvalidateUser(ctx, victim.String()); err != nil {
		t.Fatalf("InvalidateUser: %v", err)
	}

	if _, err := ts.VerifyAccess(ctx, victimToken); err == nil {
		t.Error("expected the victim's token to be rejected")
	}
	if _, err := ts.VerifyAccess(ctx, bystanderToken); err != nil {
		t.Errorf("bystander's token was rejected: %v", err)
	}
}
