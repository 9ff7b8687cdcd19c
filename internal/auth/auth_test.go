package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHashPassword(t *testing.T) {
	digest, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !VerifyPassword(digest, "correct horse battery staple") {
		t.Error("VerifyPassword rejected the correct password")
	}
	if VerifyPassword(digest, "wrong password") {
		t.Error("VerifyPassword accepted the wrong password")
	}
}

func TestHashPassword_DistinctSalts(t *testing.T) {
	d1, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	d2, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if d1 == d2 {
		t.Error("two hashes of the same password should differ (distinct bcrypt salts)")
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()

	if id := FromContext(ctx); id != nil {
		t.Fatalf("expected nil, got %+v", id)
	}

	userID := uuid.New()
	identity := &Identity{
		UserID:   userID,
		Role:     RoleManager,
		IssuedAt: time.Now(),
	}
	ctx = NewContext(ctx, identity)

	got := FromContext(ctx)
	if got == nil {
		t.Fatal("expected identity, got nil")
	}
	if got.UserID != userID {
		t.Errorf("UserID = %v, want %v", got.UserID, userID)
	}
	if got.Role != RoleManager {
		t.Errorf("Role = %q, want %q", got.Role, RoleManager)
	}
}
