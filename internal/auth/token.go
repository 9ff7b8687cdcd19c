package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/gearloop/assetloan/internal/cache"
)

const (
	// AccessTokenTTL is the access token lifetime (§4.4).
	AccessTokenTTL = 15 * time.Minute
	// RefreshTokenTTL is the refresh token lifetime (§4.4).
	RefreshTokenTTL = 7 * 24 * time.Hour

	tokenIssuer = "assetloan"
)

// Claims are the custom claims carried by both token kinds: only ids and
// role, no PII (§4.4).
type Claims struct {
	Subject  string `json:"sub"`
	Role     string `json:"role"`
	IssuedAt int64  `json:"iat"`
}

// TokenService issues and verifies access/refresh token pairs. Access and
// refresh tokens use independent HMAC signing keys, generalizing the
// teacher's single-secret SessionManager to two signer instances.
type TokenService struct {
	accessKey  []byte
	refreshKey []byte
	cache      *cache.Cache
}

// NewTokenService builds a TokenService. Both secrets must be at least 32
// bytes; secrets are mandatory in non-development mode (§4.4), enforced at
// config load time, not here.
func NewTokenService(accessSecret, refreshSecret string, c *cache.Cache) (*TokenService, error) {
	if len(accessSecret) < 32 {
		return nil, fmt.Errorf("access token secret must be at least 32 bytes, got %d", len(accessSecret))
	}
	if len(refreshSecret) < 32 {
		return nil, fmt.Errorf("refresh token secret must be at least 32 bytes, got %d", len(refreshSecret))
	}
	return &TokenService{
		accessKey:  []byte(accessSecret),
		refreshKey: []byte(refreshSecret),
		cache:      c,
	}, nil
}

// GenerateDevSecret generates a random 32-byte hex-encoded secret, used only
// when NODE_ENV=development and no secret is configured.
func GenerateDevSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

// IssuePair mints a fresh access/refresh token pair for a user.
func (s *TokenService) IssuePair(userID uuid.UUID, role string) (access, refresh string, err error) {
	now := time.Now()

	access, err = s.sign(s.accessKey, Claims{Subject: userID.String(), Role: role, IssuedAt: now.Unix()}, AccessTokenTTL)
	if err != nil {
		return "", "", fmt.Errorf("issuing access token: %w", err)
	}

	refresh, err = s.sign(s.refreshKey, Claims{Subject: userID.String(), Role: role, IssuedAt: now.Unix()}, RefreshTokenTTL)
	if err != nil {
		return "", "", fmt.Errorf("issuing refresh token: %w", err)
	}

	return access, refresh, nil
}

func (s *TokenService) sign(key []byte, claims Claims, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	now := time.Now()
	registered := jwt.Claims{
		Subject:   claims.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(ttl)),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
	}

	return jwt.Signed(signer).Claims(registered).Claims(claims).Serialize()
}

func (s *TokenService) verify(ctx context.Context, key []byte, raw string) (*Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	var registered jwt.Claims
	var custom Claims
	if err := tok.Claims(key, &registered, &custom); err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer: tokenIssuer,
		Time:   time.Now(),
	}, 5*time.Second); err != nil {
		return nil, fmt.Errorf("validating claims: %w", err)
	}

	revoked, err := s.cache.Exists(ctx, revokedTokenKey(raw))
	if err != nil {
		return nil, fmt.Errorf("checking token revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("token revoked")
	}

	invalidatedAt, err := s.cache.GetTime(ctx, revokedUserKey(custom.Subject))
	if err != nil {
		return nil, fmt.Errorf("checking user invalidation: %w", err)
	}
	if !invalidatedAt.IsZero() && invalidatedAt.After(time.Unix(custom.IssuedAt, 0)) {
		return nil, fmt.Errorf("token invalidated")
	}

	return &custom, nil
}

// VerifyAccess validates an access token: signature, expiry, not
// individually revoked, and not issued before the subject's last
// global-invalidation timestamp (§4.4 step 2; §4.5 steps 2-4).
func (s *TokenService) VerifyAccess(ctx context.Context, raw string) (*Claims, error) {
	return s.verify(ctx, s.accessKey, raw)
}

// VerifyRefresh validates a refresh token using the refresh signing key.
func (s *TokenService) VerifyRefresh(ctx context.Context, raw string) (*Claims, error) {
	return s.verify(ctx, s.refreshKey, raw)
}

// Revoke blacklists a single token until its own expiry. Remaining TTL is
// computed from expiresAt - now, floored to 1 second; zero or negative
// becomes a no-op (§4.4).
func (s *TokenService) Revoke(ctx context.Context, raw string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.cache.Set(ctx, revokedTokenKey(raw), "1", ttl)
}

// InvalidateUser rejects every token issued for userID before now. TTL is
// the max refresh lifetime, matching how long a still-valid refresh token
// issued just before invalidation could otherwise be presented (§4.4).
func (s *TokenService) InvalidateUser(ctx context.Context, userID string) error {
	return s.cache.Set(ctx, revokedUserKey(userID), time.Now().Format(time.RFC3339Nano), RefreshTokenTTL)
}

// revokedTokenKey hashes the token before using it as a cache key, the same
// defensive habit the teacher applies to PATs in pat.go's hashPAT — a raw
// bearer token should never sit verbatim in the KV store.
func revokedTokenKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return "revoked:token:" + hex.EncodeToString(sum[:])
}

func revokedUserKey(userID string) string {
	return "revoked:user:" + userID
}
