package user

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gearloop/assetloan/internal/apperr"
	"github.com/gearloop/assetloan/internal/audit"
	"github.com/gearloop/assetloan/internal/auth"
	"github.com/gearloop/assetloan/internal/httpserver"
	"github.com/gearloop/assetloan/internal/store"
)

// refreshCookieName is the cookie the refresh token travels in (§6).
const refreshCookieName = "refreshToken"

// Handler serves the public auth endpoints: register, login, refresh,
// logout. It lives in pkg/user rather than internal/auth because it
// depends on the user Store/Service, and internal/auth must not import
// domain packages (pkg/user already imports internal/auth for password
// hashing and role constants — the reverse import would cycle).
type Handler struct {
	store   *store.Store
	tokens  *auth.TokenService
	limiter *auth.RateLimiter
	logger  *slog.Logger
}

// NewHandler creates an auth Handler. st is the top-level Store used to open
// the SERIALIZABLE-free, READ-COMMITTED transaction that wraps registration
// (user creation plus its audit entry must commit together, §4.8).
func NewHandler(st *store.Store, tokens *auth.TokenService, limiter *auth.RateLimiter, logger *slog.Logger) *Handler {
	return &Handler{store: st, tokens: tokens, limiter: limiter, logger: logger}
}

// Routes returns the chi.Router mounted at /auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(h.limiter.Middleware(auth.TierLogin)).Post("/register", h.handleRegister)
	r.With(h.limiter.Middleware(auth.TierLogin)).Post("/login", h.handleLogin)
	r.With(h.limiter.Middleware(auth.TierLogin)).Post("/refresh", h.handleRefresh)
	r.With(auth.Middleware(h.tokens, h.logger)).Post("/logout", h.handleLogout)
	return r
}

// UserRoutes returns the chi.Router mounted at /users: the "user account"
// ownership rule of §4.7 (identity.user-id == target-user-id) applied via
// selfOrAdmin, plus an ADMIN-only role-change endpoint. Both credential and
// role mutations invalidate the target's outstanding tokens (§4.4 T1).
func (h *Handler) UserRoutes(selfOrAdmin, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.With(selfOrAdmin).Get("/{id}", h.handleGetUser)
	r.With(selfOrAdmin).Patch("/{id}/password", h.handleChangePassword)
	r.With(adminOnly).Patch("/{id}/role", h.handleChangeRole)
	return r
}

type tokenPairResponse struct {
	AccessToken string   `json:"access_token"`
	User        Response `json:"user"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	var resp Response
	var access, refresh string

	err := h.store.InTransaction(r.Context(), pgx.ReadCommitted, func(ctx context.Context, tx pgx.Tx) error {
		svc := NewService(tx, h.logger)
		created, err := svc.Register(ctx, req)
		if err != nil {
			return err
		}
		resp = created

		a, rf, err := h.tokens.IssuePair(resp.ID, resp.Role)
		if err != nil {
			return err
		}
		access, refresh = a, rf

		detail, err := json.Marshal(map[string]string{"role": resp.Role})
		if err != nil {
			return err
		}
		// The actor is the newly created user itself: self-registration has
		// no prior identity to attribute the entry to, and audit_entries.actor_id
		// references users(id), so it must name a row created in this same
		// transaction.
		return audit.Log(ctx, tx, audit.Entry{
			ActorID:    resp.ID,
			Action:     "user.register",
			EntityType: "user",
			EntityID:   resp.ID,
			Detail:     detail,
			IPAddress:  auth.ClientIP(r),
			UserAgent:  r.Header.Get("User-Agent"),
		})
	})
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	setRefreshCookie(w, refresh)
	httpserver.Respond(w, http.StatusCreated, tokenPairResponse{AccessToken: access, User: resp})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	svc := NewService(h.store.Pool, h.logger)
	row, err := svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	access, refresh, err := h.tokens.IssuePair(row.ID, row.Role)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	setRefreshCookie(w, refresh)
	httpserver.Respond(w, http.StatusOK, tokenPairResponse{AccessToken: access, User: row.ToResponse()})
}

// handleRefresh rotates the access token from a valid refresh cookie. The
// existing refresh cookie is left untouched: whether refresh rotation
// should also invalidate the presented refresh token is an open question in
// the source (§9); this implementation takes the simpler, non-rotating
// reading so a still-valid refresh token keeps working across repeated
// access-token renewals within its own 7-day lifetime.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		httpserver.RespondError(w, apperr.KindUnauthorized, "token required")
		return
	}

	claims, err := h.tokens.VerifyRefresh(r.Context(), cookie.Value)
	if err != nil {
		httpserver.RespondError(w, apperr.KindUnauthorized, "token invalid or expired")
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		httpserver.RespondError(w, apperr.KindUnauthorized, "token invalid or expired")
		return
	}

	access, _, err := h.tokens.IssuePair(userID, claims.Role)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"access_token": access})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := auth.FromRequest(r)
	if id == nil {
		httpserver.RespondError(w, apperr.KindUnauthorized, "token required")
		return
	}

	raw := bearerToken(r)
	expiresAt := id.IssuedAt.Add(auth.AccessTokenTTL)
	if err := h.tokens.Revoke(r.Context(), raw, expiresAt); err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	clearRefreshCookie(w)
	httpserver.RespondNoContent(w)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid user id")
		return
	}

	svc := NewService(h.store.Pool, h.logger)
	resp, err := svc.Get(r.Context(), id)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid user id")
		return
	}

	var req RoleChangeRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	actor := auth.FromRequest(r)

	var resp Response
	err = h.store.InTransaction(r.Context(), pgx.ReadCommitted, func(ctx context.Context, tx pgx.Tx) error {
		svc := NewService(tx, h.logger)
		updated, err := svc.ChangeRole(ctx, id, req.Role)
		if err != nil {
			return err
		}
		resp = updated

		detail, _ := json.Marshal(map[string]string{"role": req.Role})
		return audit.Log(ctx, tx, audit.Entry{
			ActorID: actor.UserID, Action: "user.role_change", EntityType: "user", EntityID: id, Detail: detail,
			IPAddress: auth.ClientIP(r), UserAgent: r.Header.Get("User-Agent"),
		})
	})
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	if err := h.tokens.InvalidateUser(r.Context(), id.String()); err != nil {
		h.logger.Error("invalidating user sessions after role change", "user_id", id, "error", err)
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid user id")
		return
	}

	var req PasswordChangeRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	actor := auth.FromRequest(r)

	var resp Response
	err = h.store.InTransaction(r.Context(), pgx.ReadCommitted, func(ctx context.Context, tx pgx.Tx) error {
		svc := NewService(tx, h.logger)
		updated, err := svc.ChangePassword(ctx, id, req.Password)
		if err != nil {
			return err
		}
		resp = updated

		return audit.Log(ctx, tx, audit.Entry{
			ActorID: actor.UserID, Action: "user.password_change", EntityType: "user", EntityID: id,
			IPAddress: auth.ClientIP(r), UserAgent: r.Header.Get("User-Agent"),
		})
	})
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	if err := h.tokens.InvalidateUser(r.Context(), id.String()); err != nil {
		h.logger.Error("invalidating user sessions after password change", "user_id", id, "error", err)
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func bearerToken(r *http.Request) string {
	return strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
}

func setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.RefreshTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
