package user

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHandler() *Handler {
	return &Handler{}
}

func TestHandleRegister_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing email", `{"password":"correct-horse-battery-staple"}`, http.StatusUnprocessableEntity},
		{"invalid email", `{"email":"not-an-email","password":"correct-horse-battery-staple"}`, http.StatusUnprocessableEntity},
		{"missing password", `{"email":"a@example.com"}`, http.StatusUnprocessableEntity},
		{"invalid JSON", `{bad}`, http.StatusUnprocessableEntity},
		{"empty body", ``, http.StatusUnprocessableEntity},
	}

	h := newTestHandler()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			h.handleRegister(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestHandleLogin_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing email", `{"password":"whatever"}`, http.StatusUnprocessableEntity},
		{"missing password", `{"email":"a@example.com"}`, http.StatusUnprocessableEntity},
		{"invalid JSON", `{bad}`, http.StatusUnprocessableEntity},
	}

	h := newTestHandler()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			h.handleLogin(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestHandleRefresh_MissingCookie(t *testing.T) {
	h := newTestHandler()

	r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	w := httptest.NewRecorder()

	h.handleRefresh(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleLogout_NoIdentity(t *testing.T) {
	h := newTestHandler()

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()

	h.handleLogout(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")

	if got := bearerToken(r); got != "abc123" {
		t.Errorf("bearerToken() = %q, want %q", got, "abc123")
	}
}
