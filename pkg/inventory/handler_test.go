package inventory

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestHandler() *Handler {
	return &Handler{service: NewService(nil, nil)}
}

func noopMutate(next http.Handler) http.Handler { return next }

func TestCreateAssetModel_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing name", `{"manufacturer":"Dell"}`, http.StatusUnprocessableEntity},
		{"name too long", `{"name":"` + strings.Repeat("a", 201) + `"}`, http.StatusUnprocessableEntity},
		{"invalid JSON", `{bad}`, http.StatusUnprocessableEntity},
		{"empty body", ``, http.StatusUnprocessableEntity},
	}

	h := newTestHandler()
	router := chi.NewRouter()
	router.Mount("/asset-models", AssetModelRoutes(h, noopMutate))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/asset-models", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestCreateAssetItem_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing asset_tag", `{"asset_model_id":"` + "00000000-0000-0000-0000-000000000001" + `"}`, http.StatusUnprocessableEntity},
		{"missing asset_model_id", `{"asset_tag":"LAPTOP-001"}`, http.StatusUnprocessableEntity},
		{"invalid JSON", `{bad}`, http.StatusUnprocessableEntity},
	}

	h := newTestHandler()
	router := chi.NewRouter()
	router.Mount("/asset-items", AssetItemRoutes(h, noopMutate))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/asset-items", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestCreateStockItem_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"negative quantity", `{"asset_model_id":"00000000-0000-0000-0000-000000000001","quantity":-1}`, http.StatusUnprocessableEntity},
		{"missing asset_model_id", `{"quantity":5}`, http.StatusUnprocessableEntity},
	}

	h := newTestHandler()
	router := chi.NewRouter()
	router.Mount("/stock-items", StockItemRoutes(h, noopMutate))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/stock-items", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestGetAssetModel_InvalidID(t *testing.T) {
	h := newTestHandler()
	router := chi.NewRouter()
	router.Mount("/asset-models", AssetModelRoutes(h, noopMutate))

	r := httptest.NewRequest(http.MethodGet, "/asset-models/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}
