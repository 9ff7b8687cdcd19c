package loan

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gearloop/assetloan/internal/auth"
)

func newTestHandler() *Handler {
	return &Handler{service: NewService(nil, nil)}
}

func noopMutate(next http.Handler) http.Handler { return next }

func withAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := &auth.Identity{UserID: uuid.New(), Role: auth.RoleAdmin}
		next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), id)))
	})
}

func TestCreateLoan_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing employee_id", `{}`, http.StatusUnprocessableEntity},
		{"invalid JSON", `{bad}`, http.StatusUnprocessableEntity},
		{"empty body", ``, http.StatusUnprocessableEntity},
	}

	h := newTestHandler()
	router := chi.NewRouter()
	router.Use(withAdmin)
	router.Mount("/loans", h.Routes(noopMutate, noopMutate))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestGetLoan_InvalidID(t *testing.T) {
	h := newTestHandler()
	router := chi.NewRouter()
	router.Use(withAdmin)
	router.Mount("/loans", h.Routes(noopMutate, noopMutate))

	r := httptest.NewRequest(http.MethodGet, "/loans/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestAddLine_InvalidLoanID(t *testing.T) {
	h := newTestHandler()
	router := chi.NewRouter()
	router.Use(withAdmin)
	router.Mount("/loans", h.Routes(noopMutate, noopMutate))

	r := httptest.NewRequest(http.MethodPost, "/loans/not-a-uuid/lines", strings.NewReader(`{"line":{}}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestLineSpec_Valid(t *testing.T) {
	assetItemID := uuid.New()
	assetModelID := uuid.New()

	tests := []struct {
		name string
		spec LineSpec
		want bool
	}{
		{"asset item only", LineSpec{AssetItemID: &assetItemID}, true},
		{"stock line with quantity", LineSpec{AssetModelID: &assetModelID, Quantity: 2}, true},
		{"neither set", LineSpec{}, false},
		{"both set", LineSpec{AssetItemID: &assetItemID, AssetModelID: &assetModelID, Quantity: 1}, false},
		{"stock line with zero quantity", LineSpec{AssetModelID: &assetModelID, Quantity: 0}, false},
		{"stock line with negative quantity", LineSpec{AssetModelID: &assetModelID, Quantity: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.valid(); got != tt.want {
				t.Errorf("valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLineSpec_IsStockLine(t *testing.T) {
	assetItemID := uuid.New()
	assetModelID := uuid.New()

	if (LineSpec{AssetItemID: &assetItemID}).isStockLine() {
		t.Error("asset-item line reported as stock line")
	}
	if !(LineSpec{AssetModelID: &assetModelID}).isStockLine() {
		t.Error("stock line not reported as stock line")
	}
}
