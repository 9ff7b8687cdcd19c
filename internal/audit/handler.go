package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gearloop/assetloan/internal/apperr"
	"github.com/gearloop/assetloan/internal/httpserver"
	"github.com/gearloop/assetloan/internal/store"
)

// Handler serves the ADMIN-only audit log view (§6: GET /audit). The role
// gate is applied by the caller at route registration, not here.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

// NewHandler creates an audit Handler backed by dbtx.
func NewHandler(dbtx store.DBTX, logger *slog.Logger) *Handler {
	return &Handler{store: NewStore(dbtx), logger: logger}
}

// Response is the public JSON shape of an audit entry.
type Response struct {
	ID         uuid.UUID       `json:"id"`
	ActorID    uuid.UUID       `json:"actor_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Detail     json.RawMessage `json:"detail"`
	IPAddress  *string         `json:"ip_address,omitempty"`
	UserAgent  *string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toResponse(r Row) Response {
	return Response{
		ID:         r.ID,
		ActorID:    r.ActorID,
		Action:     r.Action,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Detail:     json.RawMessage(r.Detail),
		IPAddress:  r.IPAddress,
		UserAgent:  r.UserAgent,
		CreatedAt:  r.CreatedAt,
	}
}

// Routes returns the chi.Router mounted at /audit.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := store.ParsePageParams(r)
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, err.Error())
		return
	}

	var f Filter
	q := r.URL.Query()
	if v := q.Get("actor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpserver.RespondError(w, apperr.KindValidation, "actor_id must be a valid UUID")
			return
		}
		f.ActorID = id
	}
	if v := q.Get("entity_type"); v != "" {
		f.EntityType = v
	}
	if v := q.Get("entity_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpserver.RespondError(w, apperr.KindValidation, "entity_id must be a valid UUID")
			return
		}
		f.EntityID = id
	}

	rows, total, err := h.store.List(r.Context(), f, params)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	out := make([]Response, len(rows))
	for i, row := range rows {
		out[i] = toResponse(row)
	}

	httpserver.Respond(w, http.StatusOK, store.NewPage(out, params, total))
}
