package employee

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gearloop/assetloan/internal/apperr"
	"github.com/gearloop/assetloan/internal/audit"
	"github.com/gearloop/assetloan/internal/auth"
	"github.com/gearloop/assetloan/internal/httpserver"
	"github.com/gearloop/assetloan/internal/store"
)

// Handler provides HTTP handlers for the employee API. Role and ownership
// gates are composed by the caller at route registration (Routes), not
// inside the handlers themselves — matching the explicit-pipeline design of
// §9.
type Handler struct {
	store   *store.Store
	service *Service
	logger  *slog.Logger
}

// NewHandler creates an employee Handler.
func NewHandler(st *store.Store, logger *slog.Logger) *Handler {
	return &Handler{store: st, service: NewService(st.Pool, logger), logger: logger}
}

// Resolver exposes the employee ownership resolver for route registration.
func (h *Handler) Resolver() auth.OwnerResolver {
	return h.service.Resolver()
}

// Routes returns the chi.Router mounted at /employees. mutate is applied
// to every mutating route and ownerOnID additionally to the :id mutations;
// the caller composes both (role gate + mutate-tier rate limit, and the
// ownership gate). Request validation runs inside the handlers.
func (h *Handler) Routes(mutate func(http.Handler) http.Handler, ownerOnID func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.With(mutate).Post("/", h.handleCreate)
	r.With(mutate, ownerOnID).Patch("/{id}", h.handleUpdate)
	r.With(mutate, ownerOnID).Delete("/{id}", h.handleDelete)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := store.ParsePageParams(r)
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, err.Error())
		return
	}

	page, err := h.service.List(r.Context(), params)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, page)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid employee id")
		return
	}

	resp, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	identity := auth.FromRequest(r)
	managerUserID := identity.UserID
	if identity.Role == auth.RoleAdmin && req.ManagerUserID != nil {
		managerUserID = *req.ManagerUserID
	}

	resp, err := h.service.Create(r.Context(), req, managerUserID)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	_ = audit.LogFromRequest(r.Context(), h.store.Pool, r, "employee.create", "employee", resp.ID, map[string]string{"name": resp.Name})
	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid employee id")
		return
	}

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	identity := auth.FromRequest(r)
	managerUserID := identity.UserID
	if identity.Role == auth.RoleAdmin && req.ManagerUserID != nil {
		managerUserID = *req.ManagerUserID
	} else if existing, getErr := h.service.Get(r.Context(), id); getErr == nil {
		managerUserID = existing.ManagerUserID
	}

	resp, err := h.service.Update(r.Context(), id, req, managerUserID)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	_ = audit.LogFromRequest(r.Context(), h.store.Pool, r, "employee.update", "employee", resp.ID, map[string]string{"name": resp.Name})
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid employee id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	_ = audit.LogFromRequest(r.Context(), h.store.Pool, r, "employee.delete", "employee", id, nil)
	httpserver.RespondNoContent(w)
}
