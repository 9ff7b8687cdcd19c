package loan

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gearloop/assetloan/internal/apperr"
	"github.com/gearloop/assetloan/internal/auth"
	"github.com/gearloop/assetloan/internal/httpserver"
	"github.com/gearloop/assetloan/internal/store"
)

// Handler provides HTTP handlers for the loan API. Role and ownership gates
// are composed by the caller at route registration, matching the explicit
// pipeline design employee and inventory routes already use (§9).
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a loan Handler.
func NewHandler(st *store.Store, logger *slog.Logger) *Handler {
	return &Handler{service: NewService(st, logger), logger: logger}
}

// Resolver exposes the loan ownership resolver for route registration.
func (h *Handler) Resolver() auth.OwnerResolver {
	return h.service.Resolver()
}

// Routes returns the chi.Router mounted at /loans. mutate is the role gate
// (MANAGER+, per §6); ownerOnID additionally restricts a route to the
// loan's creator, with ADMIN always allowed (§4.9).
func (h *Handler) Routes(mutate, ownerOnID func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.With(mutate).Post("/", h.handleCreate)
	r.With(mutate, ownerOnID).Post("/{id}/lines", h.handleAddLine)
	r.With(mutate, ownerOnID).Delete("/{id}/lines/{lineID}", h.handleRemoveLine)
	r.With(mutate, ownerOnID).Post("/{id}/pickup-signature", h.handleSignPickup)
	r.With(mutate, ownerOnID).Post("/{id}/return-signature", h.handleSignReturn)
	r.With(mutate, ownerOnID).Post("/{id}/close", h.handleClose)
	r.With(mutate, ownerOnID).Delete("/{id}", h.handleDelete)
	return r
}

func parseID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}

// includeDeleted reports whether the caller asked for soft-deleted loans to
// be included, which only ADMIN may do.
func includeDeleted(r *http.Request) bool {
	if r.URL.Query().Get("include_deleted") != "true" {
		return false
	}
	identity := auth.FromRequest(r)
	return identity != nil && identity.Role == auth.RoleAdmin
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := store.ParsePageParams(r)
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, err.Error())
		return
	}

	page, err := h.service.List(r.Context(), params, includeDeleted(r))
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, page)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid loan id")
		return
	}

	resp, err := h.service.Get(r.Context(), id, includeDeleted(r))
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
	resp, err := h.service.Create(r.Context(), req, identity.UserID)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid loan id")
		return
	}

	var req AddLineRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	identity := auth.FromRequest(r)
	resp, err := h.service.AddLine(r.Context(), id, req.Line, identity.UserID)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid loan id")
		return
	}
	lineID, err := parseID(r, "lineID")
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid loan line id")
		return
	}

	identity := auth.FromRequest(r)
	resp, err := h.service.RemoveLine(r.Context(), id, lineID, identity.UserID)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleSignPickup(w http.ResponseWriter, r *http.Request) {
	h.handleSign(w, r, h.service.SignPickup)
}

func (h *Handler) handleSignReturn(w http.ResponseWriter, r *http.Request) {
	h.handleSign(w, r, h.service.SignReturn)
}

func (h *Handler) handleSign(w http.ResponseWriter, r *http.Request, sign func(ctx context.Context, id uuid.UUID, req SignatureRequest, actor uuid.UUID, actorIsAdmin bool) (Response, error)) {
	id, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid loan id")
		return
	}

	var req SignatureRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	identity := auth.FromRequest(r)
	resp, err := sign(r.Context(), id, req, identity.UserID, identity.Role == auth.RoleAdmin)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid loan id")
		return
	}

	identity := auth.FromRequest(r)
	resp, err := h.service.Close(r.Context(), id, identity.UserID)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid loan id")
		return
	}

	identity := auth.FromRequest(r)
	if err := h.service.SoftDelete(r.Context(), id, identity.UserID); err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}

	httpserver.RespondNoContent(w)
}
