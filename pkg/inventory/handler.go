package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gearloop/assetloan/internal/apperr"
	"github.com/gearloop/assetloan/internal/audit"
	"github.com/gearloop/assetloan/internal/httpserver"
	"github.com/gearloop/assetloan/internal/store"
)

// Handler provides HTTP handlers for asset models, asset items, and stock
// items. These are shared-catalog resources (no per-row ownership gate per
// §6); only a role gate (MANAGER+ for writes) applies, composed by the
// caller at route registration.
type Handler struct {
	store   *store.Store
	service *Service
	logger  *slog.Logger
}

// NewHandler creates an inventory Handler.
func NewHandler(st *store.Store, logger *slog.Logger) *Handler {
	return &Handler{store: st, service: NewService(st.Pool, logger), logger: logger}
}

// AssetModelRoutes, AssetItemRoutes, and StockItemRoutes return the
// chi.Router mounted at /asset-models, /asset-items, and /stock-items
// respectively; mutate is the role-gate middleware applied to write routes.
func AssetModelRoutes(h *Handler, mutate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleListAssetModels)
	r.Get("/{id}", h.handleGetAssetModel)
	r.With(mutate).Post("/", h.handleCreateAssetModel)
	return r
}

func AssetItemRoutes(h *Handler, mutate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleListAssetItems)
	r.Get("/{id}", h.handleGetAssetItem)
	r.With(mutate).Post("/", h.handleCreateAssetItem)
	return r
}

func StockItemRoutes(h *Handler, mutate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleListStockItems)
	r.Get("/{id}", h.handleGetStockItem)
	r.With(mutate).Post("/", h.handleCreateStockItem)
	return r
}

func parseIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func (h *Handler) handleListAssetModels(w http.ResponseWriter, r *http.Request) {
	params, err := store.ParsePageParams(r)
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, err.Error())
		return
	}
	page, err := h.service.ListAssetModels(r.Context(), params)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, page)
}

func (h *Handler) handleGetAssetModel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid asset model id")
		return
	}
	resp, err := h.service.GetAssetModel(r.Context(), id)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateAssetModel(w http.ResponseWriter, r *http.Request) {
	var req AssetModelRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	resp, err := h.service.CreateAssetModel(r.Context(), req)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}
	_ = audit.LogFromRequest(r.Context(), h.store.Pool, r, "asset_model.create", "asset_model", resp.ID, map[string]string{"name": resp.Name})
	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleListAssetItems(w http.ResponseWriter, r *http.Request) {
	params, err := store.ParsePageParams(r)
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, err.Error())
		return
	}
	page, err := h.service.ListAssetItems(r.Context(), params)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, page)
}

func (h *Handler) handleGetAssetItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid asset item id")
		return
	}
	resp, err := h.service.GetAssetItem(r.Context(), id)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateAssetItem(w http.ResponseWriter, r *http.Request) {
	var req AssetItemRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	resp, err := h.service.CreateAssetItem(r.Context(), req)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}
	_ = audit.LogFromRequest(r.Context(), h.store.Pool, r, "asset_item.create", "asset_item", resp.ID, map[string]string{"asset_tag": resp.AssetTag})
	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleListStockItems(w http.ResponseWriter, r *http.Request) {
	params, err := store.ParsePageParams(r)
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, err.Error())
		return
	}
	page, err := h.service.ListStockItems(r.Context(), params)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, page)
}

func (h *Handler) handleGetStockItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		httpserver.RespondError(w, apperr.KindValidation, "invalid stock item id")
		return
	}
	resp, err := h.service.GetStockItem(r.Context(), id)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateStockItem(w http.ResponseWriter, r *http.Request) {
	var req StockItemRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	resp, err := h.service.CreateStockItem(r.Context(), req)
	if err != nil {
		httpserver.WriteError(w, h.logger, err)
		return
	}
	_ = audit.LogFromRequest(r.Context(), h.store.Pool, r, "stock_item.create", "stock_item", resp.ID, map[string]string{"quantity": strconv.Itoa(resp.Quantity)})
	httpserver.Respond(w, http.StatusCreated, resp)
}
