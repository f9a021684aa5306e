package catalog

import (
	"net/http"
	"strconv"

	"littlelemon/internal/access"
	"littlelemon/internal/apperr"
	"littlelemon/internal/logger"
	"littlelemon/internal/models"
	"littlelemon/internal/web"
)

// Handler handles HTTP requests for categories and menu items
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// Register adds the catalog routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /menu-items", h.ListMenuItems)
	mux.HandleFunc("POST /menu-items", h.CreateMenuItem)
	mux.HandleFunc("GET /menu-items/{id}", h.GetMenuItem)
	mux.HandleFunc("PUT /menu-items/{id}", h.UpdateMenuItem)
	mux.HandleFunc("PATCH /menu-items/{id}", h.UpdateMenuItem)
	mux.HandleFunc("DELETE /menu-items/{id}", h.DeleteMenuItem)

	mux.HandleFunc("GET /categories", h.ListCategories)
	mux.HandleFunc("POST /categories", h.CreateCategory)
	mux.HandleFunc("GET /categories/{id}", h.GetCategory)
	mux.HandleFunc("PUT /categories/{id}", h.UpdateCategory)
	mux.HandleFunc("PATCH /categories/{id}", h.UpdateCategory)
	mux.HandleFunc("DELETE /categories/{id}", h.DeleteCategory)
	mux.HandleFunc("GET /categories/{id}/menu-items", h.ListMenuItems)
	mux.HandleFunc("POST /categories/{id}/menu-items", h.CreateMenuItem)
}

// ListMenuItems handles GET /menu-items and GET /categories/{id}/menu-items
func (h *Handler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		web.WriteError(w, r, h.logger, "list_menu_items_failed", err)
		return
	}

	page, err := h.service.ListMenuItems(r.Context(), q)
	if err != nil {
		web.WriteError(w, r, h.logger, "list_menu_items_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, page)
}

func parseListQuery(r *http.Request) (ListQuery, error) {
	var q ListQuery
	values := r.URL.Query()

	if r.PathValue("id") != "" {
		id, err := web.PathID(r, "id")
		if err != nil {
			return q, err
		}
		q.CategoryID = &id
	} else if raw := values.Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return q, apperr.Validation("category", "must be an integer")
		}
		q.CategoryID = &id
	}

	q.Search = values.Get("search")
	q.Ordering = values.Get("ordering")

	var err error
	if q.Page, err = web.QueryInt(r, "page", 1); err != nil {
		return q, err
	}
	if q.PageSize, err = web.QueryInt(r, "page_size", DefaultPageSize); err != nil {
		return q, err
	}
	return q, nil
}

// CreateMenuItem handles POST /menu-items and POST /categories/{id}/menu-items
func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var categoryID *int64
	if r.PathValue("id") != "" {
		id, err := web.PathID(r, "id")
		if err != nil {
			web.WriteError(w, r, h.logger, "create_menu_item_failed", err)
			return
		}
		categoryID = &id
	}

	var in models.MenuItemInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, r, h.logger, "create_menu_item_failed", err)
		return
	}

	item, err := h.service.CreateMenuItem(r.Context(), access.FromContext(r.Context()), categoryID, in)
	if err != nil {
		web.WriteError(w, r, h.logger, "create_menu_item_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, item)
}

func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "get_menu_item_failed", err)
		return
	}
	item, err := h.service.GetMenuItem(r.Context(), id)
	if err != nil {
		web.WriteError(w, r, h.logger, "get_menu_item_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, item)
}

// UpdateMenuItem handles PUT and PATCH /menu-items/{id}
func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "update_menu_item_failed", err)
		return
	}

	var in models.MenuItemInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, r, h.logger, "update_menu_item_failed", err)
		return
	}

	partial := r.Method == http.MethodPatch
	item, err := h.service.UpdateMenuItem(r.Context(), access.FromContext(r.Context()), id, in, partial)
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			h.logger.Warn("update_menu_item_rejected", err.Error(), logger.RequestIDFromContext(r.Context()), map[string]interface{}{
				"menu_item_id": id,
			})
		}
		web.WriteError(w, r, h.logger, "update_menu_item_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, item)
}

func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "delete_menu_item_failed", err)
		return
	}
	if err := h.service.DeleteMenuItem(r.Context(), access.FromContext(r.Context()), id); err != nil {
		web.WriteError(w, r, h.logger, "delete_menu_item_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		web.WriteError(w, r, h.logger, "list_categories_failed", err)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	h.writeJSON(w, r, http.StatusOK, categories)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in models.CategoryInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, r, h.logger, "create_category_failed", err)
		return
	}
	c, err := h.service.CreateCategory(r.Context(), access.FromContext(r.Context()), in)
	if err != nil {
		web.WriteError(w, r, h.logger, "create_category_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, c)
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "get_category_failed", err)
		return
	}
	c, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		web.WriteError(w, r, h.logger, "get_category_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, c)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "update_category_failed", err)
		return
	}
	var in models.CategoryInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, r, h.logger, "update_category_failed", err)
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), access.FromContext(r.Context()), id, in)
	if err != nil {
		web.WriteError(w, r, h.logger, "update_category_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, c)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "delete_category_failed", err)
		return
	}
	if err := h.service.DeleteCategory(r.Context(), access.FromContext(r.Context()), id); err != nil {
		web.WriteError(w, r, h.logger, "delete_category_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := web.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFromContext(r.Context()), err, nil)
	}
}
