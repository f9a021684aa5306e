package review

import (
	"net/http"

	"littlelemon/internal/access"
	"littlelemon/internal/logger"
	"littlelemon/internal/models"
	"littlelemon/internal/web"
)

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

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /reviews", h.ListReviews)
	mux.HandleFunc("POST /reviews", h.CreateReview)
	mux.HandleFunc("GET /reviews/{id}", h.GetReview)
	mux.HandleFunc("DELETE /reviews/{id}", h.DeleteReview)
	mux.HandleFunc("GET /menu-items/{id}/reviews", h.ListItemReviews)
	mux.HandleFunc("POST /menu-items/{id}/reviews", h.CreateItemReview)
}

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.List(r.Context(), access.FromContext(r.Context()), nil)
	if err != nil {
		web.WriteError(w, r, h.logger, "list_reviews_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, reviews)
}

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var in models.ReviewInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, r, h.logger, "create_review_failed", err)
		return
	}
	h.create(w, r, in)
}

func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "get_review_failed", err)
		return
	}
	review, err := h.service.Get(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		web.WriteError(w, r, h.logger, "get_review_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, review)
}

func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "delete_review_failed", err)
		return
	}
	if err := h.service.Delete(r.Context(), access.FromContext(r.Context()), id); err != nil {
		web.WriteError(w, r, h.logger, "delete_review_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListItemReviews handles GET /menu-items/{id}/reviews
func (h *Handler) ListItemReviews(w http.ResponseWriter, r *http.Request) {
	menuItemID, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "list_reviews_failed", err)
		return
	}
	reviews, err := h.service.List(r.Context(), access.FromContext(r.Context()), &menuItemID)
	if err != nil {
		web.WriteError(w, r, h.logger, "list_reviews_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, reviews)
}

// CreateItemReview handles POST /menu-items/{id}/reviews. The path id wins over any
// menuitem_id in the body.
func (h *Handler) CreateItemReview(w http.ResponseWriter, r *http.Request) {
	menuItemID, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "create_review_failed", err)
		return
	}
	var in models.ReviewInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, r, h.logger, "create_review_failed", err)
		return
	}
	in.MenuItemID = menuItemID
	h.create(w, r, in)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, in models.ReviewInput) {
	review, err := h.service.Create(r.Context(), access.FromContext(r.Context()), in)
	if err != nil {
		web.WriteError(w, r, h.logger, "create_review_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, review)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := web.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFromContext(r.Context()), err, nil)
	}
}
