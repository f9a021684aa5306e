package order

import (
	"net/http"

	"littlelemon/internal/access"
	"littlelemon/internal/logger"
	"littlelemon/internal/models"
	"littlelemon/internal/web"
)

// Handler handles HTTP requests for orders and payments
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders", h.ListOrders)
	mux.HandleFunc("POST /orders", h.CreateOrder)
	mux.HandleFunc("GET /orders/{id}", h.GetOrder)
	mux.HandleFunc("PUT /orders/{id}", h.UpdateOrder)
	mux.HandleFunc("PATCH /orders/{id}", h.UpdateOrder)
	mux.HandleFunc("DELETE /orders/{id}", h.DeleteOrder)
	mux.HandleFunc("POST /orders/{id}/pay", h.Pay)
	mux.HandleFunc("GET /orders/{id}/success_payment", h.SuccessPayment)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context(), access.FromContext(r.Context()))
	if err != nil {
		web.WriteError(w, r, h.logger, "list_orders_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, orders)
}

// CreateOrder handles POST /orders. The order is built from the caller's cart; the body is ignored.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.CreateFromCart(r.Context(), access.FromContext(r.Context()))
	if err != nil {
		web.WriteError(w, r, h.logger, "order_creation_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, o)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "get_order_failed", err)
		return
	}
	o, err := h.service.Get(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		web.WriteError(w, r, h.logger, "get_order_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, o)
}

// UpdateOrder handles PUT and PATCH /orders/{id}. Both leave absent fields unchanged.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "update_order_failed", err)
		return
	}
	var upd models.OrderUpdate
	if err := web.DecodeJSON(r, &upd); err != nil {
		web.WriteError(w, r, h.logger, "update_order_failed", err)
		return
	}
	o, err := h.service.Update(r.Context(), access.FromContext(r.Context()), id, upd)
	if err != nil {
		web.WriteError(w, r, h.logger, "update_order_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, o)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "delete_order_failed", err)
		return
	}
	if err := h.service.Delete(r.Context(), access.FromContext(r.Context()), id); err != nil {
		web.WriteError(w, r, h.logger, "delete_order_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pay handles POST /orders/{id}/pay and returns the checkout URL.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "payment_failed", err)
		return
	}
	checkout, err := h.service.Pay(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		web.WriteError(w, r, h.logger, "payment_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, checkout)
}

// SuccessPayment handles the checkout redirect GET /orders/{id}/success_payment?session_id=...
func (h *Handler) SuccessPayment(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "payment_confirm_failed", err)
		return
	}
	o, err := h.service.ConfirmPayment(r.Context(), id, r.URL.Query().Get("session_id"))
	if err != nil {
		web.WriteError(w, r, h.logger, "payment_confirm_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, o)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := web.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFromContext(r.Context()), err, nil)
	}
}
