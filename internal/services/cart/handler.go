package cart

import (
	"net/http"

	"github.com/shopspring/decimal"

	"littlelemon/internal/access"
	"littlelemon/internal/logger"
	"littlelemon/internal/models"
	"littlelemon/internal/web"
)

// Handler handles HTTP requests for carts and cart items
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
	mux.HandleFunc("GET /carts", h.ListCarts)
	mux.HandleFunc("POST /carts", h.CreateCart)
	mux.HandleFunc("GET /carts/me", h.MyCart)
	mux.HandleFunc("GET /carts/{id}", h.GetCart)
	mux.HandleFunc("PUT /carts/{id}", h.ReplaceCart)
	mux.HandleFunc("DELETE /carts/{id}", h.DeleteCart)

	mux.HandleFunc("GET /cart-items", h.ListCartItems)
	mux.HandleFunc("POST /cart-items", h.AddCartItem)
	// GET takes a user id; the mutating methods take a cart item id.
	mux.HandleFunc("GET /cart-items/{id}", h.UserCartItems)
	mux.HandleFunc("PUT /cart-items/{id}", h.UpdateCartItem)
	mux.HandleFunc("PATCH /cart-items/{id}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /cart-items/{id}", h.DeleteCartItem)
}

type userRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type cartView struct {
	ID    int64             `json:"id"`
	User  userRef           `json:"user"`
	Items []models.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

func viewOf(c *models.Cart) cartView {
	items := c.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return cartView{
		ID:    c.ID,
		User:  userRef{ID: c.UserID, Username: c.Username},
		Items: items,
		Total: c.Total(),
	}
}

// ListCarts handles GET /carts
func (h *Handler) ListCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := h.service.ListCarts(r.Context(), access.FromContext(r.Context()))
	if err != nil {
		web.WriteError(w, r, h.logger, "list_carts_failed", err)
		return
	}
	views := make([]cartView, 0, len(carts))
	for i := range carts {
		views = append(views, viewOf(&carts[i]))
	}
	h.writeJSON(w, r, http.StatusOK, views)
}

// CreateCart handles POST /carts
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.CreateCart(r.Context(), access.FromContext(r.Context()))
	if err != nil {
		web.WriteError(w, r, h.logger, "create_cart_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, viewOf(c))
}

// MyCart handles GET /carts/me
func (h *Handler) MyCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetOrCreateCart(r.Context(), access.FromContext(r.Context()))
	if err != nil {
		web.WriteError(w, r, h.logger, "get_cart_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, viewOf(c))
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "get_cart_failed", err)
		return
	}
	c, err := h.service.GetCart(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		web.WriteError(w, r, h.logger, "get_cart_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, viewOf(c))
}

type replaceCartRequest struct {
	Items []models.CartItemInput `json:"items"`
}

// ReplaceCart handles PUT /carts/{id}
func (h *Handler) ReplaceCart(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "replace_cart_failed", err)
		return
	}
	var req replaceCartRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, r, h.logger, "replace_cart_failed", err)
		return
	}
	c, err := h.service.ReplaceCart(r.Context(), access.FromContext(r.Context()), id, req.Items)
	if err != nil {
		web.WriteError(w, r, h.logger, "replace_cart_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, viewOf(c))
}

func (h *Handler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "delete_cart_failed", err)
		return
	}
	if err := h.service.DeleteCart(r.Context(), access.FromContext(r.Context()), id); err != nil {
		web.WriteError(w, r, h.logger, "delete_cart_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCartItems handles GET /cart-items, grouped by username
func (h *Handler) ListCartItems(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.service.ListGroupedByUser(r.Context(), access.FromContext(r.Context()))
	if err != nil {
		web.WriteError(w, r, h.logger, "list_cart_items_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, grouped)
}

// AddCartItem handles POST /cart-items
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var in models.CartItemInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, r, h.logger, "add_cart_item_failed", err)
		return
	}
	item, err := h.service.AddItem(r.Context(), access.FromContext(r.Context()), in)
	if err != nil {
		web.WriteError(w, r, h.logger, "add_cart_item_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, item)
}

// UserCartItems handles GET /cart-items/{user_id}
func (h *Handler) UserCartItems(w http.ResponseWriter, r *http.Request) {
	userID, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "get_cart_items_failed", err)
		return
	}
	items, err := h.service.ItemsForUser(r.Context(), access.FromContext(r.Context()), userID)
	if err != nil {
		web.WriteError(w, r, h.logger, "get_cart_items_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, items)
}

// UpdateCartItem handles PUT and PATCH /cart-items/{id}
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "update_cart_item_failed", err)
		return
	}
	var in models.CartItemInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, r, h.logger, "update_cart_item_failed", err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), access.FromContext(r.Context()), id, in, r.Method == http.MethodPatch)
	if err != nil {
		web.WriteError(w, r, h.logger, "update_cart_item_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, item)
}

func (h *Handler) DeleteCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "delete_cart_item_failed", err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), access.FromContext(r.Context()), id); err != nil {
		web.WriteError(w, r, h.logger, "delete_cart_item_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := web.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFromContext(r.Context()), err, nil)
	}
}
