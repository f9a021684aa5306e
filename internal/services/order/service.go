// Package order converts carts into priced orders and drives the order status machine.
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"littlelemon/internal/access"
	"littlelemon/internal/apperr"
	"littlelemon/internal/database"
	"littlelemon/internal/logger"
	"littlelemon/internal/models"
	"littlelemon/internal/payment"
)

// Store is the order persistence. Orders returned by Store carry their items.
type Store interface {
	ListOrders(ctx context.Context, scope access.Scope, userID int64) ([]models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	IsDeliveryCrew(ctx context.Context, userID int64) (bool, error)
	SetPaymentSession(ctx context.Context, id int64, sessionID string) error
	DeleteOrder(ctx context.Context, id int64) error
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx holds the row locks for cart conversion and order updates.
type Tx interface {
	// LockCartByUser returns the id of the user's locked cart, or database.ErrNotFound.
	LockCartByUser(ctx context.Context, userID int64) (int64, error)
	CartLines(ctx context.Context, cartID int64) ([]models.CartItem, error)
	ClearCart(ctx context.Context, cartID int64) error

	// InsertOrder sets o.ID and o.CreatedAt.
	InsertOrder(ctx context.Context, o *models.Order) error
	// InsertOrderItem sets item.ID.
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
	SetTotal(ctx context.Context, orderID int64, total decimal.Decimal) error

	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrder(ctx context.Context, o *models.Order) error
}

// EventPublisher receives order events after the change is committed.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	return nil
}

// CallbackURLs returns the checkout success and cancel URLs for an order.
type CallbackURLs func(orderID int64) (success, cancel string)

type Service struct {
	store   Store
	gateway payment.Gateway
	urls    CallbackURLs
	events  EventPublisher
	logger  *logger.Logger
}

func NewService(store Store, gateway payment.Gateway, urls CallbackURLs, events EventPublisher, log *logger.Logger) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		store:   store,
		gateway: gateway,
		urls:    urls,
		events:  events,
		logger:  log,
	}
}

// List returns the orders visible to actor: all for managers, assigned ones for
// delivery crew, own orders for everyone else.
func (s *Service) List(ctx context.Context, actor access.Actor) ([]models.Order, error) {
	if err := access.Authorize(actor, access.OpReadOrders); err != nil {
		return nil, err
	}
	orders, err := s.store.ListOrders(ctx, access.OrderScope(actor), actor.UserID)
	if err != nil {
		return nil, translate(err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *Service) Get(ctx context.Context, actor access.Actor, id int64) (*models.Order, error) {
	if err := access.Authorize(actor, access.OpReadOrders); err != nil {
		return nil, err
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !visible(actor, o) {
		return nil, apperr.NotFound("Order")
	}
	return o, nil
}

// CreateFromCart drains the actor's cart into a new order. Unit prices are copied from
// the catalog at this moment and the total is fixed.
func (s *Service) CreateFromCart(ctx context.Context, actor access.Actor) (*models.Order, error) {
	if err := access.Authorize(actor, access.OpCreateOrder); err != nil {
		return nil, err
	}

	var orderID int64
	err := s.store.InTx(ctx, func(tx Tx) error {
		cartID, err := tx.LockCartByUser(ctx, actor.UserID)
		if errors.Is(err, database.ErrNotFound) {
			return errEmptyCart
		}
		if err != nil {
			return err
		}

		lines, err := tx.CartLines(ctx, cartID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return errEmptyCart
		}

		o := &models.Order{UserID: actor.UserID, Status: models.StatusOutForDelivery}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			item := models.NewOrderItem(line.MenuItemID, line.Title, line.UnitPrice, line.Quantity)
			item.OrderID = o.ID
			if err := tx.InsertOrderItem(ctx, &item); err != nil {
				return err
			}
			items = append(items, item)
		}

		if err := tx.SetTotal(ctx, o.ID, models.SumPrices(items)); err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, cartID); err != nil {
			return err
		}
		orderID = o.ID
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Info("order_created", "Order created from cart", logger.RequestIDFromContext(ctx), map[string]interface{}{
		"order_id": o.ID,
		"user_id":  o.UserID,
		"items":    len(o.Items),
		"total":    o.Total.StringFixed(2),
	})
	s.publish(ctx, models.EventOrderCreated, o, actor)
	return o, nil
}

// Update applies a delivery crew assignment and/or a status change. Every field in upd
// must be permitted for actor, otherwise nothing is changed.
func (s *Service) Update(ctx context.Context, actor access.Actor, id int64, upd models.OrderUpdate) (*models.Order, error) {
	if err := access.Authorize(actor, access.OpReadOrders); err != nil {
		return nil, err
	}
	if upd.Empty() {
		return nil, apperr.Validation("", "At least one of delivery_crew or status is required.")
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, apperr.Validation("status", fmt.Sprintf("\"%d\" is not a valid choice.", int(*upd.Status)))
	}

	delivering := upd.Status != nil && *upd.Status == models.StatusDelivered
	if upd.DeliveryCrewSet {
		if err := access.Authorize(actor, access.OpAssignDeliveryCrew); err != nil {
			return nil, err
		}
	}
	if delivering {
		if err := access.Authorize(actor, access.OpMarkDelivered); err != nil {
			return nil, err
		}
	}

	if upd.DeliveryCrewSet && upd.DeliveryCrew != nil {
		ok, err := s.store.IsDeliveryCrew(ctx, *upd.DeliveryCrew)
		if err != nil {
			return nil, translate(err)
		}
		if !ok {
			return nil, apperr.Validation("delivery_crew", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *upd.DeliveryCrew))
		}
	}

	var crewChanged, delivered bool
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}

		if delivering {
			if !assignedTo(actor, o) {
				return apperr.PermissionDenied("You are not assigned to this order.")
			}
		} else if !visible(actor, o) {
			return apperr.NotFound("Order")
		}

		next := *o
		if upd.DeliveryCrewSet && !sameCrew(o.DeliveryCrewID, upd.DeliveryCrew) {
			if o.Status == models.StatusDelivered {
				return apperr.FailedPrecondition("A delivered order cannot be reassigned.")
			}
			next.DeliveryCrewID = upd.DeliveryCrew
			crewChanged = true
		}
		if upd.Status != nil && *upd.Status != o.Status {
			if !o.Status.CanTransitionTo(*upd.Status) {
				return apperr.FailedPrecondition("A delivered order cannot change status.")
			}
			next.Status = *upd.Status
			delivered = next.Status == models.StatusDelivered
		}

		if !crewChanged && !delivered {
			return nil
		}
		return tx.UpdateOrder(ctx, &next)
	})
	if err != nil {
		return nil, translate(err)
	}

	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	if crewChanged {
		s.publish(ctx, models.EventOrderCrewAssigned, o, actor)
	}
	if delivered {
		s.publish(ctx, models.EventOrderDelivered, o, actor)
	}
	return o, nil
}

func (s *Service) Delete(ctx context.Context, actor access.Actor, id int64) error {
	if err := access.Authorize(actor, access.OpDeleteOrder); err != nil {
		return err
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return translate(err)
	}
	if err := s.store.DeleteOrder(ctx, id); err != nil {
		return translate(err)
	}
	s.publish(ctx, models.EventOrderDeleted, o, actor)
	return nil
}

// Checkout is the result of starting a payment.
type Checkout struct {
	OrderID   int64  `json:"order_id"`
	SessionID string `json:"session_id"`
	URL       string `json:"checkout_url"`
}

// Pay opens a checkout session for the order's items. No lock or transaction is held
// while the gateway is called; on failure the order is left untouched.
func (s *Service) Pay(ctx context.Context, actor access.Actor, id int64) (*Checkout, error) {
	if err := access.Authorize(actor, access.OpPayOrder); err != nil {
		return nil, err
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !access.CanSeeUser(actor, o.UserID) {
		return nil, apperr.NotFound("Order")
	}
	if o.Status == models.StatusDelivered {
		return nil, apperr.FailedPrecondition("This order has already been completed.")
	}

	req := SessionRequest(o)
	req.SuccessURL, req.CancelURL = s.urls(o.ID)

	requestID := logger.RequestIDFromContext(ctx)
	sess, err := s.gateway.CreateSession(ctx, req)
	if err != nil {
		s.logger.Error("payment_session_failed", "Failed to create checkout session", requestID, err, map[string]interface{}{
			"order_id": o.ID,
		})
		return nil, apperr.Unavailable("Payment could not be started. Please try again later.", err)
	}

	if err := s.store.SetPaymentSession(ctx, o.ID, sess.ID); err != nil {
		return nil, translate(err)
	}

	s.logger.Info("payment_session_created", "Checkout session created", requestID, map[string]interface{}{
		"order_id":   o.ID,
		"session_id": sess.ID,
	})
	return &Checkout{OrderID: o.ID, SessionID: sess.ID, URL: sess.URL}, nil
}

// SessionRequest builds the checkout request for o: one line per order item, priced
// at the snapshotted unit price in minor units.
func SessionRequest(o *models.Order) payment.SessionRequest {
	req := payment.SessionRequest{OrderID: o.ID}
	for _, item := range o.Items {
		req.LineItems = append(req.LineItems, payment.LineItem{
			Name:        item.Title,
			Description: fmt.Sprintf("Order #%d", o.ID),
			UnitAmount:  models.MinorUnits(item.UnitPrice),
			Quantity:    int64(item.Quantity),
		})
	}
	return req
}

// ConfirmPayment is the gateway success callback. The session must be the one recorded
// on the order and reported paid by the gateway. Repeated callbacks are no-ops.
func (s *Service) ConfirmPayment(ctx context.Context, id int64, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, apperr.Validation("session_id", "this field is required")
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if o.PaymentSessionID == "" || o.PaymentSessionID != sessionID {
		return nil, apperr.FailedPrecondition("Payment session does not match this order.")
	}

	status, err := s.gateway.ConfirmSession(ctx, sessionID)
	if err != nil {
		s.logger.Error("payment_confirm_failed", "Failed to confirm checkout session", logger.RequestIDFromContext(ctx), err, map[string]interface{}{
			"order_id":   id,
			"session_id": sessionID,
		})
		return nil, apperr.Unavailable("Payment could not be confirmed. Please try again later.", err)
	}
	if status.OrderID != id {
		return nil, apperr.FailedPrecondition("Payment session does not match this order.")
	}
	if !status.Paid {
		return nil, apperr.FailedPrecondition("Payment has not been completed.")
	}

	var paid bool
	err = s.store.InTx(ctx, func(tx Tx) error {
		locked, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if locked.Status == models.StatusDelivered {
			return nil
		}
		locked.Status = models.StatusDelivered
		paid = true
		return tx.UpdateOrder(ctx, locked)
	})
	if err != nil {
		return nil, translate(err)
	}

	o, err = s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if paid {
		s.publish(ctx, models.EventOrderPaid, o, access.Actor{Username: "payment-gateway"})
	}
	return o, nil
}

// publish never fails the caller; the change is already committed.
func (s *Service) publish(ctx context.Context, eventType models.OrderEventType, o *models.Order, actor access.Actor) {
	requestID := logger.RequestIDFromContext(ctx)
	changedBy := actor.Username
	if changedBy == "" {
		changedBy = actor.Name()
	}
	event := models.NewOrderEvent(eventType, o, changedBy, requestID)
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Warn("order_event_publish_failed", "Failed to publish order event", requestID, map[string]interface{}{
			"order_id": o.ID,
			"event":    string(eventType),
			"error":    err.Error(),
		})
	}
}

func visible(actor access.Actor, o *models.Order) bool {
	switch access.OrderScope(actor) {
	case access.ScopeAll:
		return true
	case access.ScopeAssigned:
		return assignedTo(actor, o)
	default:
		return o.UserID == actor.UserID
	}
}

// assignedTo reports whether actor is the order's delivery crew. Admin is always allowed.
func assignedTo(actor access.Actor, o *models.Order) bool {
	if actor.Caps&access.CapAdmin != 0 {
		return true
	}
	return o.DeliveryCrewID != nil && *o.DeliveryCrewID == actor.UserID
}

func sameCrew(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

var errEmptyCart = apperr.FailedPrecondition("Cart is empty.")

func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, database.ErrNotFound):
		return apperr.NotFound("Order")
	case errors.Is(err, database.ErrForeignKey):
		return apperr.Retryable("A menu item changed while the order was placed. Please retry.", err)
	case errors.Is(err, database.ErrConflict):
		return apperr.Retryable("The order was modified concurrently. Please retry.", err)
	case errors.Is(err, database.ErrOutOfRange):
		return apperr.Validation("total", "exceeds the largest order value that can be stored")
	default:
		return apperr.Internal(err)
	}
}
