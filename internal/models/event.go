package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderEventType names an order lifecycle event.
type OrderEventType string

const (
	EventOrderCreated      OrderEventType = "created"
	EventOrderCrewAssigned OrderEventType = "crew_assigned"
	EventOrderDelivered    OrderEventType = "delivered"
	EventOrderPaid         OrderEventType = "paid"
	EventOrderDeleted      OrderEventType = "deleted"
)

// OrderEvent is published after an order change has been committed.
type OrderEvent struct {
	Type           OrderEventType  `json:"type"`
	OrderID        int64           `json:"order_id"`
	UserID         int64           `json:"user_id"`
	DeliveryCrewID *int64          `json:"delivery_crew_id,omitempty"`
	Status         string          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	ChangedBy      string          `json:"changed_by"`
	RequestID      string          `json:"request_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewOrderEvent builds an event for o.
func NewOrderEvent(eventType OrderEventType, o *Order, changedBy, requestID string) *OrderEvent {
	return &OrderEvent{
		Type:           eventType,
		OrderID:        o.ID,
		UserID:         o.UserID,
		DeliveryCrewID: o.DeliveryCrewID,
		Status:         o.Status.String(),
		Total:          o.Total,
		ChangedBy:      changedBy,
		RequestID:      requestID,
		Timestamp:      time.Now().UTC(),
	}
}

// RoutingKey returns the topic routing key, e.g. "order.created".
func (e *OrderEvent) RoutingKey() string {
	return fmt.Sprintf("order.%s", e.Type)
}
