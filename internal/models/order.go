package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order. It is stored as a small integer.
type OrderStatus int

const (
	StatusOutForDelivery OrderStatus = 0
	StatusDelivered      OrderStatus = 1
)

func (s OrderStatus) String() string {
	switch s {
	case StatusOutForDelivery:
		return "Out for delivery"
	case StatusDelivered:
		return "Delivered"
	default:
		return fmt.Sprintf("OrderStatus(%d)", int(s))
	}
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	return s == StatusOutForDelivery || s == StatusDelivered
}

// CanTransitionTo reports whether an order in status s may move to next.
// Delivered is terminal; staying in the same status is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return s == StatusOutForDelivery && next == StatusDelivered
}

// OrderItem is a line of an order. Price always equals UnitPrice * Quantity; use
// NewOrderItem, SetQuantity or SetUnitPrice rather than assigning Price.
type OrderItem struct {
	ID         int64           `json:"id" db:"id"`
	OrderID    int64           `json:"-" db:"order_id"`
	MenuItemID *int64          `json:"menuitem_id" db:"menuitem_id"`
	Title      string          `json:"menuitem_title" db:"menuitem_title"`
	Quantity   int             `json:"quantity" db:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	Price      decimal.Decimal `json:"price" db:"price"`
}

// NewOrderItem snapshots unitPrice into a new line.
func NewOrderItem(menuItemID int64, title string, unitPrice decimal.Decimal, quantity int) OrderItem {
	id := menuItemID
	item := OrderItem{
		MenuItemID: &id,
		Title:      title,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
	}
	item.recompute()
	return item
}

func (i *OrderItem) SetQuantity(quantity int) {
	i.Quantity = quantity
	i.recompute()
}

func (i *OrderItem) SetUnitPrice(unitPrice decimal.Decimal) {
	i.UnitPrice = unitPrice
	i.recompute()
}

func (i *OrderItem) recompute() {
	i.Price = i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed order. Total is fixed at creation and never recomputed.
type Order struct {
	ID               int64           `json:"id" db:"id"`
	UserID           int64           `json:"user" db:"user_id"`
	DeliveryCrewID   *int64          `json:"delivery_crew" db:"delivery_crew_id"`
	DeliveryCrewName string          `json:"delivery_crew_name,omitempty"`
	Status           OrderStatus     `json:"status" db:"status"`
	Total            decimal.Decimal `json:"total" db:"total"`
	PaymentSessionID string          `json:"-" db:"payment_session_id"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	Items            []OrderItem     `json:"items"`
}

// MarshalJSON adds status_display next to the numeric status.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		StatusDisplay string `json:"status_display"`
	}{plain(o), o.Status.String()})
}

// SumPrices returns the sum of item prices.
func SumPrices(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price)
	}
	return total
}

// MinorUnits converts an amount to integer minor currency units (cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// OrderUpdate is the body of PUT/PATCH /orders/{id}. Absent fields are left unchanged;
// an explicit null delivery_crew unassigns the order.
type OrderUpdate struct {
	DeliveryCrew    *int64
	DeliveryCrewSet bool
	Status          *OrderStatus
}

func (u *OrderUpdate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, value := range raw {
		switch key {
		case "delivery_crew":
			u.DeliveryCrewSet = true
			if string(value) == "null" {
				u.DeliveryCrew = nil
				continue
			}
			var id int64
			if err := json.Unmarshal(value, &id); err != nil {
				return fmt.Errorf("delivery_crew: %w", err)
			}
			u.DeliveryCrew = &id
		case "status":
			var status OrderStatus
			if err := json.Unmarshal(value, &status); err != nil {
				return fmt.Errorf("status: %w", err)
			}
			u.Status = &status
		default:
			return fmt.Errorf("json: unknown field %q", key)
		}
	}
	return nil
}

// Empty reports whether the update changes nothing.
func (u *OrderUpdate) Empty() bool {
	return !u.DeliveryCrewSet && u.Status == nil
}
