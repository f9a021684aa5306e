package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"littlelemon/internal/apperr"
)

// Cart belongs to exactly one user. Its total is computed from live catalog prices.
type Cart struct {
	ID       int64      `json:"id" db:"id"`
	UserID   int64      `json:"-" db:"user_id"`
	Username string     `json:"-"`
	Items    []CartItem `json:"items"`
}

// Total sums the live subtotal of every line.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// CartItem is a cart line. UnitPrice and Title are read from the menu item at query time.
type CartItem struct {
	ID         int64           `json:"id" db:"id"`
	CartID     int64           `json:"-" db:"cart_id"`
	MenuItemID int64           `json:"menuitem_id" db:"menuitem_id"`
	Title      string          `json:"menuitem_title"`
	UnitPrice  decimal.Decimal `json:"menuitem_price"`
	Quantity   int             `json:"quantity" db:"quantity"`
	UserID     int64           `json:"-"`
	Username   string          `json:"cart_name,omitempty"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// MarshalJSON adds the live subtotal.
func (i CartItem) MarshalJSON() ([]byte, error) {
	type plain CartItem
	return json.Marshal(struct {
		plain
		Subtotal decimal.Decimal `json:"subtotal"`
	}{plain(i), i.Subtotal()})
}

// CartItemInput adds a menu item to a cart or changes a line.
type CartItemInput struct {
	MenuItemID int64 `json:"menuitem_id"`
	Quantity   *int  `json:"quantity"`
}

// QuantityOrDefault returns the requested quantity, 1 when omitted.
func (in *CartItemInput) QuantityOrDefault() int {
	if in.Quantity == nil {
		return 1
	}
	return *in.Quantity
}

func (in *CartItemInput) Validate() error {
	if in.MenuItemID <= 0 {
		return apperr.Validation("menuitem_id", "this field is required")
	}
	return ValidateQuantity(in.QuantityOrDefault())
}

// MaxQuantity bounds a single cart line. The cart_items check constraint enforces the
// same limit when repeated additions are merged.
const MaxQuantity = 100

// ValidateQuantity rejects quantities outside 1..MaxQuantity.
func ValidateQuantity(quantity int) error {
	if quantity < 1 {
		return apperr.Validation("quantity", "must be at least 1")
	}
	if quantity > MaxQuantity {
		return apperr.Validation("quantity", fmt.Sprintf("must be at most %d", MaxQuantity))
	}
	return nil
}
