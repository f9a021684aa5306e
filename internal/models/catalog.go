package models

import (
	"strings"

	"github.com/shopspring/decimal"

	"littlelemon/internal/apperr"
)

// Category groups menu items. Deleting a category deletes its items.
type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// MenuItem is a catalog entry. Inventory is advisory and is never decremented by orders.
type MenuItem struct {
	ID         int64           `json:"id" db:"id"`
	Title      string          `json:"title" db:"title"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Inventory  int             `json:"inventory" db:"inventory"`
	CategoryID int64           `json:"category_id" db:"category_id"`
	Category   *Category       `json:"category,omitempty"`
	Featured   bool            `json:"featured" db:"featured"`
}

// MenuItemInput is a create or partial update of a menu item. Nil fields are left unchanged.
type MenuItemInput struct {
	Title      *string          `json:"title"`
	Price      *decimal.Decimal `json:"price"`
	Inventory  *int             `json:"inventory"`
	CategoryID *int64           `json:"category_id"`
	Featured   *bool            `json:"featured"`
}

// ValidateCreate checks that every field required for a new item is present.
func (in *MenuItemInput) ValidateCreate() error {
	if in.Title == nil {
		return apperr.Validation("title", "this field is required")
	}
	if in.Price == nil {
		return apperr.Validation("price", "this field is required")
	}
	if in.CategoryID == nil {
		return apperr.Validation("category_id", "this field is required")
	}
	return in.Validate()
}

// Validate checks the fields that are set.
func (in *MenuItemInput) Validate() error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return apperr.Validation("title", "may not be blank")
		}
		if len(title) > 120 {
			return apperr.Validation("title", "must not exceed 120 characters")
		}
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return apperr.Validation("price", "must not be negative")
		}
		if !in.Price.Equal(in.Price.Round(2)) {
			return apperr.Validation("price", "must have at most 2 decimal places")
		}
		if in.Price.GreaterThanOrEqual(decimal.NewFromInt(1_000_000)) {
			return apperr.Validation("price", "must be less than 1000000")
		}
	}
	if in.Inventory != nil && *in.Inventory < 0 {
		return apperr.Validation("inventory", "must not be negative")
	}
	return nil
}

// Apply copies the set fields onto item. Featured is handled by the caller.
func (in *MenuItemInput) Apply(item *MenuItem) {
	if in.Title != nil {
		item.Title = strings.TrimSpace(*in.Title)
	}
	if in.Price != nil {
		item.Price = in.Price.Round(2)
	}
	if in.Inventory != nil {
		item.Inventory = *in.Inventory
	}
	if in.CategoryID != nil {
		item.CategoryID = *in.CategoryID
	}
}

// CategoryInput creates or renames a category.
type CategoryInput struct {
	Name string `json:"name"`
}

func (in *CategoryInput) Validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperr.Validation("name", "this field is required")
	}
	if len(name) > 100 {
		return apperr.Validation("name", "must not exceed 100 characters")
	}
	return nil
}
