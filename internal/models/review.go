package models

import (
	"time"

	"littlelemon/internal/apperr"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a user's rating of a menu item. A user reviews an item at most once.
type Review struct {
	ID         int64     `json:"id" db:"id"`
	MenuItemID int64     `json:"menuitem" db:"menuitem_id"`
	UserID     int64     `json:"-" db:"user_id"`
	Username   string    `json:"user"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type ReviewInput struct {
	MenuItemID int64  `json:"menuitem_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
}

func (in *ReviewInput) Validate() error {
	if in.MenuItemID <= 0 {
		return apperr.Validation("menuitem_id", "this field is required")
	}
	if in.Rating < MinRating || in.Rating > MaxRating {
		return apperr.Validation("rating", "must be between 1 and 5")
	}
	if len(in.Comment) > 2000 {
		return apperr.Validation("comment", "must not exceed 2000 characters")
	}
	return nil
}
