// Package review stores menu item ratings, one per user and item.
package review

import (
	"context"
	"errors"

	"littlelemon/internal/access"
	"littlelemon/internal/apperr"
	"littlelemon/internal/database"
	"littlelemon/internal/logger"
	"littlelemon/internal/models"
)

type Store interface {
	// ListReviews returns every review, or only those of menuItemID when it is set.
	ListReviews(ctx context.Context, menuItemID *int64) ([]models.Review, error)
	GetReview(ctx context.Context, id int64) (*models.Review, error)
	MenuItemExists(ctx context.Context, id int64) (bool, error)
	// InsertReview sets r.ID and r.CreatedAt. A second review of the same item by the
	// same user fails with database.ErrDuplicate.
	InsertReview(ctx context.Context, r *models.Review) error
	DeleteReview(ctx context.Context, id int64) error
}

type Service struct {
	store  Store
	logger *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

func (s *Service) List(ctx context.Context, actor access.Actor, menuItemID *int64) ([]models.Review, error) {
	if err := access.Authorize(actor, access.OpReadReviews); err != nil {
		return nil, err
	}
	if menuItemID != nil {
		if err := s.requireMenuItem(ctx, *menuItemID); err != nil {
			return nil, err
		}
	}
	reviews, err := s.store.ListReviews(ctx, menuItemID)
	if err != nil {
		return nil, translate(err)
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, nil
}

func (s *Service) Get(ctx context.Context, actor access.Actor, id int64) (*models.Review, error) {
	if err := access.Authorize(actor, access.OpReadReviews); err != nil {
		return nil, err
	}
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return r, nil
}

// Create records actor's review of a menu item. Reviewing the same item twice is a Conflict.
func (s *Service) Create(ctx context.Context, actor access.Actor, in models.ReviewInput) (*models.Review, error) {
	if err := access.Authorize(actor, access.OpCreateReview); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireMenuItem(ctx, in.MenuItemID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Validation("menuitem_id", "Invalid pk - object does not exist.")
		}
		return nil, err
	}

	r := &models.Review{
		MenuItemID: in.MenuItemID,
		UserID:     actor.UserID,
		Username:   actor.Username,
		Rating:     in.Rating,
		Comment:    in.Comment,
	}
	if err := s.store.InsertReview(ctx, r); err != nil {
		return nil, translate(err)
	}

	s.logger.Debug("review_created", "Review created", logger.RequestIDFromContext(ctx), map[string]interface{}{
		"review_id":    r.ID,
		"menu_item_id": r.MenuItemID,
		"rating":       r.Rating,
	})
	return r, nil
}

// Delete removes a review. Only its author or a manager may do so.
func (s *Service) Delete(ctx context.Context, actor access.Actor, id int64) error {
	if err := access.RequireAuthenticated(actor); err != nil {
		return err
	}
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return translate(err)
	}
	if !access.CanSeeUser(actor, r.UserID) {
		return apperr.PermissionDenied("You can only delete your own reviews.")
	}
	return translate(s.store.DeleteReview(ctx, id))
}

func (s *Service) requireMenuItem(ctx context.Context, id int64) error {
	ok, err := s.store.MenuItemExists(ctx, id)
	if err != nil {
		return translate(err)
	}
	if !ok {
		return apperr.NotFound("Menu item")
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, database.ErrDuplicate):
		return apperr.Conflict("You have already reviewed this menu item.")
	case errors.Is(err, database.ErrNotFound):
		return apperr.NotFound("Review")
	case errors.Is(err, database.ErrForeignKey):
		return apperr.Validation("menuitem_id", "Invalid pk - object does not exist.")
	case errors.Is(err, database.ErrCheck):
		return apperr.Validation("rating", "must be between 1 and 5")
	default:
		return apperr.Internal(err)
	}
}
