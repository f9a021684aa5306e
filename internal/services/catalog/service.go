// Package catalog manages categories and menu items, including the single featured item.
package catalog

import (
	"context"
	"errors"

	"littlelemon/internal/access"
	"littlelemon/internal/apperr"
	"littlelemon/internal/database"
	"littlelemon/internal/logger"
	"littlelemon/internal/models"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListQuery filters, orders and paginates menu items.
type ListQuery struct {
	CategoryID *int64
	Search     string
	Ordering   string
	Page       int
	PageSize   int
}

var orderings = map[string]bool{
	"": true, "price": true, "-price": true, "title": true, "-title": true,
}

// Page is one page of menu items.
type Page struct {
	Count    int               `json:"count"`
	NextPage *int              `json:"next_page"`
	Results  []models.MenuItem `json:"results"`
}

// Store is the persistence the catalog needs.
type Store interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	CreateCategory(ctx context.Context, name string) (*models.Category, error)
	UpdateCategory(ctx context.Context, id int64, name string) error
	DeleteCategory(ctx context.Context, id int64) error

	ListMenuItems(ctx context.Context, q ListQuery) ([]models.MenuItem, int, error)
	GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id int64) error

	// InTx runs fn in a transaction, rolling back if fn returns an error.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx holds the row-locking operations used for featured changes.
type Tx interface {
	// LockFeaturedCandidates locks the currently featured item and targetID.
	LockFeaturedCandidates(ctx context.Context, targetID int64) error
	GetMenuItemForUpdate(ctx context.Context, id int64) (*models.MenuItem, error)
	// ClearFeatured unfeatures every item except exceptID.
	ClearFeatured(ctx context.Context, exceptID int64) error
	InsertMenuItem(ctx context.Context, item *models.MenuItem) error
	UpdateMenuItem(ctx context.Context, item *models.MenuItem) error
}

type Service struct {
	store  Store
	logger *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, translate(err, "Category")
	}
	return categories, nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, translate(err, "Category")
	}
	return c, nil
}

func (s *Service) CreateCategory(ctx context.Context, actor access.Actor, in models.CategoryInput) (*models.Category, error) {
	if err := access.Authorize(actor, access.OpWriteCatalog); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c, err := s.store.CreateCategory(ctx, in.Name)
	if err != nil {
		return nil, translate(err, "Category")
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, actor access.Actor, id int64, in models.CategoryInput) (*models.Category, error) {
	if err := access.Authorize(actor, access.OpWriteCatalog); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateCategory(ctx, id, in.Name); err != nil {
		return nil, translate(err, "Category")
	}
	return s.GetCategory(ctx, id)
}

// DeleteCategory removes a category and, by cascade, its menu items.
func (s *Service) DeleteCategory(ctx context.Context, actor access.Actor, id int64) error {
	if err := access.Authorize(actor, access.OpWriteCatalog); err != nil {
		return err
	}
	return translate(s.store.DeleteCategory(ctx, id), "Category")
}

func (s *Service) ListMenuItems(ctx context.Context, q ListQuery) (*Page, error) {
	if !orderings[q.Ordering] {
		return nil, apperr.Validation("ordering", "must be one of price, -price, title, -title")
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}

	items, count, err := s.store.ListMenuItems(ctx, q)
	if err != nil {
		return nil, translate(err, "Menu item")
	}
	if items == nil {
		items = []models.MenuItem{}
	}

	page := &Page{Count: count, Results: items}
	if q.Page*q.PageSize < count {
		next := q.Page + 1
		page.NextPage = &next
	}
	return page, nil
}

func (s *Service) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	item, err := s.store.GetMenuItem(ctx, id)
	if err != nil {
		return nil, translate(err, "Menu item")
	}
	return item, nil
}

// CreateMenuItem adds an item. categoryID, when set, comes from a nested route and
// overrides any category in the body.
func (s *Service) CreateMenuItem(ctx context.Context, actor access.Actor, categoryID *int64, in models.MenuItemInput) (*models.MenuItem, error) {
	if in.Featured != nil {
		if err := access.Authorize(actor, access.OpSetFeatured); err != nil {
			return nil, err
		}
	}
	if err := access.Authorize(actor, access.OpWriteCatalog); err != nil {
		return nil, err
	}
	if categoryID != nil {
		in.CategoryID = categoryID
	}
	if err := in.ValidateCreate(); err != nil {
		return nil, err
	}

	item := &models.MenuItem{}
	in.Apply(item)
	item.Featured = in.Featured != nil && *in.Featured

	err := s.store.InTx(ctx, func(tx Tx) error {
		if item.Featured {
			if err := tx.LockFeaturedCandidates(ctx, 0); err != nil {
				return err
			}
			if err := tx.ClearFeatured(ctx, 0); err != nil {
				return err
			}
		}
		return tx.InsertMenuItem(ctx, item)
	})
	if err != nil {
		return nil, translate(err, "Menu item")
	}

	s.logFeatured(ctx, actor, item)
	return s.GetMenuItem(ctx, item.ID)
}

// UpdateMenuItem applies in to item id. Setting featured=true clears it on every other
// item in the same transaction; with partial=false every required field must be present.
func (s *Service) UpdateMenuItem(ctx context.Context, actor access.Actor, id int64, in models.MenuItemInput, partial bool) (*models.MenuItem, error) {
	if in.Featured != nil {
		if err := access.Authorize(actor, access.OpSetFeatured); err != nil {
			return nil, err
		}
	}
	if err := access.Authorize(actor, access.OpWriteCatalog); err != nil {
		return nil, err
	}

	validate := in.ValidateCreate
	if partial {
		validate = in.Validate
	}
	if err := validate(); err != nil {
		return nil, err
	}

	featuring := in.Featured != nil && *in.Featured

	var updated *models.MenuItem
	err := s.store.InTx(ctx, func(tx Tx) error {
		if featuring {
			if err := tx.LockFeaturedCandidates(ctx, id); err != nil {
				return err
			}
		}

		item, err := tx.GetMenuItemForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if featuring {
			if err := tx.ClearFeatured(ctx, id); err != nil {
				return err
			}
		}
		if in.Featured != nil {
			item.Featured = *in.Featured
		}
		in.Apply(item)

		if err := tx.UpdateMenuItem(ctx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, translate(err, "Menu item")
	}

	if in.Featured != nil {
		s.logFeatured(ctx, actor, updated)
	}
	return s.GetMenuItem(ctx, id)
}

// SetFeatured is UpdateMenuItem with only the featured flag.
func (s *Service) SetFeatured(ctx context.Context, actor access.Actor, id int64, featured bool) (*models.MenuItem, error) {
	return s.UpdateMenuItem(ctx, actor, id, models.MenuItemInput{Featured: &featured}, true)
}

func (s *Service) DeleteMenuItem(ctx context.Context, actor access.Actor, id int64) error {
	if err := access.Authorize(actor, access.OpWriteCatalog); err != nil {
		return err
	}
	return translate(s.store.DeleteMenuItem(ctx, id), "Menu item")
}

func (s *Service) logFeatured(ctx context.Context, actor access.Actor, item *models.MenuItem) {
	if !item.Featured {
		return
	}
	s.logger.Info("menu_item_featured", "Menu item is now featured", logger.RequestIDFromContext(ctx), map[string]interface{}{
		"menu_item_id": item.ID,
		"changed_by":   actor.Name(),
	})
}

// translate maps store errors onto the API error taxonomy. Losing the featured race,
// either on the unique index or on a lock conflict, is reported as retryable.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, database.ErrNotFound):
		return apperr.NotFound(what)
	case errors.Is(err, database.ErrForeignKey):
		return apperr.Validation("category_id", "Invalid pk - object does not exist.")
	case errors.Is(err, database.ErrDuplicate), errors.Is(err, database.ErrConflict):
		return apperr.Retryable("Could not set featured due to concurrency. Please retry.", err)
	default:
		return apperr.Internal(err)
	}
}
