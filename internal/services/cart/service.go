// Package cart implements per-user shopping carts.
package cart

import (
	"context"
	"errors"
	"fmt"

	"littlelemon/internal/access"
	"littlelemon/internal/apperr"
	"littlelemon/internal/database"
	"littlelemon/internal/logger"
	"littlelemon/internal/models"
)

// Store is the persistence the cart engine needs. Carts returned by Store carry their items.
type Store interface {
	ListCarts(ctx context.Context) ([]models.Cart, error)
	GetCart(ctx context.Context, id int64) (*models.Cart, error)
	GetCartByUser(ctx context.Context, userID int64) (*models.Cart, error)
	// CreateCart fails with database.ErrDuplicate if the user already has a cart.
	CreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	// EnsureCart returns the user's cart, creating it if needed.
	EnsureCart(ctx context.Context, userID int64) (*models.Cart, error)
	DeleteCart(ctx context.Context, id int64) error

	ListAllItems(ctx context.Context) ([]models.CartItem, error)
	ListItemsByUser(ctx context.Context, userID int64) ([]models.CartItem, error)
	// ListOwners returns username by user id for every user that has a cart.
	ListOwners(ctx context.Context) (map[int64]string, error)
	UserExists(ctx context.Context, userID int64) (bool, error)

	GetItem(ctx context.Context, id int64) (*models.CartItem, error)

	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx holds every write to cart lines. Writers lock the cart row first, the same lock
// checkout takes, so a line cannot change between checkout reading and clearing it.
type Tx interface {
	LockCart(ctx context.Context, cartID int64) error
	ClearCart(ctx context.Context, cartID int64) error
	InsertItem(ctx context.Context, cartID, menuItemID int64, quantity int) error
	// AddItem inserts a line or adds quantity to the existing line for the same menu item.
	AddItem(ctx context.Context, cartID, menuItemID int64, quantity int) (int64, error)
	UpdateItem(ctx context.Context, id, menuItemID int64, quantity int) error
	DeleteItem(ctx context.Context, id int64) error
}

type Service struct {
	store  Store
	logger *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// ListCarts returns every cart. Manager only.
func (s *Service) ListCarts(ctx context.Context, actor access.Actor) ([]models.Cart, error) {
	if err := access.Authorize(actor, access.OpListAllCarts); err != nil {
		return nil, err
	}
	carts, err := s.store.ListCarts(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return carts, nil
}

// GetCart returns cart id if the actor owns it or is a manager.
func (s *Service) GetCart(ctx context.Context, actor access.Actor, id int64) (*models.Cart, error) {
	if err := access.Authorize(actor, access.OpUseCart); err != nil {
		return nil, err
	}
	cart, err := s.store.GetCart(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !access.CanSeeUser(actor, cart.UserID) {
		return nil, apperr.PermissionDenied("You do not have permission to access this cart.")
	}
	return cart, nil
}

// GetOrCreateCart returns the actor's cart, creating it on first use.
func (s *Service) GetOrCreateCart(ctx context.Context, actor access.Actor) (*models.Cart, error) {
	if err := access.Authorize(actor, access.OpUseCart); err != nil {
		return nil, err
	}
	cart, err := s.store.EnsureCart(ctx, actor.UserID)
	if err != nil {
		return nil, translate(err)
	}
	return cart, nil
}

// CreateCart explicitly creates the actor's cart and fails with Conflict if one exists.
func (s *Service) CreateCart(ctx context.Context, actor access.Actor) (*models.Cart, error) {
	if err := access.Authorize(actor, access.OpUseCart); err != nil {
		return nil, err
	}
	cart, err := s.store.CreateCart(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, apperr.Conflict("This user already has a cart.")
		}
		return nil, translate(err)
	}
	return cart, nil
}

// ReplaceCart swaps every line of cart id for lines, in one transaction. Repeated menu
// items in lines are merged.
func (s *Service) ReplaceCart(ctx context.Context, actor access.Actor, id int64, lines []models.CartItemInput) (*models.Cart, error) {
	cart, err := s.GetCart(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	merged := make(map[int64]int)
	var order []int64
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return nil, err
		}
		if _, seen := merged[line.MenuItemID]; !seen {
			order = append(order, line.MenuItemID)
		}
		merged[line.MenuItemID] += line.QuantityOrDefault()
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.LockCart(ctx, cart.ID); err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, cart.ID); err != nil {
			return err
		}
		for _, menuItemID := range order {
			if err := tx.InsertItem(ctx, cart.ID, menuItemID, merged[menuItemID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return s.GetCart(ctx, actor, id)
}

func (s *Service) DeleteCart(ctx context.Context, actor access.Actor, id int64) error {
	if _, err := s.GetCart(ctx, actor, id); err != nil {
		return err
	}
	return translate(s.store.DeleteCart(ctx, id))
}

// ListGroupedByUser returns cart items keyed by username. Managers see every cart,
// including empty ones; other users see only their own.
func (s *Service) ListGroupedByUser(ctx context.Context, actor access.Actor) (map[string][]models.CartItem, error) {
	if err := access.Authorize(actor, access.OpUseCart); err != nil {
		return nil, err
	}

	grouped := make(map[string][]models.CartItem)

	if !actor.IsManager() {
		items, err := s.store.ListItemsByUser(ctx, actor.UserID)
		if err != nil {
			return nil, translate(err)
		}
		grouped[actor.Username] = nonNil(items)
		return grouped, nil
	}

	owners, err := s.store.ListOwners(ctx)
	if err != nil {
		return nil, translate(err)
	}
	for _, username := range owners {
		grouped[username] = []models.CartItem{}
	}

	items, err := s.store.ListAllItems(ctx)
	if err != nil {
		return nil, translate(err)
	}
	for _, item := range items {
		grouped[item.Username] = append(grouped[item.Username], item)
	}
	return grouped, nil
}

// ItemsForUser returns the cart items of userID. Managers may read anyone's items.
func (s *Service) ItemsForUser(ctx context.Context, actor access.Actor, userID int64) ([]models.CartItem, error) {
	if err := access.Authorize(actor, access.OpUseCart); err != nil {
		return nil, err
	}
	if !access.CanSeeUser(actor, userID) {
		return nil, apperr.PermissionDenied("You do not have permission to access this cart.")
	}

	exists, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	if !exists {
		return nil, apperr.NotFound("User")
	}

	items, err := s.store.ListItemsByUser(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return nonNil(items), nil
}

// AddItem adds quantity of a menu item to the actor's cart, creating the cart if needed.
// Adding an item already in the cart increases its quantity.
func (s *Service) AddItem(ctx context.Context, actor access.Actor, in models.CartItemInput) (*models.CartItem, error) {
	if err := access.Authorize(actor, access.OpUseCart); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	cart, err := s.store.EnsureCart(ctx, actor.UserID)
	if err != nil {
		return nil, translate(err)
	}

	var id int64
	err = s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.LockCart(ctx, cart.ID); err != nil {
			return err
		}
		added, err := tx.AddItem(ctx, cart.ID, in.MenuItemID, in.QuantityOrDefault())
		id = added
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Debug("cart_item_added", "Item added to cart", logger.RequestIDFromContext(ctx), map[string]interface{}{
		"cart_id":      cart.ID,
		"menu_item_id": in.MenuItemID,
		"quantity":     item.Quantity,
	})
	return item, nil
}

// UpdateItem changes a cart line. With partial=true only the fields present in in are applied.
func (s *Service) UpdateItem(ctx context.Context, actor access.Actor, id int64, in models.CartItemInput, partial bool) (*models.CartItem, error) {
	item, err := s.ownedItem(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	menuItemID, quantity := item.MenuItemID, item.Quantity
	if in.MenuItemID != 0 || !partial {
		menuItemID = in.MenuItemID
	}
	if in.Quantity != nil || !partial {
		quantity = in.QuantityOrDefault()
	}

	next := models.CartItemInput{MenuItemID: menuItemID, Quantity: &quantity}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.LockCart(ctx, item.CartID); err != nil {
			return err
		}
		return tx.UpdateItem(ctx, id, menuItemID, quantity)
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, apperr.Conflict("This menu item is already in the cart.")
		}
		return nil, translate(err)
	}

	updated, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

func (s *Service) DeleteItem(ctx context.Context, actor access.Actor, id int64) error {
	item, err := s.ownedItem(ctx, actor, id)
	if err != nil {
		return err
	}
	return translate(s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.LockCart(ctx, item.CartID); err != nil {
			return err
		}
		return tx.DeleteItem(ctx, id)
	}))
}

func (s *Service) ownedItem(ctx context.Context, actor access.Actor, id int64) (*models.CartItem, error) {
	if err := access.Authorize(actor, access.OpUseCart); err != nil {
		return nil, err
	}
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !access.CanSeeUser(actor, item.UserID) {
		return nil, apperr.PermissionDenied("You do not have permission to access this cart item.")
	}
	return item, nil
}

func nonNil(items []models.CartItem) []models.CartItem {
	if items == nil {
		return []models.CartItem{}
	}
	return items
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
	case errors.Is(err, database.ErrNotFound):
		return apperr.NotFound("Cart")
	case errors.Is(err, database.ErrForeignKey):
		return apperr.Validation("menuitem_id", "Invalid pk - object does not exist.")
	case errors.Is(err, database.ErrCheck), errors.Is(err, database.ErrOutOfRange):
		return apperr.Validation("quantity", fmt.Sprintf("must be between 1 and %d", models.MaxQuantity))
	case errors.Is(err, database.ErrConflict):
		return apperr.Retryable("The cart was modified concurrently. Please retry.", err)
	default:
		return apperr.Internal(err)
	}
}
