package cart

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"littlelemon/internal/database"
	"littlelemon/internal/models"
)

type menuEntry struct {
	title string
	price decimal.Decimal
}

type cartRow struct {
	id     int64
	userID int64
}

type itemRow struct {
	id, cartID, menuItemID int64
	quantity               int
}

type fakeStore struct {
	mu     sync.Mutex
	users  map[int64]string
	menu   map[int64]menuEntry
	carts  map[int64]cartRow
	items  map[int64]itemRow
	nextID int64
	// locked counts LockCart calls per cart.
	locked map[int64]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[int64]string{1: "alice", 2: "bob", 3: "manager"},
		menu: map[int64]menuEntry{
			10: {"Greek salad", decimal.RequireFromString("5.00")},
			11: {"Lemon cake", decimal.RequireFromString("3.00")},
		},
		carts:  map[int64]cartRow{},
		items:  map[int64]itemRow{},
		nextID: 100,
		locked: map[int64]int{},
	}
}

func (f *fakeStore) rowsFor(cartID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.items {
		if it.cartID == cartID {
			n++
		}
	}
	return n
}

func (f *fakeStore) toItem(it itemRow) models.CartItem {
	c := f.carts[it.cartID]
	m := f.menu[it.menuItemID]
	return models.CartItem{
		ID:         it.id,
		CartID:     it.cartID,
		MenuItemID: it.menuItemID,
		Title:      m.title,
		UnitPrice:  m.price,
		Quantity:   it.quantity,
		UserID:     c.userID,
		Username:   f.users[c.userID],
	}
}

func (f *fakeStore) itemsWhere(keep func(itemRow) bool) []models.CartItem {
	var out []models.CartItem
	for _, it := range f.items {
		if keep(it) {
			out = append(out, f.toItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStore) cartOf(c cartRow) *models.Cart {
	return &models.Cart{
		ID:       c.id,
		UserID:   c.userID,
		Username: f.users[c.userID],
		Items:    f.itemsWhere(func(it itemRow) bool { return it.cartID == c.id }),
	}
}

func (f *fakeStore) ListCarts(ctx context.Context) ([]models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Cart
	for _, c := range f.carts {
		out = append(out, *f.cartOf(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetCart(ctx context.Context, id int64) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return f.cartOf(c), nil
}

func (f *fakeStore) GetCartByUser(ctx context.Context, userID int64) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.carts {
		if c.userID == userID {
			return f.cartOf(c), nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) CreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.carts {
		if c.userID == userID {
			return nil, &database.StoreError{Kind: database.ErrDuplicate, Constraint: "carts_user_id_key"}
		}
	}
	f.nextID++
	c := cartRow{id: f.nextID, userID: userID}
	f.carts[c.id] = c
	return f.cartOf(c), nil
}

func (f *fakeStore) EnsureCart(ctx context.Context, userID int64) (*models.Cart, error) {
	if c, err := f.GetCartByUser(ctx, userID); err == nil {
		return c, nil
	}
	return f.CreateCart(ctx, userID)
}

func (f *fakeStore) DeleteCart(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.carts[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.carts, id)
	for itemID, it := range f.items {
		if it.cartID == id {
			delete(f.items, itemID)
		}
	}
	return nil
}

func (f *fakeStore) ListAllItems(ctx context.Context) ([]models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.itemsWhere(func(itemRow) bool { return true }), nil
}

func (f *fakeStore) ListItemsByUser(ctx context.Context, userID int64) ([]models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.itemsWhere(func(it itemRow) bool { return f.carts[it.cartID].userID == userID }), nil
}

func (f *fakeStore) ListOwners(ctx context.Context) (map[int64]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owners := make(map[int64]string)
	for _, c := range f.carts {
		owners[c.userID] = f.users[c.userID]
	}
	return owners, nil
}

func (f *fakeStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[userID]
	return ok, nil
}

func (f *fakeStore) GetItem(ctx context.Context, id int64) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	item := f.toItem(it)
	return &item, nil
}

func (f *fakeStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := make(map[int64]itemRow, len(f.items))
	for id, it := range f.items {
		snapshot[id] = it
	}
	if err := fn(&fakeTx{f: f}); err != nil {
		f.items = snapshot
		return err
	}
	return nil
}

type fakeTx struct {
	f *fakeStore
}

func (t *fakeTx) LockCart(ctx context.Context, cartID int64) error {
	if _, ok := t.f.carts[cartID]; !ok {
		return database.ErrNotFound
	}
	t.f.locked[cartID]++
	return nil
}

func (t *fakeTx) ClearCart(ctx context.Context, cartID int64) error {
	for id, it := range t.f.items {
		if it.cartID == cartID {
			delete(t.f.items, id)
		}
	}
	return nil
}

func (t *fakeTx) InsertItem(ctx context.Context, cartID, menuItemID int64, quantity int) error {
	if _, ok := t.f.menu[menuItemID]; !ok {
		return &database.StoreError{Kind: database.ErrForeignKey}
	}
	t.f.nextID++
	t.f.items[t.f.nextID] = itemRow{id: t.f.nextID, cartID: cartID, menuItemID: menuItemID, quantity: quantity}
	return nil
}

func (t *fakeTx) AddItem(ctx context.Context, cartID, menuItemID int64, quantity int) (int64, error) {
	if _, ok := t.f.menu[menuItemID]; !ok {
		return 0, &database.StoreError{Kind: database.ErrForeignKey}
	}
	for id, it := range t.f.items {
		if it.cartID == cartID && it.menuItemID == menuItemID {
			if it.quantity+quantity > models.MaxQuantity {
				return 0, &database.StoreError{Kind: database.ErrCheck, Constraint: "cart_items_quantity_max"}
			}
			it.quantity += quantity
			t.f.items[id] = it
			return id, nil
		}
	}
	t.f.nextID++
	t.f.items[t.f.nextID] = itemRow{id: t.f.nextID, cartID: cartID, menuItemID: menuItemID, quantity: quantity}
	return t.f.nextID, nil
}

func (t *fakeTx) UpdateItem(ctx context.Context, id, menuItemID int64, quantity int) error {
	it, ok := t.f.items[id]
	if !ok {
		return database.ErrNotFound
	}
	for otherID, other := range t.f.items {
		if otherID != id && other.cartID == it.cartID && other.menuItemID == menuItemID {
			return &database.StoreError{Kind: database.ErrDuplicate, Constraint: "cart_items_cart_menuitem_key"}
		}
	}
	it.menuItemID = menuItemID
	it.quantity = quantity
	t.f.items[id] = it
	return nil
}

func (t *fakeTx) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := t.f.items[id]; !ok {
		return database.ErrNotFound
	}
	delete(t.f.items, id)
	return nil
}
