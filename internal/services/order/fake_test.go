package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"littlelemon/internal/access"
	"littlelemon/internal/database"
	"littlelemon/internal/models"
	"littlelemon/internal/payment"
)

type line struct {
	menuItemID int64
	title      string
	price      decimal.Decimal
	quantity   int
}

type fakeStore struct {
	mu     sync.Mutex
	crew   map[int64]bool
	carts  map[int64]int64 // user id -> cart id
	lines  map[int64][]line
	orders map[int64]models.Order
	nextID int64

	failItemInsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		crew:   map[int64]bool{},
		carts:  map[int64]int64{},
		lines:  map[int64][]line{},
		orders: map[int64]models.Order{},
		nextID: 1,
	}
}

func (f *fakeStore) addLine(userID int64, l line) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cartID, ok := f.carts[userID]
	if !ok {
		cartID = userID + 1000
		f.carts[userID] = cartID
	}
	f.lines[cartID] = append(f.lines[cartID], l)
}

func (f *fakeStore) cartSize(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lines[f.carts[userID]])
}

func (f *fakeStore) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeStore) put(o models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
}

func (f *fakeStore) ListOrders(ctx context.Context, scope access.Scope, userID int64) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		switch {
		case scope == access.ScopeAll,
			scope == access.ScopeAssigned && o.DeliveryCrewID != nil && *o.DeliveryCrewID == userID,
			scope == access.ScopeOwn && o.UserID == userID:
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &o, nil
}

func (f *fakeStore) IsDeliveryCrew(ctx context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.crew[userID], nil
}

func (f *fakeStore) SetPaymentSession(ctx context.Context, id int64, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return database.ErrNotFound
	}
	o.PaymentSessionID = sessionID
	f.orders[id] = o
	return nil
}

func (f *fakeStore) DeleteOrder(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	orders := make(map[int64]models.Order, len(f.orders))
	for id, o := range f.orders {
		orders[id] = o
	}
	lines := make(map[int64][]line, len(f.lines))
	for id, l := range f.lines {
		lines[id] = append([]line(nil), l...)
	}
	nextID := f.nextID

	if err := fn(&fakeTx{f: f}); err != nil {
		f.orders, f.lines, f.nextID = orders, lines, nextID
		return err
	}
	return nil
}

type fakeTx struct {
	f *fakeStore
}

func (t *fakeTx) LockCartByUser(ctx context.Context, userID int64) (int64, error) {
	cartID, ok := t.f.carts[userID]
	if !ok {
		return 0, database.ErrNotFound
	}
	return cartID, nil
}

func (t *fakeTx) CartLines(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	var out []models.CartItem
	for _, l := range t.f.lines[cartID] {
		out = append(out, models.CartItem{
			CartID:     cartID,
			MenuItemID: l.menuItemID,
			Title:      l.title,
			UnitPrice:  l.price,
			Quantity:   l.quantity,
		})
	}
	return out, nil
}

func (t *fakeTx) ClearCart(ctx context.Context, cartID int64) error {
	delete(t.f.lines, cartID)
	return nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, o *models.Order) error {
	t.f.nextID++
	o.ID = t.f.nextID
	o.CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stored := *o
	stored.Items = []models.OrderItem{}
	t.f.orders[o.ID] = stored
	return nil
}

func (t *fakeTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	if t.f.failItemInsert && len(t.f.orders[item.OrderID].Items) == 1 {
		return &database.StoreError{Kind: database.ErrForeignKey, Err: errors.New("menu item deleted")}
	}
	t.f.nextID++
	item.ID = t.f.nextID
	o := t.f.orders[item.OrderID]
	o.Items = append(o.Items, *item)
	t.f.orders[item.OrderID] = o
	return nil
}

func (t *fakeTx) SetTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	o := t.f.orders[orderID]
	o.Total = total
	t.f.orders[orderID] = o
	return nil
}

func (t *fakeTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := t.f.orders[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &o, nil
}

func (t *fakeTx) UpdateOrder(ctx context.Context, o *models.Order) error {
	stored, ok := t.f.orders[o.ID]
	if !ok {
		return database.ErrNotFound
	}
	stored.DeliveryCrewID = o.DeliveryCrewID
	stored.Status = o.Status
	t.f.orders[o.ID] = stored
	return nil
}

type fakeGateway struct {
	mu        sync.Mutex
	requests  []payment.SessionRequest
	createErr error
	confirm   *payment.SessionStatus
}

func (g *fakeGateway) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.requests = append(g.requests, req)
	return &payment.Session{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (g *fakeGateway) ConfirmSession(ctx context.Context, sessionID string) (*payment.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.confirm == nil {
		return nil, errors.New("unknown session")
	}
	return g.confirm, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []models.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.OrderEventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
