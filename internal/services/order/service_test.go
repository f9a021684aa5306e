package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"littlelemon/internal/access"
	"littlelemon/internal/apperr"
	"littlelemon/internal/logger"
	"littlelemon/internal/models"
	"littlelemon/internal/payment"
)

var (
	customer  = access.Actor{UserID: 1, Username: "alice"}
	other     = access.Actor{UserID: 2, Username: "bob"}
	crew      = access.Actor{UserID: 3, Username: "carol", Caps: access.CapDeliveryCrew}
	otherCrew = access.Actor{UserID: 4, Username: "dave", Caps: access.CapDeliveryCrew}
	manager   = access.Actor{UserID: 5, Username: "erin", Caps: access.CapManager}
	admin     = access.Actor{UserID: 6, Username: "root", Caps: access.CapAdmin}
)

type fixture struct {
	store   *fakeStore
	gateway *fakeGateway
	events  *recordingPublisher
	svc     *Service
}

func newFixture() *fixture {
	store := newFakeStore()
	store.crew[crew.UserID] = true
	store.crew[otherCrew.UserID] = true

	gateway := &fakeGateway{}
	events := &recordingPublisher{}
	urls := func(orderID int64) (string, string) {
		return fmt.Sprintf("http://test/orders/%d/success_payment", orderID), fmt.Sprintf("http://test/orders/%d", orderID)
	}
	log := logger.NewWithOptions("order-test", logger.Options{Output: io.Discard})
	return &fixture{
		store:   store,
		gateway: gateway,
		events:  events,
		svc:     NewService(store, gateway, urls, events, log),
	}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) fillCart(userID int64) {
	f.store.addLine(userID, line{menuItemID: 10, title: "Greek salad", price: money("5.00"), quantity: 2})
	f.store.addLine(userID, line{menuItemID: 11, title: "Lemon cake", price: money("3.00"), quantity: 1})
}

func (f *fixture) placeOrder(t *testing.T, actor access.Actor) *models.Order {
	t.Helper()
	f.fillCart(actor.UserID)
	o, err := f.svc.CreateFromCart(context.Background(), actor)
	require.NoError(t, err)
	return o
}

func crewID(a access.Actor) *int64 {
	id := a.UserID
	return &id
}

func statusPtr(s models.OrderStatus) *models.OrderStatus {
	return &s
}

func TestCreateFromCart(t *testing.T) {
	f := newFixture()

	o := f.placeOrder(t, customer)

	assert.True(t, o.Total.Equal(money("13.00")), "total %s", o.Total)
	assert.Equal(t, models.StatusOutForDelivery, o.Status)
	assert.Equal(t, customer.UserID, o.UserID)
	require.Len(t, o.Items, 2)
	for _, item := range o.Items {
		assert.True(t, item.Price.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))))
	}
	assert.Equal(t, 0, f.store.cartSize(customer.UserID))
	assert.Equal(t, []models.OrderEventType{models.EventOrderCreated}, f.events.types())
}

func TestCreateFromCartSnapshotsPrices(t *testing.T) {
	f := newFixture()
	o := f.placeOrder(t, customer)

	// a later cart at a new price must not affect the placed order
	f.store.addLine(customer.UserID, line{menuItemID: 10, title: "Greek salad", price: money("9.00"), quantity: 1})
	_, err := f.svc.CreateFromCart(context.Background(), customer)
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), customer, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(money("13.00")))
	assert.True(t, got.Items[0].UnitPrice.Equal(money("5.00")))
}

func TestCreateFromEmptyCart(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{name: "no cart", setup: func(f *fixture) {}},
		{name: "drained cart", setup: func(f *fixture) {
			f.placeOrder(t, customer)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)
			before := f.store.orderCount()

			_, err := f.svc.CreateFromCart(context.Background(), customer)

			assert.True(t, apperr.Is(err, apperr.KindFailedPrecondition), "got %v", err)
			assert.Equal(t, before, f.store.orderCount(), "no order row may be created")
		})
	}
}

func TestCreateFromCartIsAtomic(t *testing.T) {
	f := newFixture()
	f.fillCart(customer.UserID)
	f.store.failItemInsert = true

	_, err := f.svc.CreateFromCart(context.Background(), customer)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.Retryable)
	assert.Equal(t, 0, f.store.orderCount())
	assert.Equal(t, 2, f.store.cartSize(customer.UserID), "cart must be left intact")
	assert.Empty(t, f.events.types())
}

func TestCreateRequiresAuthentication(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateFromCart(context.Background(), access.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestListScoping(t *testing.T) {
	f := newFixture()
	mine := f.placeOrder(t, customer)
	theirs := f.placeOrder(t, other)
	_, err := f.svc.Update(context.Background(), manager, theirs.ID, models.OrderUpdate{DeliveryCrew: crewID(crew), DeliveryCrewSet: true})
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor access.Actor
		want  []int64
	}{
		{"customer sees own", customer, []int64{mine.ID}},
		{"crew sees assigned", crew, []int64{theirs.ID}},
		{"unassigned crew sees none", otherCrew, nil},
		{"manager sees all", manager, []int64{mine.ID, theirs.ID}},
		{"admin sees all", admin, []int64{mine.ID, theirs.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := f.svc.List(context.Background(), tt.actor)
			require.NoError(t, err)
			var ids []int64
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err = f.svc.Get(context.Background(), customer, theirs.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAssignDeliveryCrew(t *testing.T) {
	f := newFixture()
	o := f.placeOrder(t, customer)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, customer, o.ID, models.OrderUpdate{DeliveryCrew: crewID(crew), DeliveryCrewSet: true})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	_, err = f.svc.Update(ctx, crew, o.ID, models.OrderUpdate{DeliveryCrew: crewID(crew), DeliveryCrewSet: true})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	_, err = f.svc.Update(ctx, manager, o.ID, models.OrderUpdate{DeliveryCrew: crewID(other), DeliveryCrewSet: true})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "delivery_crew", appErr.Field)

	got, err := f.svc.Update(ctx, manager, o.ID, models.OrderUpdate{DeliveryCrew: crewID(crew), DeliveryCrewSet: true})
	require.NoError(t, err)
	assert.Equal(t, crew.UserID, *got.DeliveryCrewID)

	got, err = f.svc.Update(ctx, admin, o.ID, models.OrderUpdate{DeliveryCrew: crewID(otherCrew), DeliveryCrewSet: true})
	require.NoError(t, err)
	assert.Equal(t, otherCrew.UserID, *got.DeliveryCrewID)

	got, err = f.svc.Update(ctx, manager, o.ID, models.OrderUpdate{DeliveryCrewSet: true})
	require.NoError(t, err)
	assert.Nil(t, got.DeliveryCrewID)

	assert.Equal(t, []models.OrderEventType{
		models.EventOrderCreated,
		models.EventOrderCrewAssigned,
		models.EventOrderCrewAssigned,
		models.EventOrderCrewAssigned,
	}, f.events.types())
}

func TestMarkDelivered(t *testing.T) {
	f := newFixture()
	o := f.placeOrder(t, customer)
	ctx := context.Background()
	_, err := f.svc.Update(ctx, manager, o.ID, models.OrderUpdate{DeliveryCrew: crewID(crew), DeliveryCrewSet: true})
	require.NoError(t, err)

	deliver := models.OrderUpdate{Status: statusPtr(models.StatusDelivered)}

	_, err = f.svc.Update(ctx, otherCrew, o.ID, deliver)
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied), "unassigned crew: %v", err)

	_, err = f.svc.Update(ctx, customer, o.ID, deliver)
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	_, err = f.svc.Update(ctx, manager, o.ID, deliver)
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	got, err := f.svc.Update(ctx, crew, o.ID, deliver)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)

	got, err = f.svc.Update(ctx, crew, o.ID, deliver)
	require.NoError(t, err, "repeat is a no-op")
	assert.Equal(t, models.StatusDelivered, got.Status)

	_, err = f.svc.Update(ctx, otherCrew, o.ID, deliver)
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	_, err = f.svc.Update(ctx, crew, o.ID, models.OrderUpdate{Status: statusPtr(models.StatusOutForDelivery)})
	assert.True(t, apperr.Is(err, apperr.KindFailedPrecondition))

	_, err = f.svc.Update(ctx, manager, o.ID, models.OrderUpdate{DeliveryCrew: crewID(otherCrew), DeliveryCrewSet: true})
	assert.True(t, apperr.Is(err, apperr.KindFailedPrecondition))

	delivered := 0
	for _, typ := range f.events.types() {
		if typ == models.EventOrderDelivered {
			delivered++
		}
	}
	assert.Equal(t, 1, delivered)
}

func TestMixedUpdateRejectedAsWhole(t *testing.T) {
	f := newFixture()
	o := f.placeOrder(t, customer)
	ctx := context.Background()
	_, err := f.svc.Update(ctx, manager, o.ID, models.OrderUpdate{DeliveryCrew: crewID(crew), DeliveryCrewSet: true})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, crew, o.ID, models.OrderUpdate{
		DeliveryCrew:    crewID(otherCrew),
		DeliveryCrewSet: true,
		Status:          statusPtr(models.StatusDelivered),
	})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	got, err := f.svc.Get(ctx, manager, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOutForDelivery, got.Status)
	assert.Equal(t, crew.UserID, *got.DeliveryCrewID)
}

func TestUpdateValidation(t *testing.T) {
	f := newFixture()
	o := f.placeOrder(t, customer)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, manager, o.ID, models.OrderUpdate{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Update(ctx, manager, o.ID, models.OrderUpdate{Status: statusPtr(7)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Update(ctx, manager, 999, models.OrderUpdate{DeliveryCrew: crewID(crew), DeliveryCrewSet: true})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Update(ctx, other, o.ID, models.OrderUpdate{Status: statusPtr(models.StatusOutForDelivery)})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDelete(t *testing.T) {
	f := newFixture()
	o := f.placeOrder(t, customer)
	ctx := context.Background()

	err := f.svc.Delete(ctx, customer, o.ID)
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	require.NoError(t, f.svc.Delete(ctx, manager, o.ID))
	assert.Equal(t, 0, f.store.orderCount())
	assert.Equal(t, []models.OrderEventType{models.EventOrderCreated, models.EventOrderDeleted}, f.events.types())

	err = f.svc.Delete(ctx, manager, o.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSessionRequest(t *testing.T) {
	o := &models.Order{ID: 9, Items: []models.OrderItem{
		models.NewOrderItem(10, "Greek salad", money("5.00"), 2),
		models.NewOrderItem(11, "Lemon cake", money("3.05"), 1),
	}}

	req := SessionRequest(o)

	assert.Equal(t, int64(9), req.OrderID)
	assert.Equal(t, []payment.LineItem{
		{Name: "Greek salad", Description: "Order #9", UnitAmount: 500, Quantity: 2},
		{Name: "Lemon cake", Description: "Order #9", UnitAmount: 305, Quantity: 1},
	}, req.LineItems)
}

func TestPay(t *testing.T) {
	f := newFixture()
	o := f.placeOrder(t, customer)
	ctx := context.Background()

	_, err := f.svc.Pay(ctx, other, o.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	checkout, err := f.svc.Pay(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", checkout.SessionID)
	assert.Equal(t, "https://checkout.example/cs_test_1", checkout.URL)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, fmt.Sprintf("http://test/orders/%d/success_payment", o.ID), req.SuccessURL)
	assert.Len(t, req.LineItems, 2)

	got, err := f.svc.Get(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", got.PaymentSessionID)
}

func TestPayGatewayFailureLeavesOrderUntouched(t *testing.T) {
	f := newFixture()
	o := f.placeOrder(t, customer)
	f.gateway.createErr = errors.New("stripe: connection refused")

	_, err := f.svc.Pay(context.Background(), customer, o.ID)

	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
	got, err := f.svc.Get(context.Background(), customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOutForDelivery, got.Status)
	assert.Empty(t, got.PaymentSessionID)
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture()
	o := f.placeOrder(t, customer)
	ctx := context.Background()

	_, err := f.svc.ConfirmPayment(ctx, o.ID, "cs_test_1")
	assert.True(t, apperr.Is(err, apperr.KindFailedPrecondition), "no session recorded yet")

	_, err = f.svc.Pay(ctx, customer, o.ID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(ctx, o.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.ConfirmPayment(ctx, o.ID, "cs_other")
	assert.True(t, apperr.Is(err, apperr.KindFailedPrecondition))

	f.gateway.confirm = &payment.SessionStatus{ID: "cs_test_1", OrderID: o.ID, Paid: false}
	_, err = f.svc.ConfirmPayment(ctx, o.ID, "cs_test_1")
	assert.True(t, apperr.Is(err, apperr.KindFailedPrecondition))

	f.gateway.confirm = &payment.SessionStatus{ID: "cs_test_1", OrderID: o.ID, Paid: true}
	got, err := f.svc.ConfirmPayment(ctx, o.ID, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)

	got, err = f.svc.ConfirmPayment(ctx, o.ID, "cs_test_1")
	require.NoError(t, err, "repeated callback")
	assert.Equal(t, models.StatusDelivered, got.Status)

	paid := 0
	for _, typ := range f.events.types() {
		if typ == models.EventOrderPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)

	_, err = f.svc.Pay(ctx, customer, o.ID)
	assert.True(t, apperr.Is(err, apperr.KindFailedPrecondition))
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture()
	f.events.err = errors.New("broker down")

	o := f.placeOrder(t, customer)
	assert.NotZero(t, o.ID)
}
