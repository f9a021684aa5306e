// Package payment is the boundary to the checkout provider. Order logic depends only on
// Gateway; provider session objects never leave this package.
package payment

import (
	"context"
	"errors"
)

// ErrDisabled is returned by the Disabled gateway.
var ErrDisabled = errors.New("payment gateway is not configured")

// LineItem is one checkout line. UnitAmount is in minor currency units.
type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
}

type SessionRequest struct {
	OrderID    int64
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
}

// Session is a created checkout session. URL is where the customer is redirected to pay.
type Session struct {
	ID  string
	URL string
}

type SessionStatus struct {
	ID      string
	OrderID int64
	Paid    bool
}

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	ConfirmSession(ctx context.Context, sessionID string) (*SessionStatus, error)
}

// Disabled is used when no provider credentials are configured. Every call fails.
type Disabled struct{}

func (Disabled) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	return nil, ErrDisabled
}

func (Disabled) ConfirmSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	return nil, ErrDisabled
}
