package payment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Stripe creates Checkout Sessions in payment mode.
type Stripe struct {
	api      *client.API
	currency string
}

func NewStripe(secretKey, currency string) *Stripe {
	return &Stripe{
		api:      client.New(secretKey, nil),
		currency: currency,
	}
}

func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if len(req.LineItems) == 0 {
		return nil, fmt.Errorf("checkout session for order %d has no line items", req.OrderID)
	}
	params := checkoutParams(req, s.currency)
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) ConfirmSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return statusOf(sess)
}

func checkoutParams(req SessionRequest, currency string) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(strconv.FormatInt(req.OrderID, 10)),
	}
	for _, item := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: product,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}
	params.AddMetadata("order_id", strconv.FormatInt(req.OrderID, 10))
	return params
}

func statusOf(sess *stripe.CheckoutSession) (*SessionStatus, error) {
	orderID, err := strconv.ParseInt(sess.ClientReferenceID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("checkout session %s has no order reference", sess.ID)
	}
	return &SessionStatus{
		ID:      sess.ID,
		OrderID: orderID,
		Paid:    sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}, nil
}
