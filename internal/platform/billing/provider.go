// Package billing defines the narrow surface the pack-change workflow
// needs from the external payment provider. The Stripe implementation
// lives in the stripeprovider subpackage; tests substitute stubs.
package billing

import (
	"context"
	"time"
)

type CheckoutSessionRequest struct {
	CustomerEmail string
	// Amount is the monthly price in whole currency units.
	Amount   int64
	Currency string
	PackName string
	// Metadata tags the session with userId/newPackId/previousPackId/
	// priceDifference so the webhook can complete the change.
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type Subscription struct {
	ID         string
	CustomerID string
	// ItemID is the single line item carrying the recurring price.
	ItemID          string
	PriceID         string
	Status          string
	PeriodEnd       time.Time
	LatestInvoiceID string
}

type Invoice struct {
	ID        string
	AmountDue int64
}

type UpdateSubscriptionRequest struct {
	SubscriptionID string
	ItemID         string
	PriceID        string
	// ProrationBehavior defaults to create_prorations, PaymentBehavior
	// to default_incomplete; both overridable per request.
	ProrationBehavior string
	PaymentBehavior   string
}

type CancelSubscriptionRequest struct {
	SubscriptionID string
	// Immediately cancels with prorate+invoice-now; otherwise the
	// subscription is flagged cancel_at_period_end.
	Immediately bool
}

type Provider interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error)
	CreateMonthlyPrice(ctx context.Context, packName, currency string, amount int64) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, req *UpdateSubscriptionRequest) (*Subscription, error)
	CancelSubscription(ctx context.Context, req *CancelSubscriptionRequest) (*Subscription, error)
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
}
