package packchange

import (
	models "github.com/yelenbi/packbilling/internal/models"
	types "github.com/yelenbi/packbilling/pkg/types"
)

// Ledger change-log reasons written by this package.
const (
	ReasonPackChange        = "pack_change"
	ReasonPackDowngrade     = "pack_downgrade"
	ReasonPaidChange        = "paid_change"
	ReasonCancellation      = "cancellation"
	ReasonWebhookActivation = "webhook_activation"
)

// ImmediateChangeResult reports a no-payment transition applied
// directly to the ledger.
type ImmediateChangeResult struct {
	NewPack      *models.Pack `json:"new_pack"`
	PreviousPack *models.Pack `json:"previous_pack,omitempty"`
	// ExternalSubscriptionCancelled is true when at least one provider
	// subscription was cancelled as part of the change.
	ExternalSubscriptionCancelled bool  `json:"external_subscription_cancelled"`
	CreditGranted                 int64 `json:"credit_granted"`
	// Warnings carry non-fatal provider failures; the local transition
	// has still been committed.
	Warnings []string `json:"warnings,omitempty"`
}

// PaidChangeResult reports a transition that needs money to move.
// Exactly one of the two shapes applies: a checkout URL with the
// ledger untouched (new subscriber), or an already-applied ledger
// change with an advisory proration amount (existing subscriber).
type PaidChangeResult struct {
	NewPack         *models.Pack `json:"new_pack"`
	PreviousPack    *models.Pack `json:"previous_pack,omitempty"`
	PaymentPending  bool         `json:"payment_pending"`
	CheckoutURL     string       `json:"checkout_url,omitempty"`
	ProrationAmount int64        `json:"proration_amount,omitempty"`
	Warnings        []string     `json:"warnings,omitempty"`
}

// ChangeResult is the router's normalized response shape.
type ChangeResult struct {
	Success        bool                 `json:"success"`
	Message        string               `json:"message"`
	ChangeType     types.PackChangeType `json:"change_type"`
	PreviousPack   *models.Pack         `json:"previous_pack,omitempty"`
	NewPack        *models.Pack         `json:"new_pack"`
	PaymentPending bool                 `json:"payment_pending"`
	CheckoutURL    string               `json:"checkout_url,omitempty"`
	CreditGranted  int64                `json:"credit_granted,omitempty"`
	Warnings       []string             `json:"warnings,omitempty"`
}
