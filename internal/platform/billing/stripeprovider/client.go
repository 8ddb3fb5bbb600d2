package stripeprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/yelenbi/packbilling/internal/platform/billing"
	cfgpkg "github.com/yelenbi/packbilling/pkg/config"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Client implements billing.Provider on top of the Stripe API. All
// calls are synchronous with no retry; callers decide whether a failure
// is fatal or degraded to a warning.
type Client struct {
	sc  *stripe.Client
	log *zap.SugaredLogger
}

func New(cfg *cfgpkg.Config, log *zap.SugaredLogger) (billing.Provider, error) {
	if cfg.Stripe.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is empty")
	}
	return &Client{sc: stripe.NewClient(cfg.Stripe.SecretKey), log: log}, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req *billing.CheckoutSessionRequest) (*billing.CheckoutSession, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.Amount),
					Recurring: &stripe.CheckoutSessionCreateLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(req.PackName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: req.Metadata,
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	sess, err := c.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &billing.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (c *Client) CreateMonthlyPrice(ctx context.Context, packName, currency string, amount int64) (string, error) {
	price, err := c.sc.V1Prices.Create(ctx, &stripe.PriceCreateParams{
		Currency:   stripe.String(currency),
		UnitAmount: stripe.Int64(amount),
		Recurring: &stripe.PriceCreateRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
		ProductData: &stripe.PriceCreateProductDataParams{
			Name: stripe.String(packName),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create price: %w", err)
	}
	return price.ID, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	sub, err := c.sc.V1Subscriptions.Retrieve(ctx, subscriptionID, &stripe.SubscriptionRetrieveParams{
		Expand: []*string{stripe.String("latest_invoice")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve subscription %s: %w", subscriptionID, err)
	}
	return toSubscription(sub), nil
}

func (c *Client) UpdateSubscription(ctx context.Context, req *billing.UpdateSubscriptionRequest) (*billing.Subscription, error) {
	prorationBehavior := req.ProrationBehavior
	if prorationBehavior == "" {
		prorationBehavior = "create_prorations"
	}
	paymentBehavior := req.PaymentBehavior
	if paymentBehavior == "" {
		paymentBehavior = "default_incomplete"
	}

	sub, err := c.sc.V1Subscriptions.Update(ctx, req.SubscriptionID, &stripe.SubscriptionUpdateParams{
		Items: []*stripe.SubscriptionUpdateItemParams{
			{
				ID:    stripe.String(req.ItemID),
				Price: stripe.String(req.PriceID),
			},
		},
		ProrationBehavior: stripe.String(prorationBehavior),
		PaymentBehavior:   stripe.String(paymentBehavior),
		Expand:            []*string{stripe.String("latest_invoice")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription %s: %w", req.SubscriptionID, err)
	}
	return toSubscription(sub), nil
}

func (c *Client) CancelSubscription(ctx context.Context, req *billing.CancelSubscriptionRequest) (*billing.Subscription, error) {
	if req.Immediately {
		sub, err := c.sc.V1Subscriptions.Cancel(ctx, req.SubscriptionID, &stripe.SubscriptionCancelParams{
			Prorate:    stripe.Bool(true),
			InvoiceNow: stripe.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to cancel subscription %s: %w", req.SubscriptionID, err)
		}
		return toSubscription(sub), nil
	}

	sub, err := c.sc.V1Subscriptions.Update(ctx, req.SubscriptionID, &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule cancellation for subscription %s: %w", req.SubscriptionID, err)
	}
	return toSubscription(sub), nil
}

func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*billing.Invoice, error) {
	inv, err := c.sc.V1Invoices.Retrieve(ctx, invoiceID, &stripe.InvoiceRetrieveParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve invoice %s: %w", invoiceID, err)
	}
	return &billing.Invoice{ID: inv.ID, AmountDue: inv.AmountDue}, nil
}

func toSubscription(sub *stripe.Subscription) *billing.Subscription {
	out := &billing.Subscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.ItemID = item.ID
		// current_period_end lives on the item since the 2025-03-31 API.
		out.PeriodEnd = time.Unix(item.CurrentPeriodEnd, 0)
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}
	if sub.LatestInvoice != nil {
		out.LatestInvoiceID = sub.LatestInvoice.ID
	}
	return out
}

var Module = fx.Options(
	fx.Provide(New),
)
