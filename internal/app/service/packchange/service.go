package packchange

import (
	"context"
	"fmt"
	"time"

	"github.com/yelenbi/packbilling/internal/app/service/catalog"
	ledgersvc "github.com/yelenbi/packbilling/internal/app/service/ledger"
	models "github.com/yelenbi/packbilling/internal/models"
	"github.com/yelenbi/packbilling/internal/platform/billing"
	"github.com/yelenbi/packbilling/pkg/apperr"
	"github.com/yelenbi/packbilling/pkg/config"
	"github.com/yelenbi/packbilling/pkg/logctx"
	types "github.com/yelenbi/packbilling/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service implements the pack-change workflow: comparison, the two
// executors and the router dispatching between them.
type Service struct {
	cfg      *config.Config
	db       *gorm.DB
	log      *zap.SugaredLogger
	catalog  *catalog.Service
	ledger   *ledgersvc.Service
	provider billing.Provider
	now      func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, cat *catalog.Service, led *ledgersvc.Service, provider billing.Provider) *Service {
	return &Service{
		cfg:      cfg,
		db:       db,
		log:      log,
		catalog:  cat,
		ledger:   led,
		provider: provider,
		now:      time.Now,
	}
}

// Compare resolves the user's current pack and classifies the change to
// newPackID. It never mutates state. An explicit currentPackID skips
// the ledger lookup (no proration timing is available in that case).
func (s *Service) Compare(ctx context.Context, userID, newPackID, currentPackID string) (*Comparison, error) {
	newPack, err := s.catalog.GetPackByID(ctx, newPackID)
	if err != nil {
		return nil, err
	}

	var currentPack *models.Pack
	var currentSub *models.UserSubscription
	if currentPackID != "" {
		currentPack, err = s.catalog.GetPackAnyStatus(ctx, currentPackID)
		if err != nil {
			return nil, err
		}
	} else {
		currentSub, err = s.ledger.GetActiveSubscription(ctx, userID)
		if err != nil {
			return nil, err
		}
		if currentSub != nil {
			currentPack, err = s.catalog.GetPackAnyStatus(ctx, currentSub.PackID)
			if err != nil {
				return nil, err
			}
		}
	}

	return Compare(currentPack, newPack, currentSub, s.now()), nil
}

// ChangePack is the single entry point: classify, then dispatch to the
// immediate executor or the paid orchestrator.
func (s *Service) ChangePack(ctx context.Context, userID, newPackID string) (*ChangeResult, error) {
	cmp, err := s.Compare(ctx, userID, newPackID, "")
	if err != nil {
		return nil, err
	}

	switch {
	case cmp.CanChangeImmediately && !cmp.RequiresPayment:
		res, err := s.ApplyImmediate(ctx, userID, newPackID, ReasonPackChange, true)
		if err != nil {
			return nil, err
		}
		return &ChangeResult{
			Success:       true,
			Message:       cmp.ActionDescription,
			ChangeType:    cmp.ChangeType,
			PreviousPack:  res.PreviousPack,
			NewPack:       res.NewPack,
			CreditGranted: res.CreditGranted,
			Warnings:      res.Warnings,
		}, nil
	case cmp.RequiresPayment:
		res, err := s.ApplyPaid(ctx, userID, newPackID)
		if err != nil {
			return nil, err
		}
		return &ChangeResult{
			Success:        true,
			Message:        cmp.ActionDescription,
			ChangeType:     cmp.ChangeType,
			PreviousPack:   res.PreviousPack,
			NewPack:        res.NewPack,
			PaymentPending: res.PaymentPending,
			CheckoutURL:    res.CheckoutURL,
			Warnings:       res.Warnings,
		}, nil
	default:
		// Compare guarantees exactly one of the two branches.
		return nil, apperr.Conflict("unreachable change state for pack %s", newPackID)
	}
}

// ApplyImmediate applies a no-payment transition: deactivate every
// active row (defensively more than one), credit unused time, activate
// the new pack and recompute selected_pack, all in one transaction.
// External cancellation happens after commit and is best-effort.
func (s *Service) ApplyImmediate(ctx context.Context, userID, newPackID, reason string, cancelExternal bool) (*ImmediateChangeResult, error) {
	newPack, err := s.catalog.GetPackByID(ctx, newPackID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	creditType := types.CreditTypePackDowngrade
	if reason == ReasonCancellation {
		creditType = types.CreditTypeSubscriptionCancellation
	}

	result := &ImmediateChangeResult{NewPack: newPack}
	var externalIDs []string

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.ledger.GetActiveSubscriptionsTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		endedAt := now
		for i, sub := range active {
			pack, err := s.catalog.GetPackAnyStatus(ctx, sub.PackID)
			if err != nil {
				return err
			}
			if i == 0 {
				result.PreviousPack = pack
			}

			var pr *Proration
			if pack.Price > 0 {
				pr = ComputeProration(pack.Price, sub.StartedAt, now)
			}
			if sub.HasExternalSubscription() && cancelExternal {
				externalIDs = append(externalIDs, *sub.StripeSubscriptionID)
			}

			if err := s.ledger.Deactivate(ctx, tx, sub, types.SubscriptionStatusInactive, &endedAt, reason); err != nil {
				return err
			}

			if pr != nil && pr.CreditAmount > 0 {
				desc := fmt.Sprintf("Unused time on %s (%d of %d days remaining)",
					pack.Name, pr.DaysRemaining, pr.TotalDays)
				if _, err := s.ledger.CreateCredit(ctx, tx, userID, pr.CreditAmount, creditType, desc, now); err != nil {
					return err
				}
				result.CreditGranted += pr.CreditAmount
			}
		}

		_, err = s.ledger.Activate(ctx, tx, userID, newPack, now, reason, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	// The local transition is committed; provider failures from here on
	// are warnings, never errors.
	for _, id := range externalIDs {
		if _, err := s.provider.CancelSubscription(ctx, &billing.CancelSubscriptionRequest{SubscriptionID: id, Immediately: true}); err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("failed to cancel external subscription",
				"user_id", userID, "stripe_subscription_id", id, "err", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("external subscription %s could not be cancelled", id))
			continue
		}
		result.ExternalSubscriptionCancelled = true
	}

	return result, nil
}

// ApplyPaid handles transitions that require payment.
//
// A user without an external subscription gets a hosted checkout
// session and NO local write: the ledger only changes when the webhook
// confirms payment. A user with an external subscription gets the
// subscription modified in place with prorations, and the ledger is
// updated immediately on the assumption the proration invoice will
// settle. This asymmetry mirrors how the provider bills each path and
// is a known consistency trade-off; see DESIGN.md.
func (s *Service) ApplyPaid(ctx context.Context, userID, newPackID string) (*PaidChangeResult, error) {
	newPack, err := s.catalog.GetPackByID(ctx, newPackID)
	if err != nil {
		return nil, err
	}

	currentSub, err := s.ledger.GetActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	var currentPack *models.Pack
	var previousPackID string
	var priceDifference int64 = newPack.Price
	if currentSub != nil {
		currentPack, err = s.catalog.GetPackAnyStatus(ctx, currentSub.PackID)
		if err != nil {
			return nil, err
		}
		previousPackID = currentPack.ID
		priceDifference = newPack.Price - currentPack.Price
	}

	if currentSub == nil || !currentSub.HasExternalSubscription() {
		return s.startCheckout(ctx, userID, newPack, currentPack, previousPackID, priceDifference)
	}
	return s.modifySubscription(ctx, userID, currentSub, currentPack, newPack)
}

func (s *Service) startCheckout(ctx context.Context, userID string, newPack, currentPack *models.Pack, previousPackID string, priceDifference int64) (*PaidChangeResult, error) {
	session, err := s.provider.CreateCheckoutSession(ctx, &billing.CheckoutSessionRequest{
		Amount:   newPack.Price,
		Currency: newPack.Currency,
		PackName: newPack.Name,
		Metadata: map[string]string{
			"user_id":          userID,
			"new_pack_id":      newPack.ID,
			"previous_pack_id": previousPackID,
			"price_difference": fmt.Sprintf("%d", priceDifference),
		},
		SuccessURL: s.cfg.Stripe.SuccessURL,
		CancelURL:  s.cfg.Stripe.CancelURL,
	})
	if err != nil {
		return nil, apperr.ExternalProvider(err, "failed to create checkout session")
	}

	logctx.FromCtx(ctx, s.log).Infow("checkout session created",
		"user_id", userID, "pack_id", newPack.ID, "session_id", session.ID)

	return &PaidChangeResult{
		NewPack:        newPack,
		PreviousPack:   currentPack,
		PaymentPending: true,
		CheckoutURL:    session.URL,
	}, nil
}

func (s *Service) modifySubscription(ctx context.Context, userID string, currentSub *models.UserSubscription, currentPack, newPack *models.Pack) (*PaidChangeResult, error) {
	subID := *currentSub.StripeSubscriptionID

	priceID, err := s.provider.CreateMonthlyPrice(ctx, newPack.Name, newPack.Currency, newPack.Price)
	if err != nil {
		return nil, apperr.ExternalProvider(err, "failed to create price for pack %s", newPack.ID)
	}

	remote, err := s.provider.GetSubscription(ctx, subID)
	if err != nil {
		return nil, apperr.ExternalProvider(err, "failed to load subscription %s", subID)
	}

	updated, err := s.provider.UpdateSubscription(ctx, &billing.UpdateSubscriptionRequest{
		SubscriptionID: subID,
		ItemID:         remote.ItemID,
		PriceID:        priceID,
	})
	if err != nil {
		return nil, apperr.ExternalProvider(err, "failed to update subscription %s", subID)
	}

	result := &PaidChangeResult{NewPack: newPack, PreviousPack: currentPack}

	if updated.LatestInvoiceID != "" {
		inv, err := s.provider.GetInvoice(ctx, updated.LatestInvoiceID)
		if err != nil {
			// Advisory only: the subscription is already modified.
			logctx.FromCtx(ctx, s.log).Warnw("failed to read proration invoice",
				"user_id", userID, "invoice_id", updated.LatestInvoiceID, "err", err)
			result.Warnings = append(result.Warnings, "proration amount unavailable")
		} else {
			result.ProrationAmount = inv.AmountDue
		}
	}

	now := s.now()
	opts := &ledgersvc.ActivateOptions{
		StripeSubscriptionID: subID,
		Metadata:             map[string]any{"stripe_price_id": priceID},
	}
	if currentSub.StripeCustomerID != nil {
		opts.StripeCustomerID = *currentSub.StripeCustomerID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.ledger.GetActiveSubscriptionsTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		endedAt := now
		for _, sub := range active {
			if err := s.ledger.Deactivate(ctx, tx, sub, types.SubscriptionStatusInactive, &endedAt, ReasonPaidChange); err != nil {
				return err
			}
		}
		_, err = s.ledger.Activate(ctx, tx, userID, newPack, now, ReasonPaidChange, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CompleteCheckout finishes the deferred new-subscription path once the
// provider confirms payment (checkout.session.completed). This is the
// only place the ledger is written for that path.
func (s *Service) CompleteCheckout(ctx context.Context, userID, packID, stripeSubscriptionID, stripeCustomerID string) error {
	newPack, err := s.catalog.GetPackByID(ctx, packID)
	if err != nil {
		return err
	}

	now := s.now()
	opts := &ledgersvc.ActivateOptions{
		StripeSubscriptionID: stripeSubscriptionID,
		StripeCustomerID:     stripeCustomerID,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.ledger.GetActiveSubscriptionsTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		endedAt := now
		for _, sub := range active {
			if err := s.ledger.Deactivate(ctx, tx, sub, types.SubscriptionStatusInactive, &endedAt, ReasonWebhookActivation); err != nil {
				return err
			}
		}
		_, err = s.ledger.Activate(ctx, tx, userID, newPack, now, ReasonWebhookActivation, opts)
		return err
	})
}
