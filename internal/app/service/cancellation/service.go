package cancellation

import (
	"context"
	"fmt"
	"time"

	"github.com/yelenbi/packbilling/internal/app/service/catalog"
	ledgersvc "github.com/yelenbi/packbilling/internal/app/service/ledger"
	"github.com/yelenbi/packbilling/internal/app/service/packchange"
	models "github.com/yelenbi/packbilling/internal/models"
	"github.com/yelenbi/packbilling/internal/platform/billing"
	"github.com/yelenbi/packbilling/pkg/logctx"
	types "github.com/yelenbi/packbilling/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Request carries the cancellation parameters from the API surface.
type Request struct {
	Reason            string
	CancelImmediately bool
	Feedback          string
}

type Result struct {
	Cancelled bool         `json:"cancelled"`
	Message   string       `json:"message"`
	Pack      *models.Pack `json:"pack,omitempty"`
	// AccessUntil is set on period-end cancellation: the user keeps the
	// pack until then.
	AccessUntil       *time.Time `json:"access_until,omitempty"`
	CreditGranted     int64      `json:"credit_granted"`
	ExternalCancelled bool       `json:"external_cancelled"`
	FreePackActivated bool       `json:"free_pack_activated"`
	Warnings          []string   `json:"warnings,omitempty"`
}

// Service terminates a paid pack: prorated credit, provider
// cancellation (best-effort), local ledger transition and, on immediate
// cancellation, migration to the free pack so the user is never left
// without an active row.
type Service struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	catalog  *catalog.Service
	ledger   *ledgersvc.Service
	provider billing.Provider
	now      func() time.Time
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, cat *catalog.Service, led *ledgersvc.Service, provider billing.Provider) *Service {
	return &Service{db: db, log: log, catalog: cat, ledger: led, provider: provider, now: time.Now}
}

// Cancel runs the workflow. Provider failure never blocks the local
// cancellation; a missing free pack aborts only the final migration
// step, after the cancellation itself has committed (accepted
// at-least-once design).
func (s *Service) Cancel(ctx context.Context, userID string, req *Request) (*Result, error) {
	sub, err := s.ledger.GetActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return &Result{Cancelled: false, Message: "no active subscription to cancel"}, nil
	}

	pack, err := s.catalog.GetPackAnyStatus(ctx, sub.PackID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &Result{Cancelled: true, Pack: pack}

	var credit int64
	if pack.Price > 0 && !sub.StartedAt.IsZero() {
		credit = packchange.ComputeProration(pack.Price, sub.StartedAt, now).CreditAmount
	}

	// Provider first, best-effort: the local transition proceeds even
	// when the provider call fails.
	var periodEnd *time.Time
	if sub.HasExternalSubscription() {
		remote, err := s.provider.CancelSubscription(ctx, &billing.CancelSubscriptionRequest{
			SubscriptionID: *sub.StripeSubscriptionID,
			Immediately:    req.CancelImmediately,
		})
		if err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("failed to cancel external subscription",
				"user_id", userID, "stripe_subscription_id", *sub.StripeSubscriptionID, "err", err)
			result.Warnings = append(result.Warnings, "external subscription could not be cancelled")
		} else {
			result.ExternalCancelled = true
			if !remote.PeriodEnd.IsZero() {
				pe := remote.PeriodEnd
				periodEnd = &pe
			}
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.CancelImmediately {
			endedAt := now
			if err := s.ledger.Deactivate(ctx, tx, sub, types.SubscriptionStatusCancelled, &endedAt, packchange.ReasonCancellation); err != nil {
				return err
			}
		} else {
			if periodEnd == nil {
				// Provider gave no period end; fall back to the local cycle.
				fallback := sub.StartedAt.AddDate(0, 1, 0)
				periodEnd = &fallback
			}
			sub.AccessUntil = periodEnd
			if err := s.ledger.Deactivate(ctx, tx, sub, types.SubscriptionStatusCancelling, nil, packchange.ReasonCancellation); err != nil {
				return err
			}
			result.AccessUntil = periodEnd
		}

		if credit > 0 {
			desc := fmt.Sprintf("Cancellation of %s", pack.Name)
			if _, err := s.ledger.CreateCredit(ctx, tx, userID, credit, types.CreditTypeSubscriptionCancellation, desc, now); err != nil {
				return err
			}
			result.CreditGranted = credit
		}

		if req.Feedback != "" {
			durationDays := int(now.Sub(sub.StartedAt).Hours() / 24)
			if err := s.ledger.CreateFeedback(ctx, tx, userID, pack.ID, req.Reason, req.Feedback, durationDays); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.CancelImmediately {
		// Steps above have committed; a missing free pack aborts only
		// this migration and surfaces as a configuration error.
		freePack, err := s.catalog.GetFreePack(ctx)
		if err != nil {
			return nil, err
		}
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := s.ledger.Activate(ctx, tx, userID, freePack, now, packchange.ReasonCancellation, nil)
			return err
		})
		if err != nil {
			return nil, err
		}
		result.FreePackActivated = true
	}

	result.Message = fmt.Sprintf("Subscription to %s cancelled", pack.Name)
	return result, nil
}
