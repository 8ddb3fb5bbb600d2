package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "github.com/yelenbi/packbilling/internal/models"
	"github.com/yelenbi/packbilling/pkg/logctx"
	"github.com/yelenbi/packbilling/pkg/slugify"
	"github.com/yelenbi/packbilling/pkg/tool"
	types "github.com/yelenbi/packbilling/pkg/types"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const creditValidity = 365 * 24 * time.Hour

// Service owns the subscription ledger: the user_subscriptions rows,
// the derived user_profiles.selected_pack column, the append-only
// user_credits / cancellation_feedback tables and the change log.
//
// Mutating methods take the caller's *gorm.DB so that deactivate-old +
// activate-new + selected_pack recompute land in one transaction; the
// at-most-one-active invariant must never be observable as violated.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// DB exposes the handle for callers opening their own transactions.
func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) GetActiveSubscriptions(ctx context.Context, userID string) ([]*models.UserSubscription, error) {
	return s.GetActiveSubscriptionsTx(ctx, s.db, userID)
}

// GetActiveSubscriptionsTx returns every active row for the user. More
// than one is a drift the executors repair defensively; callers decide
// whether to treat it as a conflict.
func (s *Service) GetActiveSubscriptionsTx(ctx context.Context, tx *gorm.DB, userID string) ([]*models.UserSubscription, error) {
	var rows []*models.UserSubscription
	err := tx.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.SubscriptionStatusActive).
		Order("started_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscriptions: %w", err)
	}
	return rows, nil
}

// GetActiveSubscription returns the single active row, or nil when the
// user has none. Multiple active rows are logged and the most recently
// started one wins.
func (s *Service) GetActiveSubscription(ctx context.Context, userID string) (*models.UserSubscription, error) {
	rows, err := s.GetActiveSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		logctx.FromCtx(ctx, s.log).Warnw("multiple active subscriptions detected",
			"user_id", userID, "count", len(rows))
	}
	return rows[0], nil
}

// Deactivate marks a row inactive/cancelled/cancelling and records the
// transition in the change log.
func (s *Service) Deactivate(ctx context.Context, tx *gorm.DB, sub *models.UserSubscription, status types.SubscriptionStatus, endedAt *time.Time, reason string) error {
	before := *sub
	sub.Status = status
	sub.EndedAt = endedAt
	if err := tx.WithContext(ctx).Save(sub).Error; err != nil {
		return fmt.Errorf("failed to deactivate subscription %s: %w", sub.ID, err)
	}
	return s.appendChangeLog(ctx, tx, sub.UserID, reason, &before, sub, nil)
}

// ActivateOptions carries optional external-provider references for
// the new active row.
type ActivateOptions struct {
	StripeSubscriptionID string
	StripeCustomerID     string
	Metadata             map[string]any
}

// Activate upserts the (userID, pack) row as the new active
// subscription with startedAt=now and recomputes selected_pack, all on
// the caller's transaction. Re-activating a pack the user previously
// held reuses the existing row (unique constraint on user_id+pack_id)
// and resets started_at.
func (s *Service) Activate(ctx context.Context, tx *gorm.DB, userID string, pack *models.Pack, now time.Time, reason string, opts *ActivateOptions) (*models.UserSubscription, error) {
	var existing models.UserSubscription
	err := tx.WithContext(ctx).
		Where("user_id = ? AND pack_id = ?", userID, pack.ID).
		First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load subscription row: %w", err)
	}

	var before *models.UserSubscription
	sub := &models.UserSubscription{
		UserID:    userID,
		PackID:    pack.ID,
		Status:    types.SubscriptionStatusActive,
		StartedAt: now,
		Metadata:  datatypes.JSONMap{},
	}
	if existing.ID != "" {
		cp := existing
		before = &cp
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = tool.GenerateUUIDV7()
	}
	if opts != nil {
		if opts.StripeSubscriptionID != "" {
			sub.StripeSubscriptionID = &opts.StripeSubscriptionID
		}
		if opts.StripeCustomerID != "" {
			sub.StripeCustomerID = &opts.StripeCustomerID
		}
		for k, v := range opts.Metadata {
			sub.Metadata[k] = v
		}
	}

	if err := tx.WithContext(ctx).Save(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}

	if err := s.SetSelectedPack(ctx, tx, userID, pack.Name); err != nil {
		return nil, err
	}

	if err := s.appendChangeLog(ctx, tx, userID, reason, before, sub, map[string]any{"pack_id": pack.ID}); err != nil {
		return nil, err
	}

	return sub, nil
}

// SetSelectedPack writes the denormalized slug derived from the active
// pack's name. Always called on the same transaction as the ledger
// change that made it true.
func (s *Service) SetSelectedPack(ctx context.Context, tx *gorm.DB, userID, packName string) error {
	profile := &models.UserProfile{
		UserID:       userID,
		SelectedPack: slugify.Make(packName),
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"selected_pack", "updated_at"}),
	}).Create(profile).Error
	if err != nil {
		return fmt.Errorf("failed to update selected pack: %w", err)
	}
	return nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// CreateCredit appends a user_credits row with a 1-year expiry.
func (s *Service) CreateCredit(ctx context.Context, tx *gorm.DB, userID string, amount int64, creditType types.CreditType, description string, now time.Time) (*models.UserCredit, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	credit := &models.UserCredit{
		ID:          tool.GenerateUUIDV7(),
		UserID:      userID,
		Amount:      amount,
		Type:        creditType,
		Description: description,
		ExpiresAt:   now.Add(creditValidity),
	}
	if err := tx.WithContext(ctx).Create(credit).Error; err != nil {
		return nil, fmt.Errorf("failed to create credit: %w", err)
	}
	return credit, nil
}

func (s *Service) ListCredits(ctx context.Context, userID string) ([]*models.UserCredit, error) {
	var credits []*models.UserCredit
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&credits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list credits: %w", err)
	}
	return credits, nil
}

// CreateFeedback appends a cancellation_feedback row.
func (s *Service) CreateFeedback(ctx context.Context, tx *gorm.DB, userID, packID, reason, feedback string, durationDays int) error {
	row := &models.CancellationFeedback{
		ID:       tool.GenerateUUIDV7(),
		UserID:   userID,
		PackID:   packID,
		Reason:   reason,
		Feedback: feedback,
		Metadata: datatypes.JSONMap{"subscription_duration_days": durationDays},
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create cancellation feedback: %w", err)
	}
	return nil
}

func (s *Service) appendChangeLog(ctx context.Context, tx *gorm.DB, userID, reason string, before, after *models.UserSubscription, extra map[string]any) error {
	entry := &models.PackChangeLog{
		ID:     tool.GenerateUUIDV7(),
		UserID: userID,
		Reason: reason,
		Before: datatypes.NewJSONType(before),
		After:  datatypes.NewJSONType(after),
		Extra:  datatypes.JSONMap(extra),
	}
	if entry.Extra == nil {
		entry.Extra = datatypes.JSONMap{}
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append change log: %w", err)
	}
	return nil
}
