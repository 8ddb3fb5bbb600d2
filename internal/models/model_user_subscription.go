package models

import (
	"time"

	"github.com/yelenbi/packbilling/pkg/types"

	"gorm.io/datatypes"
)

// UserSubscription is one ledger row per (user, pack) instance.
//
// Invariant: at most one row per user has status=active. The partial
// unique index idx_user_subscriptions_one_active backs this at the
// storage layer; the services additionally deactivate old rows and
// activate the new one inside a single transaction.
type UserSubscription struct {
	ID     string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string                   `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:unique_user_pack,priority:1" json:"user_id"`
	PackID string                   `gorm:"column:pack_id;type:varchar(64);not null;uniqueIndex:unique_user_pack,priority:2" json:"pack_id"`
	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	// StartedAt anchors the 1-month billing period used for proration.
	StartedAt time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	EndedAt   *time.Time `gorm:"column:ended_at;default:null" json:"ended_at"`
	// AccessUntil is set on period-end cancellation: the user keeps the
	// pack until the provider's current period closes.
	AccessUntil *time.Time `gorm:"column:access_until;default:null" json:"access_until"`
	// External payment provider references, empty for free packs.
	StripeSubscriptionID *string           `gorm:"column:stripe_subscription_id;type:varchar(128);default:null" json:"stripe_subscription_id"`
	StripeCustomerID     *string           `gorm:"column:stripe_customer_id;type:varchar(128);default:null" json:"stripe_customer_id"`
	Metadata             datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

func (UserSubscription) TableName() string {
	return "user_subscriptions"
}

func (s *UserSubscription) IsActive() bool {
	return s != nil && s.Status == types.SubscriptionStatusActive
}

func (s *UserSubscription) HasExternalSubscription() bool {
	return s != nil && s.StripeSubscriptionID != nil && *s.StripeSubscriptionID != ""
}
