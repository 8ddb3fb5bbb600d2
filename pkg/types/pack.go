package types

type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusInactive   SubscriptionStatus = "inactive"
	SubscriptionStatusCancelled  SubscriptionStatus = "cancelled"
	SubscriptionStatusCancelling SubscriptionStatus = "cancelling"
)

type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
)

// PackChangeType classifies a requested pack transition. Classification
// order matters: first_pack wins over price comparison, upgrade over
// downgrade, and equal prices fall through to same_price.
type PackChangeType string

const (
	PackChangeTypeFirstPack PackChangeType = "first_pack"
	PackChangeTypeUpgrade   PackChangeType = "upgrade"
	PackChangeTypeDowngrade PackChangeType = "downgrade"
	PackChangeTypeSamePrice PackChangeType = "same_price"
)

type CreditType string

const (
	CreditTypePackDowngrade            CreditType = "pack_downgrade"
	CreditTypeSubscriptionCancellation CreditType = "subscription_cancellation"
)

// PackSeed is a catalog entry loaded from config and seeded into the
// packs table on startup. Prices are whole currency units (XOF has no
// minor unit).
type PackSeed struct {
	ID            string `json:"id" mapstructure:"id"`
	Name          string `json:"name" mapstructure:"name"`
	Price         int64  `json:"price" mapstructure:"price"`
	Currency      string `json:"currency" mapstructure:"currency"`
	BillingPeriod string `json:"billing_period" mapstructure:"billing_period"`
}
