package models

import (
	"time"

	"github.com/yelenbi/packbilling/pkg/types"
)

// UserCredit is an append-only prepaid amount owed to a user, created
// when a downgrade or cancellation leaves unused paid time. There is no
// consumption ledger; rows are never mutated.
type UserCredit struct {
	ID          string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID      string           `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Amount      int64            `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Type        types.CreditType `gorm:"column:type;type:varchar(64);not null" json:"type"`
	Description string           `gorm:"column:description;type:text" json:"description"`
	ExpiresAt   time.Time        `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (UserCredit) TableName() string {
	return "user_credits"
}
