package models

import (
	"time"

	"github.com/yelenbi/packbilling/pkg/types"
)

// Pack is a purchasable subscription tier. Rows are seeded from config
// at startup and never mutated by the core workflow.
type Pack struct {
	ID            string              `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	Name          string              `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Price         int64               `gorm:"column:price;type:bigint;not null" json:"price"`
	Currency      string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	BillingPeriod types.BillingPeriod `gorm:"column:billing_period;type:varchar(32);not null" json:"billing_period"`
	IsActive      bool                `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func (Pack) TableName() string {
	return "packs"
}

func (p *Pack) IsFree() bool {
	return p != nil && p.Price == 0
}
