package models

import "time"

// UserProfile carries the denormalized selected_pack column: the
// slugified name of the pack behind the user's sole active
// subscription. It is recomputed inside the same transaction as every
// ledger change; any divergence from the ledger is a bug.
type UserProfile struct {
	UserID       string    `gorm:"column:user_id;type:varchar(64);primary_key" json:"user_id"`
	SelectedPack string    `gorm:"column:selected_pack;type:varchar(128)" json:"selected_pack"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
