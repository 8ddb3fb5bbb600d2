package models

import (
	"time"

	"gorm.io/datatypes"
)

// PackChangeLog is an append-only before/after snapshot of every ledger
// transition, written inside the same transaction as the transition
// itself.
type PackChangeLog struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	// Reason mirrors the caller intent: pack_change, pack_downgrade,
	// cancellation, webhook_activation.
	Reason    string                                  `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	Before    datatypes.JSONType[*UserSubscription]   `gorm:"column:before;type:jsonb;default:'{}'" json:"before"`
	After     datatypes.JSONType[*UserSubscription]   `gorm:"column:after;type:jsonb;default:'{}'" json:"after"`
	Extra     datatypes.JSONMap                       `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time                               `json:"created_at"`
}

func (PackChangeLog) TableName() string {
	return "pack_change_logs"
}
