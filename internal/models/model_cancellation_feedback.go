package models

import (
	"time"

	"gorm.io/datatypes"
)

// CancellationFeedback is write-once, created only by the cancellation
// workflow when the user supplies feedback text.
type CancellationFeedback struct {
	ID       string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID   string            `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	PackID   string            `gorm:"column:pack_id;type:varchar(64);not null" json:"pack_id"`
	Reason   string            `gorm:"column:reason;type:varchar(128)" json:"reason"`
	Feedback string            `gorm:"column:feedback;type:text" json:"feedback"`
	Metadata datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt time.Time        `json:"created_at"`
}

func (CancellationFeedback) TableName() string {
	return "cancellation_feedback"
}
