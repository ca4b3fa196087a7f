package models

import "time"

// DeleteLog is an audit row written when a property is physically deleted
type DeleteLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID string    `gorm:"type:varchar(36);not null;index" json:"property_id"`
	Title      string    `gorm:"type:text" json:"title"`
	Slug       string    `gorm:"type:varchar(255)" json:"slug"`
	DeletedAt  time.Time `gorm:"not null;autoCreateTime;index" json:"deleted_at"`
	Reason     string    `gorm:"type:varchar(50);not null" json:"reason"`
}

// TableName specifies the table name
func (DeleteLog) TableName() string {
	return "delete_logs"
}

// DeleteReason constants
const (
	DeleteReasonManual   = "manual_deletion"
	DeleteReasonRollback = "create_rollback"
)
