package models

import (
	"time"
)

// SearchSyncJob is a pending push of one property to the search index.
// Writes enqueue jobs; the queue worker drains them so the admin request
// never waits on the search engine.
type SearchSyncJob struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID  string     `gorm:"type:varchar(36);not null;index:idx_sync_lookup" json:"property_id"`
	Action      string     `gorm:"type:varchar(20);not null" json:"action"`                                   // index, delete
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_sync_status" json:"status"` // pending, processing, done, failed
	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt *time.Time `gorm:"index:idx_sync_retry" json:"next_retry_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (SearchSyncJob) TableName() string {
	return "search_sync_queue"
}

const (
	SyncActionIndex  = "index"
	SyncActionDelete = "delete"
)

// Status constants
const (
	QueueStatusPending       = "pending"
	QueueStatusProcessing    = "processing"
	QueueStatusDone          = "done"
	QueueStatusFailed        = "failed"
	QueueStatusPermanentFail = "permanent_fail"
)

// MaxRetryAttempts before marking as permanently failed
const MaxRetryAttempts = 5

// GetNextRetryDelay calculates exponential backoff for retries
func GetNextRetryDelay(attempts int) time.Duration {
	// 1min, 5min, 15min, 1h, 4h
	delays := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		15 * time.Minute,
		1 * time.Hour,
		4 * time.Hour,
	}

	if attempts >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempts]
}
