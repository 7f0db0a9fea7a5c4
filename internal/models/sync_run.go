package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SyncJobFull          = "full"
	SyncJobDelta         = "delta"
	SyncJobWebhookReplay = "webhook_replay"
)

const (
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusError   = "error"
)

const (
	SyncModeFull         = "full"
	SyncModeDelta        = "delta"
	SyncModeFullFallback = "full-fallback"
)

// SyncRun is an append-only checkpoint row. The latest non-error full or
// delta row anchors the next delta window; rows are never updated.
type SyncRun struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement"`
	JobType     string         `gorm:"type:varchar(20);not null;index:idx_sync_runs_job_status"`
	Status      string         `gorm:"type:varchar(20);not null;index:idx_sync_runs_job_status"`
	Mode        string         `gorm:"type:varchar(20);not null"`
	RecordCount int            `gorm:"not null;default:0"`
	Details     datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}
