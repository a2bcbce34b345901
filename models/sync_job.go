package models

import "time"

const (
	SyncJobStatusPending    = "pending"
	SyncJobStatusInProgress = "in_progress"
	SyncJobStatusCompleted  = "completed"
	SyncJobStatusFailed     = "failed"
)

const SyncJobTypeProfileRefresh = "profile_refresh"

// SyncJob is one queued trader-profile refresh. The trader_profiles driver
// claims a bounded batch of pending jobs per run, because the BullAware API
// budget is roughly ten requests a minute.
type SyncJob struct {
	ID           uint64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	TraderID     uint64     `json:"trader_id" gorm:"column:trader_id;not null;index"`
	JobType      string     `json:"job_type" gorm:"column:job_type;type:varchar(32);not null;default:'profile_refresh'"`
	Status       string     `json:"status" gorm:"column:status;type:varchar(16);not null;default:'pending';index"`
	Attempts     int        `json:"attempts" gorm:"column:attempts;not null;default:0"`
	ErrorMessage *string    `json:"error_message,omitempty" gorm:"column:error_message;type:text"`
	StartedAt    *time.Time `json:"started_at,omitempty" gorm:"column:started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" gorm:"column:finished_at"`
	CreatedAt    time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (SyncJob) TableName() string { return "sync_jobs" }
