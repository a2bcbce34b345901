package models

import "time"

const (
	SyncRunStatusRunning   = "running"
	SyncRunStatusCompleted = "completed"
	SyncRunStatusFailed    = "failed"
)

// SyncRun is the append-only ledger of refresh attempts. Rows are created
// when a domain sync starts and updated exactly once at completion.
type SyncRun struct {
	ID           uint64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Domain       string     `json:"domain" gorm:"column:domain;type:varchar(32);not null;index"`
	Status       string     `json:"status" gorm:"column:status;type:enum('running','completed','failed');not null;default:'running'"`
	TriggeredBy  string     `json:"triggered_by" gorm:"column:triggered_by;type:varchar(64);not null"`
	ErrorMessage *string    `json:"error_message,omitempty" gorm:"column:error_message;type:text"`
	StartedAt    time.Time  `json:"started_at" gorm:"column:started_at;autoCreateTime"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" gorm:"column:finished_at"`
	CreatedAt    time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (SyncRun) TableName() string { return "sync_runs" }
