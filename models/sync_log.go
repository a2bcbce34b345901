package models

import "time"

const (
	SyncLogLevelInfo  = "info"
	SyncLogLevelWarn  = "warn"
	SyncLogLevelError = "error"
)

// SyncLog is the append-only audit log. RunID is nullable because some
// entries are domain-level (e.g. operator lock clears) rather than run-scoped.
type SyncLog struct {
	ID        uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	RunID     *uint64   `json:"run_id,omitempty" gorm:"column:run_id;index"`
	Domain    string    `json:"domain" gorm:"column:domain;type:varchar(32);not null;index"`
	Level     string    `json:"level" gorm:"column:level;type:enum('info','warn','error');not null;default:'info'"`
	Message   string    `json:"message" gorm:"column:message;type:text;not null"`
	Details   *string   `json:"details,omitempty" gorm:"column:details;type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (SyncLog) TableName() string { return "sync_logs" }
