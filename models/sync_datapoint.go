package models

import "time"

const (
	DatapointStatusPending     = "pending"
	DatapointStatusRunning     = "running"
	DatapointStatusCompleted   = "completed"
	DatapointStatusError       = "error"
	DatapointStatusInfo        = "info"
	DatapointStatusRateLimited = "rate_limited"
)

// SyncDatapoint is a named progress counter scoped to one run. Identity is
// (run_id, datapoint_key); drivers upsert it in place at coarse milestones.
// Historical runs keep their datapoints for audit.
type SyncDatapoint struct {
	ID             uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	RunID          uint64    `json:"run_id" gorm:"column:run_id;not null;uniqueIndex:uniq_run_key"`
	Domain         string    `json:"domain" gorm:"column:domain;type:varchar(32);not null"`
	DatapointKey   string    `json:"datapoint_key" gorm:"column:datapoint_key;type:varchar(64);not null;uniqueIndex:uniq_run_key"`
	DatapointLabel string    `json:"datapoint_label" gorm:"column:datapoint_label;type:varchar(128);not null"`
	ValueCurrent   int       `json:"value_current" gorm:"column:value_current;not null;default:0"`
	ValueTotal     *int      `json:"value_total,omitempty" gorm:"column:value_total"`
	Status         string    `json:"status" gorm:"column:status;type:varchar(16);not null;default:'pending'"`
	Details        *string   `json:"details,omitempty" gorm:"column:details;type:text"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (SyncDatapoint) TableName() string { return "sync_datapoints" }
