package models

import "time"

// Sync domains. Each one refreshes independently and owns a single
// sync_domain_status row.
const (
	SyncDomainDiscussionFeed = "discussion_feed"
	SyncDomainTraderProfiles = "trader_profiles"
	SyncDomainStockData      = "stock_data"
)

// Domain lifecycle states.
const (
	SyncStatusIdle        = "idle"
	SyncStatusQueued      = "queued"
	SyncStatusRunning     = "running"
	SyncStatusCompleted   = "completed"
	SyncStatusError       = "error"
	SyncStatusRateLimited = "rate_limited"
)

// AllSyncDomains lists every domain the orchestrator knows about.
var AllSyncDomains = []string{
	SyncDomainDiscussionFeed,
	SyncDomainTraderProfiles,
	SyncDomainStockData,
}

// IsValidSyncDomain reports whether domain names a known sync domain.
func IsValidSyncDomain(domain string) bool {
	for _, d := range AllSyncDomains {
		if d == domain {
			return true
		}
	}
	return false
}

// SyncDomainStatus is the singleton coordination row for one domain. The
// lock_holder/lock_acquired_at pair is the advisory lock; lock_token is a
// fencing token incremented on every successful acquisition so writes from a
// stale holder can be rejected.
type SyncDomainStatus struct {
	Domain           string     `json:"domain" gorm:"column:domain;primaryKey;type:varchar(32)"`
	Status           string     `json:"status" gorm:"column:status;type:varchar(16);not null;default:'idle'"`
	LockHolder       *string    `json:"lock_holder,omitempty" gorm:"column:lock_holder;type:varchar(64)"`
	LockAcquiredAt   *time.Time `json:"lock_acquired_at,omitempty" gorm:"column:lock_acquired_at"`
	LockToken        uint64     `json:"lock_token" gorm:"column:lock_token;not null;default:0"`
	CurrentRunID     *uint64    `json:"current_run_id,omitempty" gorm:"column:current_run_id"`
	ItemsTotal       int        `json:"items_total" gorm:"column:items_total;not null;default:0"`
	ItemsCompleted   int        `json:"items_completed" gorm:"column:items_completed;not null;default:0"`
	CurrentStage     string     `json:"current_stage" gorm:"column:current_stage;type:varchar(128);not null;default:''"`
	ETASeconds       *int       `json:"eta_seconds,omitempty" gorm:"column:eta_seconds"`
	LastSuccessfulAt *time.Time `json:"last_successful_at,omitempty" gorm:"column:last_successful_at"`
	LastErrorMessage *string    `json:"last_error_message,omitempty" gorm:"column:last_error_message;type:text"`
	LastErrorAt      *time.Time `json:"last_error_at,omitempty" gorm:"column:last_error_at"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (SyncDomainStatus) TableName() string { return "sync_domain_status" }
