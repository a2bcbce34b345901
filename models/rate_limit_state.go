package models

import "time"

// RateLimitAPIBullAware keys the shared per-minute budget for the BullAware
// investor API.
const RateLimitAPIBullAware = "bullaware"

// RateLimitState is the singleton per-API counter for a rolling one-minute
// window. The counter resets whenever minute_started_at is older than one
// minute; within a window it only grows. Precision is best effort — see
// services.RateLimiter.
type RateLimitState struct {
	APIKey             string    `json:"api_key" gorm:"column:api_key;primaryKey;type:varchar(32)"`
	RequestsThisMinute int       `json:"requests_this_minute" gorm:"column:requests_this_minute;not null;default:0"`
	MaxPerMinute       int       `json:"max_per_minute" gorm:"column:max_per_minute;not null;default:10"`
	MinuteStartedAt    time.Time `json:"minute_started_at" gorm:"column:minute_started_at;not null"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (RateLimitState) TableName() string { return "rate_limit_states" }
