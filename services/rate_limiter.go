package services

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"market-compass-api/config"
	"market-compass-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const rateWindow = time.Minute

// RateBudget answers "is another upstream call allowed right now".
type RateBudget struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// RateLimiterService tracks a shared per-minute request counter for one
// upstream API. The check is advisory: it does not increment the counter,
// callers call Record for each request they actually issue and re-check
// before every batch. Concurrent writers may race on the counter; precision
// is best effort by design.
type RateLimiterService struct {
	db *gorm.DB
}

func NewRateLimiterService(db *gorm.DB) *RateLimiterService {
	if db == nil {
		db = config.DB
	}
	return &RateLimiterService{db: db}
}

// CheckAndReserve evaluates the current window for apiKey. A missing row is
// treated as a fresh window with the default budget. A window older than one
// minute is reset in place before evaluating.
func (s *RateLimiterService) CheckAndReserve(ctx context.Context, apiKey string) (*RateBudget, error) {
	now := time.Now()

	var state models.RateLimitState
	err := s.db.WithContext(ctx).Where("api_key = ?", apiKey).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			max := defaultMaxPerMinute(apiKey)
			return &RateBudget{Allowed: true, Remaining: max, ResetAt: now.Add(rateWindow)}, nil
		}
		return nil, err
	}

	if now.Sub(state.MinuteStartedAt) >= rateWindow {
		// Reset the window. The filter on the old window start keeps two
		// concurrent resetters from both zeroing a counter that another
		// caller already bumped in the new window.
		res := s.db.WithContext(ctx).Model(&models.RateLimitState{}).
			Where("api_key = ? AND minute_started_at = ?", apiKey, state.MinuteStartedAt).
			Updates(map[string]interface{}{
				"requests_this_minute": 0,
				"minute_started_at":    now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		return &RateBudget{Allowed: true, Remaining: state.MaxPerMinute, ResetAt: now.Add(rateWindow)}, nil
	}

	remaining := state.MaxPerMinute - state.RequestsThisMinute
	if remaining < 0 {
		remaining = 0
	}
	return &RateBudget{
		Allowed:   remaining > 0,
		Remaining: remaining,
		ResetAt:   state.MinuteStartedAt.Add(rateWindow),
	}, nil
}

// Record counts n issued requests against the window, creating or resetting
// the state row as needed. A window boundary crossed mid-batch is not
// retroactively corrected.
func (s *RateLimiterService) Record(ctx context.Context, apiKey string, n int) error {
	if n <= 0 {
		return nil
	}
	now := time.Now()

	res := s.db.WithContext(ctx).Model(&models.RateLimitState{}).
		Where("api_key = ? AND minute_started_at > ?", apiKey, now.Add(-rateWindow)).
		Update("requests_this_minute", gorm.Expr("requests_this_minute + ?", n))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Missing row or stale window: start a fresh one counting these requests.
	state := &models.RateLimitState{
		APIKey:             apiKey,
		RequestsThisMinute: n,
		MaxPerMinute:       defaultMaxPerMinute(apiKey),
		MinuteStartedAt:    now,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "api_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"requests_this_minute": n,
			"minute_started_at":    now,
		}),
	}).Create(state).Error
}

func defaultMaxPerMinute(apiKey string) int {
	if apiKey == models.RateLimitAPIBullAware {
		if v, err := strconv.Atoi(os.Getenv("BULLAWARE_MAX_PER_MINUTE")); err == nil && v > 0 {
			return v
		}
	}
	return 10
}
