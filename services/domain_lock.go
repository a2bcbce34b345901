package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-compass-api/config"
	"market-compass-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// LockStaleAfter is how old an unreleased lock must be before another
	// acquirer may override it.
	LockStaleAfter = 30 * time.Minute

	// ClearStaleTTL is the shorter threshold used by the manual operator
	// lock-clear.
	ClearStaleTTL = 5 * time.Minute
)

var (
	// ErrSyncLockHeld means another holder owns a fresh lock. Not an error
	// condition for the caller, just a blocked acquisition.
	ErrSyncLockHeld = errors.New("sync lock held by another instance")

	// ErrStaleLockToken means a write presented a fencing token that no
	// longer matches the row — the lock was stolen after a staleness
	// override while this holder was still running.
	ErrStaleLockToken = errors.New("stale sync lock token")

	ErrUnknownSyncDomain = errors.New("unknown sync domain")
)

// LockGrant is proof of a successful acquisition. Token is the fencing token
// for this hold; every subsequent write through the service presents it.
type LockGrant struct {
	Domain     string
	HolderID   string
	Token      uint64
	AcquiredAt time.Time
}

// ClearResult reports the outcome of a manual stale-lock clear.
type ClearResult struct {
	Domain      string  `json:"domain"`
	Cleared     bool    `json:"cleared"`
	Reason      string  `json:"reason"`
	PriorHolder *string `json:"prior_holder,omitempty"`
	AgeMinutes  float64 `json:"age_minutes,omitempty"`
}

// DomainLockService implements the per-domain advisory lock over the
// sync_domain_status row. The single conditional UPDATE is the only mutual
// exclusion across process instances; the fencing token bounds the damage
// when a slow (not crashed) holder is overridden past the staleness window.
type DomainLockService struct {
	db   *gorm.DB
	logs *SyncLogService
}

func NewDomainLockService(db *gorm.DB) *DomainLockService {
	if db == nil {
		db = config.DB
	}
	return &DomainLockService{db: db, logs: NewSyncLogService(db)}
}

// acquirableStatuses are the states a fresh (non-stale) lock can be taken
// from. rate_limited and error rows are re-acquirable so the next trigger
// can retry them.
var acquirableStatuses = []string{
	models.SyncStatusIdle,
	models.SyncStatusCompleted,
	models.SyncStatusError,
	models.SyncStatusRateLimited,
}

// Acquire takes the lock for domain on behalf of holderID. The row moves to
// queued; the orchestrator worker marks it running when the driver actually
// starts. Returns ErrSyncLockHeld when another holder owns a fresh lock.
func (s *DomainLockService) Acquire(ctx context.Context, domain, holderID string) (*LockGrant, error) {
	if !models.IsValidSyncDomain(domain) {
		return nil, ErrUnknownSyncDomain
	}
	if holderID == "" {
		return nil, errors.New("holder id is required")
	}

	if err := s.ensureRow(ctx, domain); err != nil {
		return nil, err
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.SyncDomainStatus{}).
		Where("domain = ? AND (status IN ? OR lock_acquired_at IS NULL OR lock_acquired_at < ?)",
			domain, acquirableStatuses, now.Add(-LockStaleAfter)).
		Updates(map[string]interface{}{
			"status":           models.SyncStatusQueued,
			"lock_holder":      holderID,
			"lock_acquired_at": now,
			"lock_token":       gorm.Expr("lock_token + 1"),
			"current_run_id":   nil,
			"items_total":      0,
			"items_completed":  0,
			"current_stage":    "",
			"eta_seconds":      nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrSyncLockHeld
	}

	// Read the fencing token stamped by the update we just won.
	var row models.SyncDomainStatus
	if err := s.db.WithContext(ctx).Where("domain = ?", domain).First(&row).Error; err != nil {
		return nil, err
	}
	return &LockGrant{Domain: domain, HolderID: holderID, Token: row.LockToken, AcquiredAt: now}, nil
}

// MarkRunning transitions a queued hold to running and stamps the active run.
func (s *DomainLockService) MarkRunning(ctx context.Context, grant *LockGrant, runID uint64) error {
	return s.write(ctx, grant, map[string]interface{}{
		"status":         models.SyncStatusRunning,
		"current_run_id": runID,
	})
}

// UpdateProgress publishes coarse progress to the dashboard. Drivers call it
// at stage boundaries, not per item.
func (s *DomainLockService) UpdateProgress(ctx context.Context, grant *LockGrant, stage string, completed, total int, etaSeconds *int) error {
	return s.write(ctx, grant, map[string]interface{}{
		"current_stage":   stage,
		"items_completed": completed,
		"items_total":     total,
		"eta_seconds":     etaSeconds,
	})
}

// Release frees the lock and records the final status. Idempotent: a second
// release on an already-free row applies the second call's state. A release
// from a holder whose lock was stolen returns ErrStaleLockToken and writes
// nothing.
func (s *DomainLockService) Release(ctx context.Context, grant *LockGrant, finalStatus, errorMessage string) error {
	if grant == nil {
		return errors.New("lock grant is required")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":           finalStatus,
		"lock_holder":      nil,
		"lock_acquired_at": nil,
		"current_run_id":   nil,
	}
	if finalStatus == models.SyncStatusIdle || finalStatus == models.SyncStatusCompleted {
		updates["last_successful_at"] = now
	}
	if errorMessage != "" {
		updates["last_error_message"] = truncateError(errorMessage)
		updates["last_error_at"] = now
	}

	res := s.db.WithContext(ctx).Model(&models.SyncDomainStatus{}).
		Where("domain = ? AND (lock_token = ? OR lock_holder IS NULL)", grant.Domain, grant.Token).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleLockToken
	}
	return nil
}

// ClearStale is the manual operator override. It clears the lock only when
// the domain is running or queued and the hold is older than ClearStaleTTL;
// it does not stop an orphaned driver still executing in the background.
func (s *DomainLockService) ClearStale(ctx context.Context, domain, clearedBy string) (*ClearResult, error) {
	if !models.IsValidSyncDomain(domain) {
		return nil, ErrUnknownSyncDomain
	}

	result := &ClearResult{Domain: domain}

	var row models.SyncDomainStatus
	if err := s.db.WithContext(ctx).Where("domain = ?", domain).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.Reason = "No status row."
			return result, nil
		}
		return nil, err
	}

	if row.Status != models.SyncStatusRunning && row.Status != models.SyncStatusQueued {
		result.Reason = "Not running."
		return result, nil
	}
	if row.LockAcquiredAt == nil {
		result.Reason = "Lock has no acquisition timestamp."
		return result, nil
	}

	age := time.Since(*row.LockAcquiredAt)
	result.AgeMinutes = age.Minutes()
	result.PriorHolder = row.LockHolder
	if age <= ClearStaleTTL {
		result.Reason = fmt.Sprintf("Lock age %.1f minutes is within the %.0f minute TTL.", age.Minutes(), ClearStaleTTL.Minutes())
		return result, nil
	}

	cutoff := time.Now().Add(-ClearStaleTTL)
	res := s.db.WithContext(ctx).Model(&models.SyncDomainStatus{}).
		Where("domain = ? AND status IN ? AND lock_acquired_at < ?",
			domain, []string{models.SyncStatusRunning, models.SyncStatusQueued}, cutoff).
		Updates(map[string]interface{}{
			"status":           models.SyncStatusIdle,
			"lock_holder":      nil,
			"lock_acquired_at": nil,
			"current_run_id":   nil,
			"current_stage":    "",
			"eta_seconds":      nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		result.Reason = "Lock changed while clearing; nothing to do."
		return result, nil
	}

	holder := "unknown"
	if row.LockHolder != nil {
		holder = *row.LockHolder
	}
	s.logs.Warn(ctx, row.CurrentRunID, domain,
		fmt.Sprintf("Stale lock cleared by %s: prior holder %s held it for %.1f minutes", clearedBy, holder, age.Minutes()),
		nil)

	result.Cleared = true
	result.Reason = "Cleared."
	return result, nil
}

// GetStatus returns the coordination row for one domain.
func (s *DomainLockService) GetStatus(ctx context.Context, domain string) (*models.SyncDomainStatus, error) {
	var row models.SyncDomainStatus
	if err := s.db.WithContext(ctx).Where("domain = ?", domain).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *DomainLockService) write(ctx context.Context, grant *LockGrant, updates map[string]interface{}) error {
	if grant == nil {
		return errors.New("lock grant is required")
	}
	res := s.db.WithContext(ctx).Model(&models.SyncDomainStatus{}).
		Where("domain = ? AND lock_token = ? AND lock_holder = ?", grant.Domain, grant.Token, grant.HolderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleLockToken
	}
	return nil
}

func (s *DomainLockService) ensureRow(ctx context.Context, domain string) error {
	row := &models.SyncDomainStatus{Domain: domain, Status: models.SyncStatusIdle}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

func truncateError(msg string) string {
	if len(msg) > 1000 {
		return msg[:997] + "..."
	}
	return msg
}
