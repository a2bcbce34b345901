package services

import (
	"context"
	"errors"
	"time"

	"market-compass-api/config"
	"market-compass-api/models"

	"gorm.io/gorm"
)

var ErrSyncRunNotFound = errors.New("sync run not found")

// SyncRunService owns the append-only run ledger.
type SyncRunService struct {
	db *gorm.DB
}

func NewSyncRunService(db *gorm.DB) *SyncRunService {
	if db == nil {
		db = config.DB
	}
	return &SyncRunService{db: db}
}

// Start inserts a running ledger entry. Failure here aborts the sync attempt
// for the domain.
func (s *SyncRunService) Start(ctx context.Context, domain, triggeredBy string) (*models.SyncRun, error) {
	if triggeredBy == "" {
		triggeredBy = "unknown"
	}
	run := &models.SyncRun{
		Domain:      domain,
		Status:      models.SyncRunStatusRunning,
		TriggeredBy: triggeredBy,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// Complete records the terminal status. Called exactly once per run from the
// orchestrator's background continuation.
func (s *SyncRunService) Complete(ctx context.Context, runID uint64, status string, errMsg string) error {
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": time.Now(),
	}
	if errMsg != "" {
		updates["error_message"] = truncateError(errMsg)
	}
	res := s.db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", runID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSyncRunNotFound
	}
	return nil
}

// Recent lists the newest runs, optionally filtered by domain.
func (s *SyncRunService) Recent(ctx context.Context, domain string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := s.db.WithContext(ctx).Model(&models.SyncRun{}).Order("started_at DESC").Limit(limit)
	if domain != "" {
		query = query.Where("domain = ?", domain)
	}
	var runs []models.SyncRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Get loads one run by id.
func (s *SyncRunService) Get(ctx context.Context, runID uint64) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := s.db.WithContext(ctx).Where("id = ?", runID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSyncRunNotFound
		}
		return nil, err
	}
	return &run, nil
}
