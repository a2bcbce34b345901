package services

import (
	"context"
	"encoding/json"
	"log"

	"market-compass-api/config"
	"market-compass-api/models"

	"gorm.io/gorm"
)

// SyncLogService appends audit log rows. Writes are best effort: a failed
// audit write is printed to the process log and never fails the sync that
// produced it.
type SyncLogService struct {
	db *gorm.DB
}

func NewSyncLogService(db *gorm.DB) *SyncLogService {
	if db == nil {
		db = config.DB
	}
	return &SyncLogService{db: db}
}

func (s *SyncLogService) Info(ctx context.Context, runID *uint64, domain, message string, details interface{}) {
	s.append(ctx, runID, domain, models.SyncLogLevelInfo, message, details)
}

func (s *SyncLogService) Warn(ctx context.Context, runID *uint64, domain, message string, details interface{}) {
	s.append(ctx, runID, domain, models.SyncLogLevelWarn, message, details)
}

func (s *SyncLogService) Error(ctx context.Context, runID *uint64, domain, message string, details interface{}) {
	s.append(ctx, runID, domain, models.SyncLogLevelError, message, details)
}

// Recent lists the newest log rows, optionally filtered by domain.
func (s *SyncLogService) Recent(ctx context.Context, domain string, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Model(&models.SyncLog{}).Order("id DESC").Limit(limit)
	if domain != "" {
		query = query.Where("domain = ?", domain)
	}
	var rows []models.SyncLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SyncLogService) append(ctx context.Context, runID *uint64, domain, level, message string, details interface{}) {
	var detailsJSON *string
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			str := string(b)
			detailsJSON = &str
		}
	}

	row := &models.SyncLog{
		RunID:   runID,
		Domain:  domain,
		Level:   level,
		Message: message,
		Details: detailsJSON,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		log.Printf("failed to write sync log for %s: %v", domain, err)
	}
}
