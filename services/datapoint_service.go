package services

import (
	"context"
	"encoding/json"
	"errors"

	"market-compass-api/config"
	"market-compass-api/models"

	"gorm.io/gorm"
)

// DatapointService upserts per-run progress counters. Identity is
// (run_id, datapoint_key); the lookup-then-write is not atomic, which is
// acceptable because each key is written by exactly one driver invocation.
type DatapointService struct {
	db *gorm.DB
}

func NewDatapointService(db *gorm.DB) *DatapointService {
	if db == nil {
		db = config.DB
	}
	return &DatapointService{db: db}
}

// Upsert creates or updates the datapoint for (runID, key). details may be
// any JSON-marshalable value or nil.
func (s *DatapointService) Upsert(ctx context.Context, runID uint64, domain, key, label string, current int, total *int, status string, details interface{}) error {
	if runID == 0 {
		return errors.New("run id is required")
	}
	if key == "" {
		return errors.New("datapoint key is required")
	}

	var detailsJSON *string
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		str := string(b)
		detailsJSON = &str
	}

	var existing models.SyncDatapoint
	err := s.db.WithContext(ctx).
		Where("run_id = ? AND datapoint_key = ?", runID, key).
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		row := &models.SyncDatapoint{
			RunID:          runID,
			Domain:         domain,
			DatapointKey:   key,
			DatapointLabel: label,
			ValueCurrent:   current,
			ValueTotal:     total,
			Status:         status,
			Details:        detailsJSON,
		}
		return s.db.WithContext(ctx).Create(row).Error
	}

	return s.db.WithContext(ctx).Model(&models.SyncDatapoint{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"datapoint_label": label,
			"value_current":   current,
			"value_total":     total,
			"status":          status,
			"details":         detailsJSON,
		}).Error
}

// ListForRun returns all datapoints of one run in insertion order.
func (s *DatapointService) ListForRun(ctx context.Context, runID uint64) ([]models.SyncDatapoint, error) {
	var rows []models.SyncDatapoint
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
