package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-compass-api/config"
	"market-compass-api/models"
	"market-compass-api/pkg/bullaware"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// traderSyncBatchSize bounds how many queued profile refreshes one run
	// works through; the BullAware budget is ~10 requests/minute and each
	// job costs two (profile + portfolio).
	traderSyncBatchSize = 5

	// traderStaleAfter is how old a trader's last sync may get before a
	// refresh job is seeded automatically.
	traderStaleAfter = 24 * time.Hour
)

// investorAPI is the slice of the BullAware client the driver needs.
type investorAPI interface {
	GetInvestor(ctx context.Context, username string) (*bullaware.Investor, error)
	GetPortfolio(ctx context.Context, username string) ([]bullaware.PortfolioPosition, error)
}

// TraderSyncService is the trader_profiles driver. It gates on the shared
// BullAware rate budget, reports queue depth, then works through a bounded
// batch of queued profile-refresh jobs. A blocked budget is a normal outcome
// (rate_limited), not a failure.
type TraderSyncService struct {
	db         *gorm.DB
	api        investorAPI
	rate       *RateLimiterService
	datapoints *DatapointService
	logs       *SyncLogService
	lock       *DomainLockService
}

func NewTraderSyncService(db *gorm.DB, api investorAPI) *TraderSyncService {
	if db == nil {
		db = config.DB
	}
	if api == nil {
		api = bullaware.NewClient("", "", nil)
	}
	return &TraderSyncService{
		db:         db,
		api:        api,
		rate:       NewRateLimiterService(db),
		datapoints: NewDatapointService(db),
		logs:       NewSyncLogService(db),
		lock:       NewDomainLockService(db),
	}
}

type queueDepth struct {
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

func (s *TraderSyncService) Run(ctx context.Context, run *models.SyncRun, grant *LockGrant) (*DriverResult, error) {
	domain := models.SyncDomainTraderProfiles

	budget, err := s.rate.CheckAndReserve(ctx, models.RateLimitAPIBullAware)
	if err != nil {
		return nil, fmt.Errorf("check rate budget: %w", err)
	}
	if !budget.Allowed {
		eta := int(time.Until(budget.ResetAt).Seconds())
		if eta < 0 {
			eta = 0
		}
		s.datapoint(ctx, run.ID, "rate_limit", "BullAware budget", 0, &budget.Remaining,
			models.DatapointStatusRateLimited, map[string]interface{}{"reset_at": budget.ResetAt})
		if err := s.lock.UpdateProgress(ctx, grant, "Waiting for rate-limit window", 0, 0, &eta); err != nil {
			logSyncProgressError(domain, err)
		}
		return &DriverResult{
			Domain:      domain,
			RateLimited: true,
			Summary:     fmt.Sprintf("BullAware budget exhausted, window resets in %ds", eta),
		}, nil
	}

	depth, err := s.queueDepth(ctx)
	if err != nil {
		return nil, fmt.Errorf("read job queue: %w", err)
	}
	s.datapoint(ctx, run.ID, "queue_depth", "Job queue depth", int(depth.Pending), nil,
		models.DatapointStatusInfo, depth)

	seeded, err := s.seedStaleJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed refresh jobs: %w", err)
	}
	if seeded > 0 {
		s.datapoint(ctx, run.ID, "seed_jobs", "Seeded refresh jobs", seeded, nil, models.DatapointStatusInfo, nil)
	}

	s.reportStage(ctx, grant, "Processing refresh jobs", 0, traderSyncBatchSize)

	processed, failed := 0, 0
	for processed+failed < traderSyncBatchSize {
		// Re-check the shared budget before every job; other instances may
		// have spent it since the gate above.
		budget, err = s.rate.CheckAndReserve(ctx, models.RateLimitAPIBullAware)
		if err != nil {
			return nil, fmt.Errorf("check rate budget: %w", err)
		}
		if budget.Remaining < 2 {
			s.logs.Info(ctx, &run.ID, domain, "Stopping batch early: rate budget exhausted", nil)
			break
		}

		job, err := s.claimJob(ctx)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		if job == nil {
			break // queue drained
		}

		if err := s.processJob(ctx, job); err != nil {
			failed++
			s.failJob(ctx, job, err)
			s.logs.Error(ctx, &run.ID, domain,
				fmt.Sprintf("Profile refresh failed for trader %d: %v", job.TraderID, err), nil)
			continue
		}
		processed++
		s.reportStage(ctx, grant, "Processing refresh jobs", processed+failed, traderSyncBatchSize)
	}

	batch := traderSyncBatchSize
	s.datapoint(ctx, run.ID, "jobs_processed", "Jobs processed", processed, &batch,
		models.DatapointStatusCompleted, map[string]int{"failed": failed})
	s.reportStage(ctx, grant, "Done", processed+failed, traderSyncBatchSize)

	return &DriverResult{
		Domain:  domain,
		Summary: fmt.Sprintf("%d jobs processed, %d failed, %d seeded", processed, failed, seeded),
	}, nil
}

// processJob refreshes one trader from BullAware: profile, then portfolio.
func (s *TraderSyncService) processJob(ctx context.Context, job *models.SyncJob) error {
	var trader models.Trader
	if err := s.db.WithContext(ctx).Where("id = ?", job.TraderID).First(&trader).Error; err != nil {
		return fmt.Errorf("load trader %d: %w", job.TraderID, err)
	}

	investor, err := s.api.GetInvestor(ctx, trader.Username)
	s.recordRequest(ctx)
	if err != nil {
		return err
	}

	positions, err := s.api.GetPortfolio(ctx, trader.Username)
	s.recordRequest(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"display_name":         investor.DisplayName,
		"avatar_url":           investor.AvatarURL,
		"risk_score":           investor.RiskScore,
		"copiers":              investor.Copiers,
		"gain_ytd":             investor.GainYTD,
		"gain_12m":             investor.Gain12M,
		"win_ratio":            investor.WinRatio,
		"profitable_weeks_pct": investor.ProfitableWeeksPct,
		"last_synced_at":       now,
	}
	if err := s.db.WithContext(ctx).Model(&models.Trader{}).
		Where("id = ?", trader.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update trader %d: %w", trader.ID, err)
	}

	for _, pos := range positions {
		item := &models.TraderPortfolioItem{
			TraderID:    trader.ID,
			Symbol:      pos.Symbol,
			Direction:   pos.Direction,
			InvestedPct: pos.InvestedPct,
			AvgOpenRate: pos.AvgOpenRate,
			ProfitPct:   pos.ProfitPct,
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "trader_id"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"direction", "invested_pct", "avg_open_rate", "profit_pct",
			}),
		}).Create(item).Error
		if err != nil {
			return fmt.Errorf("upsert portfolio item %s: %w", pos.Symbol, err)
		}
	}

	return s.completeJob(ctx, job)
}

// claimJob takes the oldest pending job with a conditional update so two
// instances never work the same job. Returns nil when the queue is empty.
func (s *TraderSyncService) claimJob(ctx context.Context) (*models.SyncJob, error) {
	var job models.SyncJob
	err := s.db.WithContext(ctx).
		Where("status = ?", models.SyncJobStatusPending).
		Order("created_at ASC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ? AND status = ?", job.ID, models.SyncJobStatusPending).
		Updates(map[string]interface{}{
			"status":     models.SyncJobStatusInProgress,
			"started_at": now,
			"attempts":   gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Another instance won the claim; skip this round.
		return nil, nil
	}
	return &job, nil
}

func (s *TraderSyncService) completeJob(ctx context.Context, job *models.SyncJob) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":      models.SyncJobStatusCompleted,
			"finished_at": now,
		}).Error
}

func (s *TraderSyncService) failJob(ctx context.Context, job *models.SyncJob, cause error) {
	now := time.Now()
	msg := truncateError(cause.Error())
	if err := s.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":        models.SyncJobStatusFailed,
			"finished_at":   now,
			"error_message": msg,
		}).Error; err != nil {
		logSyncProgressError(models.SyncDomainTraderProfiles, err)
	}
}

// seedStaleJobs queues a refresh for traders not synced within
// traderStaleAfter that have no pending or in-progress job already.
func (s *TraderSyncService) seedStaleJobs(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-traderStaleAfter)

	var traderIDs []uint64
	err := s.db.WithContext(ctx).Model(&models.Trader{}).
		Where("last_synced_at IS NULL OR last_synced_at < ?", cutoff).
		Where("id NOT IN (?)", s.db.Model(&models.SyncJob{}).
			Select("trader_id").
			Where("status IN ?", []string{models.SyncJobStatusPending, models.SyncJobStatusInProgress})).
		Order("last_synced_at ASC").
		Limit(50).
		Pluck("id", &traderIDs).Error
	if err != nil {
		return 0, err
	}

	for _, id := range traderIDs {
		job := &models.SyncJob{
			TraderID: id,
			JobType:  models.SyncJobTypeProfileRefresh,
			Status:   models.SyncJobStatusPending,
		}
		if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
			return 0, err
		}
	}
	return len(traderIDs), nil
}

func (s *TraderSyncService) queueDepth(ctx context.Context) (*queueDepth, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.SyncJob{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	depth := &queueDepth{}
	for _, r := range rows {
		switch r.Status {
		case models.SyncJobStatusPending:
			depth.Pending = r.N
		case models.SyncJobStatusInProgress:
			depth.InProgress = r.N
		case models.SyncJobStatusCompleted:
			depth.Completed = r.N
		case models.SyncJobStatusFailed:
			depth.Failed = r.N
		}
	}
	return depth, nil
}

func (s *TraderSyncService) recordRequest(ctx context.Context) {
	if err := s.rate.Record(ctx, models.RateLimitAPIBullAware, 1); err != nil {
		logSyncProgressError(models.SyncDomainTraderProfiles, err)
	}
}

func (s *TraderSyncService) reportStage(ctx context.Context, grant *LockGrant, stage string, completed, total int) {
	if err := s.lock.UpdateProgress(ctx, grant, stage, completed, total, nil); err != nil {
		logSyncProgressError(models.SyncDomainTraderProfiles, err)
	}
}

func (s *TraderSyncService) datapoint(ctx context.Context, runID uint64, key, label string, current int, total *int, status string, details interface{}) {
	if err := s.datapoints.Upsert(ctx, runID, models.SyncDomainTraderProfiles, key, label, current, total, status, details); err != nil {
		logSyncProgressError(models.SyncDomainTraderProfiles, err)
	}
}
