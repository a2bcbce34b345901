package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-compass-api/config"
	"market-compass-api/models"
	"market-compass-api/pkg/yahoo"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// stockSyncBatchSize bounds how many symbols get a fresh quote per run.
	stockSyncBatchSize = 20

	// enrichBatchSize bounds the best-effort sector/industry enrichment.
	enrichBatchSize = 10

	// priceStaleAfter is how old a stored price may get before the next run
	// refreshes it.
	priceStaleAfter = time.Hour
)

// quoteAPI is the slice of the Yahoo client the driver needs.
type quoteAPI interface {
	ResolveQuote(ctx context.Context, etoroSymbol string) (*yahoo.Quote, error)
	FetchProfile(ctx context.Context, symbol string) (sector, industry *string, err error)
}

// StockSyncService is the stock_data driver: refresh asset prices for every
// symbol referenced by trader portfolios, then best-effort sector/industry
// enrichment. An enrichment failure degrades the run (warn log, error
// datapoint) but does not fail it — partial success is a valid terminal
// state for this domain only.
type StockSyncService struct {
	db         *gorm.DB
	api        quoteAPI
	datapoints *DatapointService
	logs       *SyncLogService
	lock       *DomainLockService
}

func NewStockSyncService(db *gorm.DB, api quoteAPI) *StockSyncService {
	if db == nil {
		db = config.DB
	}
	if api == nil {
		api = yahoo.NewClient("", nil)
	}
	return &StockSyncService{
		db:         db,
		api:        api,
		datapoints: NewDatapointService(db),
		logs:       NewSyncLogService(db),
		lock:       NewDomainLockService(db),
	}
}

func (s *StockSyncService) Run(ctx context.Context, run *models.SyncRun, grant *LockGrant) (*DriverResult, error) {
	domain := models.SyncDomainStockData

	if err := s.registerPortfolioSymbols(ctx); err != nil {
		return nil, fmt.Errorf("register portfolio symbols: %w", err)
	}

	symbols, err := s.staleSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("find stale assets: %w", err)
	}

	s.reportStage(ctx, grant, "Refreshing prices", 0, len(symbols))

	synced, unresolved := 0, 0
	for i, symbol := range symbols {
		quote, err := s.api.ResolveQuote(ctx, symbol)
		if err != nil {
			if errors.Is(err, yahoo.ErrSymbolNotFound) {
				unresolved++
				continue
			}
			total := len(symbols)
			s.datapoint(ctx, run.ID, "sync_assets", "Refresh asset prices", synced, &total,
				models.DatapointStatusError, map[string]string{"error": err.Error()})
			return nil, fmt.Errorf("quote %s: %w", symbol, err)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"resolved_symbol":  quote.Symbol,
			"name":             quote.ShortName,
			"last_price":       quote.RegularPrice,
			"currency":         quote.Currency,
			"price_updated_at": now,
		}
		if err := s.db.WithContext(ctx).Model(&models.Asset{}).
			Where("symbol = ?", symbol).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update asset %s: %w", symbol, err)
		}
		synced++

		if (i+1)%5 == 0 {
			s.reportStage(ctx, grant, "Refreshing prices", i+1, len(symbols))
		}
	}

	total := len(symbols)
	s.datapoint(ctx, run.ID, "sync_assets", "Refresh asset prices", synced, &total,
		models.DatapointStatusCompleted, map[string]int{"unresolved": unresolved})

	// Enrichment is best effort: failures are recorded and skipped, prices
	// already synced still count as a successful run.
	s.reportStage(ctx, grant, "Enriching sectors", total, total)
	enriched, enrichErr := s.enrichSectors(ctx)
	if enrichErr != nil {
		s.logs.Warn(ctx, &run.ID, domain,
			fmt.Sprintf("Sector enrichment skipped: %v", enrichErr), nil)
		s.datapoint(ctx, run.ID, "enrich_sectors", "Sector enrichment", enriched, nil,
			models.DatapointStatusError, map[string]string{"error": enrichErr.Error()})
	} else {
		s.datapoint(ctx, run.ID, "enrich_sectors", "Sector enrichment", enriched, nil,
			models.DatapointStatusCompleted, nil)
	}

	s.reportStage(ctx, grant, "Done", total, total)

	summary := fmt.Sprintf("%d prices refreshed, %d unresolved, %d assets enriched", synced, unresolved, enriched)
	if enrichErr != nil {
		summary += " (enrichment degraded)"
	}
	return &DriverResult{Domain: domain, Summary: summary}, nil
}

// registerPortfolioSymbols makes sure every symbol held by any trader has an
// asset row to hang a price on.
func (s *StockSyncService) registerPortfolioSymbols(ctx context.Context) error {
	var symbols []string
	err := s.db.WithContext(ctx).Model(&models.TraderPortfolioItem{}).
		Distinct("symbol").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return err
	}

	for _, symbol := range symbols {
		asset := &models.Asset{Symbol: symbol}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
			Create(asset).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *StockSyncService) staleSymbols(ctx context.Context) ([]string, error) {
	cutoff := time.Now().Add(-priceStaleAfter)
	var symbols []string
	err := s.db.WithContext(ctx).Model(&models.Asset{}).
		Where("price_updated_at IS NULL OR price_updated_at < ?", cutoff).
		Order("price_updated_at ASC").
		Limit(stockSyncBatchSize).
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, err
	}
	return symbols, nil
}

func (s *StockSyncService) enrichSectors(ctx context.Context) (int, error) {
	var assets []models.Asset
	err := s.db.WithContext(ctx).
		Where("sector IS NULL AND resolved_symbol IS NOT NULL").
		Limit(enrichBatchSize).
		Find(&assets).Error
	if err != nil {
		return 0, err
	}

	enriched := 0
	for _, asset := range assets {
		sector, industry, err := s.api.FetchProfile(ctx, *asset.ResolvedSymbol)
		if err != nil {
			return enriched, err
		}
		if sector == nil && industry == nil {
			continue
		}
		if err := s.db.WithContext(ctx).Model(&models.Asset{}).
			Where("id = ?", asset.ID).
			Updates(map[string]interface{}{"sector": sector, "industry": industry}).Error; err != nil {
			return enriched, err
		}
		enriched++
	}
	return enriched, nil
}

func (s *StockSyncService) reportStage(ctx context.Context, grant *LockGrant, stage string, completed, total int) {
	if err := s.lock.UpdateProgress(ctx, grant, stage, completed, total, nil); err != nil {
		logSyncProgressError(models.SyncDomainStockData, err)
	}
}

func (s *StockSyncService) datapoint(ctx context.Context, runID uint64, key, label string, current int, total *int, status string, details interface{}) {
	if err := s.datapoints.Upsert(ctx, runID, models.SyncDomainStockData, key, label, current, total, status, details); err != nil {
		logSyncProgressError(models.SyncDomainStockData, err)
	}
}
