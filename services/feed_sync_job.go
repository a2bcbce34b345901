package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"market-compass-api/config"
	"market-compass-api/models"
	"market-compass-api/pkg/firecrawl"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultFeedURL = "https://www.etoro.com/discover/markets/feeds"

// feedScraper is the slice of the Firecrawl client the driver needs.
type feedScraper interface {
	Scrape(ctx context.Context, pageURL string) (string, error)
}

// FeedSyncService is the discussion_feed driver: scrape the eToro feed page,
// parse posts out of the HTML, write them with source-hash dedup. Linear
// fetch-transform-write; any step error propagates to the orchestrator.
type FeedSyncService struct {
	db         *gorm.DB
	scraper    feedScraper
	datapoints *DatapointService
	lock       *DomainLockService
	feedURL    string
}

func NewFeedSyncService(db *gorm.DB, scraper feedScraper) *FeedSyncService {
	if db == nil {
		db = config.DB
	}
	if scraper == nil {
		scraper = firecrawl.NewClient("", "", nil)
	}
	feedURL := strings.TrimSpace(os.Getenv("ETORO_FEED_URL"))
	if feedURL == "" {
		feedURL = defaultFeedURL
	}
	return &FeedSyncService{
		db:         db,
		scraper:    scraper,
		datapoints: NewDatapointService(db),
		lock:       NewDomainLockService(db),
		feedURL:    feedURL,
	}
}

func (s *FeedSyncService) Run(ctx context.Context, run *models.SyncRun, grant *LockGrant) (*DriverResult, error) {
	domain := models.SyncDomainDiscussionFeed

	s.reportStage(ctx, grant, "Scraping discussion feed", 0, 0)
	s.datapoint(ctx, run.ID, "fetch_etoro", "Scrape feed page", 0, nil, models.DatapointStatusRunning, nil)

	html, err := s.scraper.Scrape(ctx, s.feedURL)
	if err != nil {
		s.datapoint(ctx, run.ID, "fetch_etoro", "Scrape feed page", 0, nil, models.DatapointStatusError,
			map[string]string{"error": err.Error()})
		return nil, fmt.Errorf("scrape feed: %w", err)
	}
	s.datapoint(ctx, run.ID, "fetch_etoro", "Scrape feed page", 1, nil, models.DatapointStatusCompleted, nil)

	posts, err := firecrawl.ParseFeed(html, time.Now())
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	s.datapoint(ctx, run.ID, "parse_posts", "Parse posts", len(posts), nil, models.DatapointStatusCompleted, nil)

	s.reportStage(ctx, grant, "Writing posts", 0, len(posts))

	written, deduplicated := 0, 0
	for i, post := range posts {
		row := &models.Post{
			SourceHash: post.SourceHash,
			Author:     post.Author,
			Content:    post.Content,
			PostedAt:   post.PostedAt,
		}
		if len(post.Symbols) > 0 {
			symbols := strings.Join(post.Symbols, ",")
			row.Symbols = &symbols
		}

		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
		if res.Error != nil {
			return nil, fmt.Errorf("write post: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			deduplicated++
		} else {
			written++
		}

		// Progress at coarse steps, not per row.
		if (i+1)%20 == 0 {
			s.reportStage(ctx, grant, "Writing posts", i+1, len(posts))
		}
	}

	total := len(posts)
	s.datapoint(ctx, run.ID, "write_posts", "Write posts", written, &total, models.DatapointStatusCompleted, nil)
	s.datapoint(ctx, run.ID, "dedup_posts", "Skipped duplicates", deduplicated, &total, models.DatapointStatusInfo, nil)
	s.reportStage(ctx, grant, "Done", total, total)

	return &DriverResult{
		Summary: fmt.Sprintf("%d posts scraped, %d written, %d duplicates skipped", total, written, deduplicated),
		Domain:  domain,
	}, nil
}

func (s *FeedSyncService) reportStage(ctx context.Context, grant *LockGrant, stage string, completed, total int) {
	if err := s.lock.UpdateProgress(ctx, grant, stage, completed, total, nil); err != nil {
		// A stolen lock does not stop the driver; the run record still gets
		// its terminal state.
		logSyncProgressError(models.SyncDomainDiscussionFeed, err)
	}
}

func (s *FeedSyncService) datapoint(ctx context.Context, runID uint64, key, label string, current int, total *int, status string, details interface{}) {
	if err := s.datapoints.Upsert(ctx, runID, models.SyncDomainDiscussionFeed, key, label, current, total, status, details); err != nil {
		logSyncProgressError(models.SyncDomainDiscussionFeed, err)
	}
}
