package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"market-compass-api/models"
)

type fakeScraper struct {
	html string
	err  error
}

func (f *fakeScraper) Scrape(context.Context, string) (string, error) {
	return f.html, f.err
}

const feedFixtureHTML = `
<div data-etoro-automation-id="post">
  <span data-etoro-automation-id="post-username">TraderOne</span>
  <div data-etoro-automation-id="post-content">Adding $NVDA on weakness</div>
</div>
<div data-etoro-automation-id="post">
  <span data-etoro-automation-id="post-username">TraderTwo</span>
  <div data-etoro-automation-id="post-content">Rotating into energy</div>
</div>`

var postInsertPattern = regexp.MustCompile("INSERT INTO `posts`")

func TestFeedSyncWritesAndDeduplicatesPosts(t *testing.T) {
	steps := []*queryStep{
		// stage: scraping
		{kind: kindExec, pattern: statusUpdatePattern, result: scriptedResult{rowsAffected: 1}},
		// datapoint fetch_etoro running (create)
		{kind: kindQuery, pattern: datapointSelectPattern, columns: datapointColumns, rows: [][]driver.Value{}},
		{kind: kindExec, pattern: datapointInsertPattern, result: scriptedResult{lastInsertID: 1, rowsAffected: 1}},
		// datapoint fetch_etoro completed (update in place)
		{
			kind: kindQuery, pattern: datapointSelectPattern, columns: datapointColumns,
			rows: [][]driver.Value{{int64(1), int64(5), "discussion_feed", "fetch_etoro", "Scrape feed page", int64(0), nil, "running", nil, time.Now()}},
		},
		{kind: kindExec, pattern: datapointUpdatePattern, result: scriptedResult{rowsAffected: 1}},
		// datapoint parse_posts
		{kind: kindQuery, pattern: datapointSelectPattern, columns: datapointColumns, rows: [][]driver.Value{}},
		{kind: kindExec, pattern: datapointInsertPattern, result: scriptedResult{lastInsertID: 2, rowsAffected: 1}},
		// stage: writing posts
		{kind: kindExec, pattern: statusUpdatePattern, result: scriptedResult{rowsAffected: 1}},
		// first post inserts, second is a source-hash duplicate
		{kind: kindExec, pattern: postInsertPattern, result: scriptedResult{lastInsertID: 10, rowsAffected: 1}},
		{kind: kindExec, pattern: postInsertPattern, result: scriptedResult{}},
		// datapoints write_posts + dedup_posts
		{kind: kindQuery, pattern: datapointSelectPattern, columns: datapointColumns, rows: [][]driver.Value{}},
		{kind: kindExec, pattern: datapointInsertPattern, result: scriptedResult{lastInsertID: 3, rowsAffected: 1}},
		{kind: kindQuery, pattern: datapointSelectPattern, columns: datapointColumns, rows: [][]driver.Value{}},
		{kind: kindExec, pattern: datapointInsertPattern, result: scriptedResult{lastInsertID: 4, rowsAffected: 1}},
		// stage: done
		{kind: kindExec, pattern: statusUpdatePattern, result: scriptedResult{rowsAffected: 1}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewFeedSyncService(db, &fakeScraper{html: feedFixtureHTML})
	run := &models.SyncRun{ID: 5, Domain: models.SyncDomainDiscussionFeed}
	grant := &LockGrant{Domain: models.SyncDomainDiscussionFeed, HolderID: "api-one", Token: 1}

	result, err := svc.Run(context.Background(), run, grant)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RateLimited {
		t.Fatalf("feed sync never rate limits")
	}
	if !strings.Contains(result.Summary, "1 written") || !strings.Contains(result.Summary, "1 duplicates") {
		t.Fatalf("unexpected summary: %q", result.Summary)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestFeedSyncPropagatesScrapeFailure(t *testing.T) {
	steps := []*queryStep{
		{kind: kindExec, pattern: statusUpdatePattern, result: scriptedResult{rowsAffected: 1}},
		// datapoint fetch_etoro running
		{kind: kindQuery, pattern: datapointSelectPattern, columns: datapointColumns, rows: [][]driver.Value{}},
		{kind: kindExec, pattern: datapointInsertPattern, result: scriptedResult{lastInsertID: 1, rowsAffected: 1}},
		// datapoint fetch_etoro error
		{
			kind: kindQuery, pattern: datapointSelectPattern, columns: datapointColumns,
			rows: [][]driver.Value{{int64(1), int64(5), "discussion_feed", "fetch_etoro", "Scrape feed page", int64(0), nil, "running", nil, time.Now()}},
		},
		{kind: kindExec, pattern: datapointUpdatePattern, result: scriptedResult{rowsAffected: 1}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	scrapeErr := errors.New("firecrawl unavailable")
	svc := NewFeedSyncService(db, &fakeScraper{err: scrapeErr})
	run := &models.SyncRun{ID: 5, Domain: models.SyncDomainDiscussionFeed}
	grant := &LockGrant{Domain: models.SyncDomainDiscussionFeed, HolderID: "api-one", Token: 1}

	if _, err := svc.Run(context.Background(), run, grant); !errors.Is(err, scrapeErr) {
		t.Fatalf("expected scrape error to propagate, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}
