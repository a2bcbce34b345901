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

type fakeCompleter struct {
	lastSystem string
	lastUser   string
	response   string
	err        error
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	return f.response, f.err
}

var (
	reportInsertPattern = regexp.MustCompile("INSERT INTO `analysis_reports`")
	reportUpdatePattern = regexp.MustCompile("UPDATE `analysis_reports`")
	reportSelectPattern = regexp.MustCompile("SELECT .* FROM `analysis_reports`")
)

func TestGenerateStoresCleanedPendingReport(t *testing.T) {
	display := "Jeppe"
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `traders`"),
			columns: []string{"id", "username", "display_name", "created_at", "updated_at"},
			rows:    [][]driver.Value{{int64(3), "jeppekirkbonde", display, time.Now(), time.Now()}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `trader_portfolio_items`"),
			columns: []string{"id", "trader_id", "symbol", "direction", "invested_pct", "updated_at"},
			rows:    [][]driver.Value{{int64(1), int64(3), "NVDA", "BUY", 22.5, time.Now()}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `posts`"),
			columns: []string{"id", "source_hash", "author", "content"},
			rows:    [][]driver.Value{},
		},
		{kind: kindExec, pattern: reportInsertPattern, result: scriptedResult{rowsAffected: 1}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	llm := &fakeCompleter{response: "```markdown\n# Analysis: Jeppe\n\nDisciplined, concentrated tech book.\n```"}
	svc := NewReportService(db, llm)

	report, err := svc.Generate(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != models.ReportStatusPendingReview {
		t.Fatalf("expected pending_review, got %q", report.Status)
	}
	if report.Title != "Analysis: Jeppe" {
		t.Fatalf("unexpected title: %q", report.Title)
	}
	if report.Content != "Disciplined, concentrated tech book." {
		t.Fatalf("expected cleaned content, got %q", report.Content)
	}
	if report.ID == "" {
		t.Fatalf("expected generated report id")
	}
	if !strings.Contains(llm.lastUser, "NVDA") || !strings.Contains(llm.lastUser, "jeppekirkbonde") {
		t.Fatalf("prompt must carry trader and portfolio data, got %q", llm.lastUser)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestReviewApprovesPendingReport(t *testing.T) {
	steps := []*queryStep{
		{kind: kindExec, pattern: reportUpdatePattern, result: scriptedResult{rowsAffected: 1}},
		{
			kind:    kindQuery,
			pattern: reportSelectPattern,
			columns: []string{"id", "trader_id", "title", "status"},
			rows:    [][]driver.Value{{"r-1", int64(3), "Analysis: Jeppe", "approved"}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewReportService(db, &fakeCompleter{})
	report, err := svc.Review(context.Background(), "r-1", "ic-chair", models.ReportDecisionApprove, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != models.ReportStatusApproved {
		t.Fatalf("expected approved, got %q", report.Status)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestReviewRejectsInvalidTransition(t *testing.T) {
	// An approved report cannot be rejected.
	steps := []*queryStep{
		{kind: kindExec, pattern: reportUpdatePattern, result: scriptedResult{}},
		{kind: kindQuery, pattern: regexp.MustCompile("SELECT count"), columns: []string{"count"}, rows: [][]driver.Value{{int64(1)}}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewReportService(db, &fakeCompleter{})
	if _, err := svc.Review(context.Background(), "r-1", "ic-chair", models.ReportDecisionReject, ""); !errors.Is(err, ErrInvalidReviewAction) {
		t.Fatalf("expected ErrInvalidReviewAction, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestReviewMissingReport(t *testing.T) {
	steps := []*queryStep{
		{kind: kindExec, pattern: reportUpdatePattern, result: scriptedResult{}},
		{kind: kindQuery, pattern: regexp.MustCompile("SELECT count"), columns: []string{"count"}, rows: [][]driver.Value{{int64(0)}}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewReportService(db, &fakeCompleter{})
	if _, err := svc.Review(context.Background(), "gone", "ic-chair", models.ReportDecisionApprove, ""); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestReviewUnknownDecision(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()

	svc := NewReportService(db, &fakeCompleter{})
	if _, err := svc.Review(context.Background(), "r-1", "ic-chair", "escalate", ""); !errors.Is(err, ErrInvalidReviewAction) {
		t.Fatalf("expected ErrInvalidReviewAction, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}
