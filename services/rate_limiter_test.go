package services

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"market-compass-api/models"
)

var (
	rateSelectPattern = regexp.MustCompile("SELECT .* FROM `rate_limit_states`")
	rateUpdatePattern = regexp.MustCompile("UPDATE `rate_limit_states`")
	rateInsertPattern = regexp.MustCompile("INSERT INTO `rate_limit_states`")
)

func rateRow(requests, max int, startedAt time.Time) []driver.Value {
	return []driver.Value{models.RateLimitAPIBullAware, int64(requests), int64(max), startedAt}
}

var rateColumns = []string{"api_key", "requests_this_minute", "max_per_minute", "minute_started_at"}

func TestCheckAndReserveMissingRowAllowsFullBudget(t *testing.T) {
	t.Setenv("BULLAWARE_MAX_PER_MINUTE", "")
	steps := []*queryStep{
		{kind: kindQuery, pattern: rateSelectPattern, columns: rateColumns, rows: [][]driver.Value{}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewRateLimiterService(db)
	budget, err := svc.CheckAndReserve(context.Background(), models.RateLimitAPIBullAware)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !budget.Allowed || budget.Remaining != 10 {
		t.Fatalf("expected full default budget, got %#v", budget)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestCheckAndReserveDeniesExhaustedWindow(t *testing.T) {
	startedAt := time.Now().Add(-10 * time.Second)
	steps := []*queryStep{
		{kind: kindQuery, pattern: rateSelectPattern, columns: rateColumns, rows: [][]driver.Value{rateRow(10, 10, startedAt)}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewRateLimiterService(db)
	budget, err := svc.CheckAndReserve(context.Background(), models.RateLimitAPIBullAware)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if budget.Allowed || budget.Remaining != 0 {
		t.Fatalf("expected exhausted window to deny, got %#v", budget)
	}
	wantReset := startedAt.Add(time.Minute)
	if budget.ResetAt.Sub(wantReset) > time.Second || wantReset.Sub(budget.ResetAt) > time.Second {
		t.Fatalf("expected reset at window end, got %v want %v", budget.ResetAt, wantReset)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestCheckAndReserveResetsStaleWindow(t *testing.T) {
	startedAt := time.Now().Add(-2 * time.Minute)
	steps := []*queryStep{
		{kind: kindQuery, pattern: rateSelectPattern, columns: rateColumns, rows: [][]driver.Value{rateRow(10, 10, startedAt)}},
		{kind: kindExec, pattern: rateUpdatePattern, result: scriptedResult{rowsAffected: 1}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewRateLimiterService(db)
	budget, err := svc.CheckAndReserve(context.Background(), models.RateLimitAPIBullAware)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !budget.Allowed || budget.Remaining != 10 {
		t.Fatalf("expected fresh window after reset, got %#v", budget)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestCheckAndReserveReportsPartialBudget(t *testing.T) {
	steps := []*queryStep{
		{kind: kindQuery, pattern: rateSelectPattern, columns: rateColumns, rows: [][]driver.Value{rateRow(7, 10, time.Now().Add(-5 * time.Second))}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewRateLimiterService(db)
	budget, err := svc.CheckAndReserve(context.Background(), models.RateLimitAPIBullAware)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !budget.Allowed || budget.Remaining != 3 {
		t.Fatalf("expected 3 remaining, got %#v", budget)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestRecordIncrementsActiveWindow(t *testing.T) {
	steps := []*queryStep{
		{kind: kindExec, pattern: rateUpdatePattern, result: scriptedResult{rowsAffected: 1}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewRateLimiterService(db)
	if err := svc.Record(context.Background(), models.RateLimitAPIBullAware, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestRecordStartsFreshWindowWhenStale(t *testing.T) {
	t.Setenv("BULLAWARE_MAX_PER_MINUTE", "")
	steps := []*queryStep{
		{kind: kindExec, pattern: rateUpdatePattern, result: scriptedResult{}},
		{kind: kindExec, pattern: rateInsertPattern, result: scriptedResult{rowsAffected: 1}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewRateLimiterService(db)
	if err := svc.Record(context.Background(), models.RateLimitAPIBullAware, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestRecordIgnoresZeroRequests(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()

	svc := NewRateLimiterService(db)
	if err := svc.Record(context.Background(), models.RateLimitAPIBullAware, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}
