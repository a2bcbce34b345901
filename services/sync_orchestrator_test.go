package services

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"
)

func TestTriggerReportsBlockedDomainWithHolder(t *testing.T) {
	acquiredAt := time.Now().Add(-1 * time.Minute)
	steps := []*queryStep{
		{kind: kindExec, pattern: statusInsertPattern, result: scriptedResult{}},
		{kind: kindExec, pattern: statusUpdatePattern, result: scriptedResult{}},
		{
			kind:    kindQuery,
			pattern: statusSelectPattern,
			columns: []string{"domain", "status", "lock_holder", "lock_acquired_at", "lock_token"},
			rows:    [][]driver.Value{{"discussion_feed", "running", "api-two", acquiredAt, int64(4)}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	o := NewSyncOrchestrator(db)
	results := o.Trigger(context.Background(), []string{"discussion_feed"}, "manual")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Status != TriggerStatusBlocked {
		t.Fatalf("expected blocked, got %#v", results[0])
	}
	if !strings.Contains(results[0].Message, "api-two") {
		t.Fatalf("expected blocked message to name the holder, got %q", results[0].Message)
	}
	if results[0].RunID != nil {
		t.Fatalf("blocked trigger must not create a run")
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestTriggerRejectsUnknownDomainWithoutTouchingOthers(t *testing.T) {
	// One bad domain in the request must not fail the whole trigger.
	steps := []*queryStep{
		{kind: kindExec, pattern: statusInsertPattern, result: scriptedResult{}},
		{kind: kindExec, pattern: statusUpdatePattern, result: scriptedResult{}},
		{
			kind:    kindQuery,
			pattern: statusSelectPattern,
			columns: []string{"domain", "status", "lock_holder", "lock_acquired_at", "lock_token"},
			rows:    [][]driver.Value{{"stock_data", "running", "api-two", time.Now(), int64(4)}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	o := NewSyncOrchestrator(db)
	results := o.Trigger(context.Background(), []string{"crypto_feed", "stock_data"}, "manual")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != TriggerStatusError {
		t.Fatalf("expected error for unknown domain, got %#v", results[0])
	}
	if results[1].Status != TriggerStatusBlocked {
		t.Fatalf("expected blocked for held domain, got %#v", results[1])
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestTriggerWithoutWorkersAbandonsRun(t *testing.T) {
	// Acquire and run creation succeed, but with no worker pool the run must
	// be closed out as failed and the lock put back to error.
	steps := []*queryStep{
		{kind: kindExec, pattern: statusInsertPattern, result: scriptedResult{}},
		{kind: kindExec, pattern: statusUpdatePattern, result: scriptedResult{rowsAffected: 1}},
		{
			kind:    kindQuery,
			pattern: statusSelectPattern,
			columns: []string{"domain", "status", "lock_holder", "lock_acquired_at", "lock_token"},
			rows:    [][]driver.Value{{"discussion_feed", "queued", "api-one", time.Now(), int64(9)}},
		},
		{kind: kindExec, pattern: syncRunInsertPattern, result: scriptedResult{lastInsertID: 7, rowsAffected: 1}},
		{kind: kindExec, pattern: syncRunUpdatePattern, result: scriptedResult{rowsAffected: 1}},
		{kind: kindExec, pattern: statusUpdatePattern, result: scriptedResult{rowsAffected: 1}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	o := NewSyncOrchestrator(db)
	results := o.Trigger(context.Background(), []string{"discussion_feed"}, "manual")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Status != TriggerStatusError {
		t.Fatalf("expected error without workers, got %#v", results[0])
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}
