package services

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"
)

var (
	datapointSelectPattern = regexp.MustCompile("SELECT .* FROM `sync_datapoints`")
	datapointInsertPattern = regexp.MustCompile("INSERT INTO `sync_datapoints`")
	datapointUpdatePattern = regexp.MustCompile("UPDATE `sync_datapoints`")
)

var datapointColumns = []string{"id", "run_id", "domain", "datapoint_key", "datapoint_label", "value_current", "value_total", "status", "details", "updated_at"}

func TestUpsertCreatesNewDatapoint(t *testing.T) {
	steps := []*queryStep{
		{kind: kindQuery, pattern: datapointSelectPattern, columns: datapointColumns, rows: [][]driver.Value{}},
		{kind: kindExec, pattern: datapointInsertPattern, result: scriptedResult{lastInsertID: 1, rowsAffected: 1}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewDatapointService(db)
	total := 40
	err := svc.Upsert(context.Background(), 12, "discussion_feed", "write_posts", "Writing posts", 10, &total, "running", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestUpsertUpdatesExistingDatapointInPlace(t *testing.T) {
	// Same (run, key) written twice must land on the same row, not grow a
	// duplicate.
	total := 40
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: datapointSelectPattern,
			columns: datapointColumns,
			rows: [][]driver.Value{{
				int64(99), int64(12), "discussion_feed", "write_posts", "Writing posts",
				int64(10), int64(40), "running", nil, time.Now(),
			}},
		},
		{kind: kindExec, pattern: datapointUpdatePattern, result: scriptedResult{rowsAffected: 1}},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewDatapointService(db)
	err := svc.Upsert(context.Background(), 12, "discussion_feed", "write_posts", "Writing posts", 40, &total, "completed", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestUpsertRequiresRunAndKey(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()

	svc := NewDatapointService(db)
	if err := svc.Upsert(context.Background(), 0, "stock_data", "sync_assets", "", 0, nil, "pending", nil); err == nil {
		t.Fatalf("expected error for missing run id")
	}
	if err := svc.Upsert(context.Background(), 5, "stock_data", "", "", 0, nil, "pending", nil); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}
