package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"market-compass-api/config"
	"market-compass-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DriverResult is what a domain driver hands back to the orchestrator on a
// non-failed run.
type DriverResult struct {
	Domain      string
	Summary     string
	RateLimited bool
}

// TriggerResult is the per-domain outcome of one trigger request.
type TriggerResult struct {
	Domain  string  `json:"domain"`
	Status  string  `json:"status"` // started | blocked | error
	Message string  `json:"message"`
	RunID   *uint64 `json:"run_id,omitempty"`
}

const (
	TriggerStatusStarted = "started"
	TriggerStatusBlocked = "blocked"
	TriggerStatusError   = "error"
)

type syncTask struct {
	run   *models.SyncRun
	grant *LockGrant
}

// SyncOrchestrator is the sync entry point. Trigger acquires the domain
// lock, records a run, and enqueues the work onto an explicit worker pool —
// not a dangling goroutine — so the background lifecycle can be started and
// stopped with the process. The HTTP response returns as soon as all
// requested domains are enqueued or rejected.
type SyncOrchestrator struct {
	db       *gorm.DB
	lock     *DomainLockService
	runs     *SyncRunService
	logs     *SyncLogService
	feed     *FeedSyncService
	traders  *TraderSyncService
	stocks   *StockSyncService
	holderID string

	tasks  chan syncTask
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewSyncOrchestrator(db *gorm.DB) *SyncOrchestrator {
	if db == nil {
		db = config.DB
	}
	return &SyncOrchestrator{
		db:       db,
		lock:     NewDomainLockService(db),
		runs:     NewSyncRunService(db),
		logs:     NewSyncLogService(db),
		feed:     NewFeedSyncService(db, nil),
		traders:  NewTraderSyncService(db, nil),
		stocks:   NewStockSyncService(db, nil),
		holderID: "api-" + uuid.NewString()[:8],
	}
}

// HolderID identifies this process instance in lock rows.
func (o *SyncOrchestrator) HolderID() string { return o.holderID }

// Start launches the background workers. Must be called once before Trigger.
func (o *SyncOrchestrator) Start(workers int) {
	o.once.Do(func() {
		if workers <= 0 {
			workers = len(models.AllSyncDomains)
		}
		o.ctx, o.cancel = context.WithCancel(context.Background())
		o.tasks = make(chan syncTask, 2*len(models.AllSyncDomains))
		for i := 0; i < workers; i++ {
			o.wg.Add(1)
			go o.worker()
		}
	})
}

// Stop cancels in-flight drivers and waits for the workers to drain.
func (o *SyncOrchestrator) Stop() {
	if o.cancel == nil {
		return
	}
	o.cancel()
	close(o.tasks)
	o.wg.Wait()
}

// Trigger processes each requested domain sequentially: lock, run record,
// enqueue. One domain's lock contention never blocks the others.
func (o *SyncOrchestrator) Trigger(ctx context.Context, domains []string, triggeredBy string) []TriggerResult {
	if len(domains) == 0 {
		domains = models.AllSyncDomains
	}
	triggeredBy = strings.TrimSpace(triggeredBy)
	if triggeredBy == "" {
		triggeredBy = "manual"
	}

	results := make([]TriggerResult, 0, len(domains))
	for _, domain := range domains {
		results = append(results, o.triggerDomain(ctx, domain, triggeredBy))
	}
	return results
}

func (o *SyncOrchestrator) triggerDomain(ctx context.Context, domain, triggeredBy string) TriggerResult {
	result := TriggerResult{Domain: domain}

	grant, err := o.lock.Acquire(ctx, domain, o.holderID)
	if err != nil {
		if errors.Is(err, ErrUnknownSyncDomain) {
			result.Status = TriggerStatusError
			result.Message = fmt.Sprintf("Unknown domain %q", domain)
			return result
		}
		if errors.Is(err, ErrSyncLockHeld) {
			result.Status = TriggerStatusBlocked
			result.Message = o.blockedMessage(ctx, domain)
			return result
		}
		result.Status = TriggerStatusError
		result.Message = fmt.Sprintf("Lock acquisition failed: %v", err)
		return result
	}

	run, err := o.runs.Start(ctx, domain, triggeredBy)
	if err != nil {
		// Could not open the ledger entry: give the lock back as errored so
		// the next trigger can retry.
		if relErr := o.lock.Release(ctx, grant, models.SyncStatusError, err.Error()); relErr != nil {
			log.Printf("failed to release %s lock after run-create error: %v", domain, relErr)
		}
		result.Status = TriggerStatusError
		result.Message = fmt.Sprintf("Failed to create run record: %v", err)
		return result
	}

	if o.tasks == nil {
		// Orchestrator not started: undo, surface as an infrastructure error.
		o.abandonRun(ctx, run, grant, "sync workers not running")
		result.Status = TriggerStatusError
		result.Message = "Sync workers are not running"
		return result
	}

	select {
	case o.tasks <- syncTask{run: run, grant: grant}:
		result.Status = TriggerStatusStarted
		result.Message = "Sync started"
		result.RunID = &run.ID
	default:
		o.abandonRun(ctx, run, grant, "sync queue full")
		result.Status = TriggerStatusError
		result.Message = "Sync queue is full, try again shortly"
	}
	return result
}

// ClearStaleLocks runs the operator lock-clear for the given domains (all
// when empty).
func (o *SyncOrchestrator) ClearStaleLocks(ctx context.Context, domains []string, clearedBy string) ([]ClearResult, error) {
	if len(domains) == 0 {
		domains = models.AllSyncDomains
	}
	if clearedBy == "" {
		clearedBy = "operator"
	}

	results := make([]ClearResult, 0, len(domains))
	for _, domain := range domains {
		res, err := o.lock.ClearStale(ctx, domain, clearedBy)
		if err != nil {
			if errors.Is(err, ErrUnknownSyncDomain) {
				results = append(results, ClearResult{Domain: domain, Reason: "Unknown domain."})
				continue
			}
			return nil, err
		}
		results = append(results, *res)
	}
	return results, nil
}

func (o *SyncOrchestrator) worker() {
	defer o.wg.Done()
	for task := range o.tasks {
		o.runTask(task)
	}
}

// runTask is the background continuation: drive, then record the terminal
// state on the ledger and the lock no matter what the driver did.
func (o *SyncOrchestrator) runTask(task syncTask) {
	ctx := o.ctx
	domain := task.run.Domain

	// Terminal-state writes must land even when Stop cancels the worker
	// context mid-run.
	done := persistentContext(ctx)

	if err := o.lock.MarkRunning(ctx, task.grant, task.run.ID); err != nil {
		// Lock stolen between enqueue and pickup; the run never really
		// started.
		o.completeRun(done, task.run, models.SyncRunStatusFailed, "lock lost before start: "+err.Error())
		return
	}

	result, err := o.drive(ctx, task)
	switch {
	case err != nil:
		o.completeRun(done, task.run, models.SyncRunStatusFailed, err.Error())
		o.releaseLock(done, task.grant, models.SyncStatusError, err.Error())
		o.logs.Error(done, &task.run.ID, domain, fmt.Sprintf("Sync failed: %v", err), nil)
		o.alertFailure(domain, task.run.ID, err)
	case result != nil && result.RateLimited:
		o.completeRun(done, task.run, models.SyncRunStatusCompleted, "")
		o.releaseLock(done, task.grant, models.SyncStatusRateLimited, "")
		o.logs.Info(done, &task.run.ID, domain, result.Summary, nil)
	default:
		o.completeRun(done, task.run, models.SyncRunStatusCompleted, "")
		o.releaseLock(done, task.grant, models.SyncStatusIdle, "")
		if result != nil && result.Summary != "" {
			o.logs.Info(done, &task.run.ID, domain, result.Summary, nil)
		}
	}
}

// drive dispatches to the domain driver, converting panics into run
// failures so one bad driver cannot take a worker down.
func (o *SyncOrchestrator) drive(ctx context.Context, task syncTask) (result *DriverResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("driver panic: %v", r)
		}
	}()

	switch task.run.Domain {
	case models.SyncDomainDiscussionFeed:
		return o.feed.Run(ctx, task.run, task.grant)
	case models.SyncDomainTraderProfiles:
		return o.traders.Run(ctx, task.run, task.grant)
	case models.SyncDomainStockData:
		return o.stocks.Run(ctx, task.run, task.grant)
	default:
		return nil, fmt.Errorf("no driver for domain %q", task.run.Domain)
	}
}

func (o *SyncOrchestrator) blockedMessage(ctx context.Context, domain string) string {
	status, err := o.lock.GetStatus(ctx, domain)
	if err != nil {
		return "Sync is locked by another instance"
	}
	if status.LockHolder != nil {
		return fmt.Sprintf("Sync already %s (started by %s)", status.Status, *status.LockHolder)
	}
	return fmt.Sprintf("Sync is %s and cannot be restarted yet", status.Status)
}

func (o *SyncOrchestrator) abandonRun(ctx context.Context, run *models.SyncRun, grant *LockGrant, reason string) {
	o.completeRun(ctx, run, models.SyncRunStatusFailed, reason)
	o.releaseLock(ctx, grant, models.SyncStatusError, reason)
}

func (o *SyncOrchestrator) completeRun(ctx context.Context, run *models.SyncRun, status, errMsg string) {
	if err := o.runs.Complete(ctx, run.ID, status, errMsg); err != nil {
		log.Printf("failed to complete sync run %d: %v", run.ID, err)
	}
}

func (o *SyncOrchestrator) releaseLock(ctx context.Context, grant *LockGrant, finalStatus, errMsg string) {
	if err := o.lock.Release(ctx, grant, finalStatus, errMsg); err != nil {
		log.Printf("failed to release %s lock: %v", grant.Domain, err)
	}
}

// alertFailure emails the operator address, when configured. Best effort.
func (o *SyncOrchestrator) alertFailure(domain string, runID uint64, cause error) {
	to := strings.TrimSpace(os.Getenv("SYNC_ALERT_EMAIL"))
	if to == "" {
		return
	}
	subject := fmt.Sprintf("[market-compass] %s sync failed (run %d)", domain, runID)
	body := fmt.Sprintf("<p>Sync run <b>%d</b> for domain <b>%s</b> failed:</p><pre>%s</pre>", runID, domain, cause)
	if err := config.SendMail([]string{to}, subject, body); err != nil {
		log.Printf("failed to send sync failure alert: %v", err)
	}
}

// logSyncProgressError is shared by the drivers for non-fatal bookkeeping
// failures (progress writes, datapoints, rate records).
func logSyncProgressError(domain string, err error) {
	log.Printf("sync progress write failed for %s: %v", domain, err)
}
