// cmd/sync triggers a one-shot sync from the command line and waits for the
// runs to finish. Useful for operators and CI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"market-compass-api/config"
	"market-compass-api/models"
	"market-compass-api/services"

	"github.com/joho/godotenv"
)

func main() {
	domainsFlag := flag.String("domains", "", "comma-separated domains (default: all)")
	triggeredBy := flag.String("triggered-by", "cli", "trigger source recorded on the run")
	timeout := flag.Duration("timeout", 10*time.Minute, "how long to wait for runs to finish")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	config.InitDB()

	var domains []string
	for _, d := range strings.Split(*domainsFlag, ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}

	orchestrator := services.NewSyncOrchestrator(nil)
	orchestrator.Start(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	results := orchestrator.Trigger(ctx, domains, *triggeredBy)

	var runIDs []uint64
	failed := false
	for _, r := range results {
		fmt.Printf("%-18s %-8s %s\n", r.Domain, r.Status, r.Message)
		if r.RunID != nil {
			runIDs = append(runIDs, *r.RunID)
		}
		if r.Status == services.TriggerStatusError {
			failed = true
		}
	}

	if err := waitForRuns(ctx, runIDs); err != nil {
		log.Printf("wait for runs: %v", err)
		failed = true
	}
	orchestrator.Stop()

	if failed {
		os.Exit(1)
	}
}

func waitForRuns(ctx context.Context, runIDs []uint64) error {
	if len(runIDs) == 0 {
		return nil
	}
	runs := services.NewSyncRunService(nil)

	pending := make(map[uint64]struct{}, len(runIDs))
	for _, id := range runIDs {
		pending[id] = struct{}{}
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for id := range pending {
			run, err := runs.Get(ctx, id)
			if err != nil {
				return err
			}
			if run.Status == models.SyncRunStatusRunning {
				continue
			}
			msg := ""
			if run.ErrorMessage != nil {
				msg = ": " + *run.ErrorMessage
			}
			fmt.Printf("run %d (%s) finished %s%s\n", run.ID, run.Domain, run.Status, msg)
			delete(pending, id)
		}
	}
	return nil
}
