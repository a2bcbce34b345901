package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"market-compass-api/config"
	"market-compass-api/models"
	"market-compass-api/services"

	"github.com/gin-gonic/gin"
)

// orchestrator is the process-wide sync entry point, wired in from main so
// the worker pool lifecycle belongs to the server, not to a request.
var orchestrator *services.SyncOrchestrator

// InitSync installs the started orchestrator for the sync handlers.
func InitSync(o *services.SyncOrchestrator) {
	orchestrator = o
}

type triggerSyncRequest struct {
	Domains     []string `json:"domains"`
	TriggeredBy string   `json:"triggered_by"`
}

// POST /api/v1/admin/sync/trigger
func TriggerSync(c *gin.Context) {
	if orchestrator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "sync orchestrator not running"})
		return
	}

	var req triggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if req.TriggeredBy == "" {
		if email, ok := c.Get("email"); ok {
			req.TriggeredBy, _ = email.(string)
		}
	}

	results := orchestrator.Trigger(c.Request.Context(), req.Domains, req.TriggeredBy)

	success := true
	for _, r := range results {
		if r.Status == services.TriggerStatusError {
			success = false
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": success, "results": results})
}

type clearStaleLocksRequest struct {
	Domains   []string `json:"domains"`
	ClearedBy string   `json:"cleared_by"`
}

// POST /api/v1/admin/sync/clear-stale-locks
func ClearStaleLocks(c *gin.Context) {
	if orchestrator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "sync orchestrator not running"})
		return
	}

	var req clearStaleLocksRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if req.ClearedBy == "" {
		if email, ok := c.Get("email"); ok {
			req.ClearedBy, _ = email.(string)
		}
	}

	results, err := orchestrator.ClearStaleLocks(c.Request.Context(), req.Domains, req.ClearedBy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	cleared := make([]services.ClearResult, 0)
	skipped := make([]services.ClearResult, 0)
	for _, r := range results {
		if r.Cleared {
			cleared = append(cleared, r)
		} else {
			skipped = append(skipped, r)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"cleared":     cleared,
		"skipped":     skipped,
		"ttl_minutes": services.ClearStaleTTL.Minutes(),
	})
}

// GET /api/v1/sync/status
func GetSyncStatus(c *gin.Context) {
	var statuses []models.SyncDomainStatus
	if err := config.DB.WithContext(c.Request.Context()).
		Order("domain ASC").Find(&statuses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "domains": statuses})
}

// GET /api/v1/sync/runs?domain=stock_data&limit=20
func GetSyncRuns(c *gin.Context) {
	domain := strings.TrimSpace(c.Query("domain"))
	if domain != "" && !models.IsValidSyncDomain(domain) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown domain"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	runs, err := services.NewSyncRunService(nil).Recent(c.Request.Context(), domain, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "runs": runs})
}

// GET /api/v1/sync/runs/:id
func GetSyncRun(c *gin.Context) {
	runID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || runID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid run id"})
		return
	}

	run, err := services.NewSyncRunService(nil).Get(c.Request.Context(), runID)
	if err != nil {
		if err == services.ErrSyncRunNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	datapoints, err := services.NewDatapointService(nil).ListForRun(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "run": run, "datapoints": datapoints})
}

// GET /api/v1/sync/logs?domain=trader_profiles&limit=50
func GetSyncLogs(c *gin.Context) {
	domain := strings.TrimSpace(c.Query("domain"))
	if domain != "" && !models.IsValidSyncDomain(domain) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown domain"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	logs, err := services.NewSyncLogService(nil).Recent(c.Request.Context(), domain, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs})
}

// GET /api/v1/admin/sync/jobs?status=pending
func GetSyncJobs(c *gin.Context) {
	query := config.DB.WithContext(c.Request.Context()).Model(&models.SyncJob{}).
		Order("created_at DESC").Limit(100)
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}

	var jobs []models.SyncJob
	if err := query.Find(&jobs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "jobs": jobs})
}
