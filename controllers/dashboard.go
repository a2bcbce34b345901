package controllers

import (
	"net/http"

	"market-compass-api/config"
	"market-compass-api/models"
	"market-compass-api/services"

	"github.com/gin-gonic/gin"
)

// GET /api/v1/dashboard — summary counters and recent sync activity for the
// landing page.
func GetDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	db := config.DB.WithContext(ctx)

	var traderCount, postCount, assetCount, pendingReports int64
	if err := db.Model(&models.Trader{}).Count(&traderCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err := db.Model(&models.Post{}).Count(&postCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err := db.Model(&models.Asset{}).Count(&assetCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err := db.Model(&models.AnalysisReport{}).
		Where("status = ?", models.ReportStatusPendingReview).
		Count(&pendingReports).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	var domains []models.SyncDomainStatus
	if err := db.Order("domain ASC").Find(&domains).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	runs, err := services.NewSyncRunService(nil).Recent(ctx, "", 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"counts": gin.H{
			"traders":         traderCount,
			"posts":           postCount,
			"assets":          assetCount,
			"pending_reports": pendingReports,
		},
		"sync_domains": domains,
		"recent_runs":  runs,
	})
}
