package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"market-compass-api/models"
	"market-compass-api/services"

	"github.com/gin-gonic/gin"
)

type generateReportRequest struct {
	TraderID uint64 `json:"trader_id" binding:"required"`
}

// POST /api/v1/admin/reports/generate
func GenerateReport(c *gin.Context) {
	var req generateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "trader_id is required"})
		return
	}

	report, err := services.NewReportService(nil, nil).Generate(c.Request.Context(), req.TraderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "report": report})
}

// GET /api/v1/reports?status=pending_review&limit=50
func GetReports(c *gin.Context) {
	status := strings.TrimSpace(c.Query("status"))
	switch status {
	case "", models.ReportStatusPendingReview, models.ReportStatusApproved, models.ReportStatusRejected, models.ReportStatusDraft:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown status"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	reports, err := services.NewReportService(nil, nil).List(c.Request.Context(), status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reports": reports})
}

// GET /api/v1/reports/:id
func GetReport(c *gin.Context) {
	report, err := services.NewReportService(nil, nil).Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

type reviewReportRequest struct {
	Decision string `json:"decision" binding:"required"`
	Note     string `json:"note"`
}

// POST /api/v1/admin/reports/:id/review — Investment Committee action.
func ReviewReport(c *gin.Context) {
	var req reviewReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "decision is required"})
		return
	}

	reviewedBy := ""
	if email, ok := c.Get("email"); ok {
		reviewedBy, _ = email.(string)
	}

	report, err := services.NewReportService(nil, nil).
		Review(c.Request.Context(), c.Param("id"), reviewedBy, req.Decision, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrReportNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "report not found"})
		case errors.Is(err, services.ErrInvalidReviewAction):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}
