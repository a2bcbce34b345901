package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"market-compass-api/config"
	"market-compass-api/models"
	"market-compass-api/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GET /api/v1/traders?sort=copiers&limit=50
func GetTraders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	order := "copiers DESC"
	switch c.Query("sort") {
	case "gain_ytd":
		order = "gain_ytd DESC"
	case "gain_12m":
		order = "gain_12m DESC"
	case "risk":
		order = "risk_score ASC"
	case "username":
		order = "username ASC"
	}

	var traders []models.Trader
	if err := config.DB.WithContext(c.Request.Context()).
		Order(order).Limit(limit).Find(&traders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "traders": traders})
}

// GET /api/v1/traders/:id
func GetTrader(c *gin.Context) {
	trader, ok := loadTrader(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "trader": trader})
}

// GET /api/v1/traders/:id/portfolio
func GetTraderPortfolio(c *gin.Context) {
	trader, ok := loadTrader(c)
	if !ok {
		return
	}

	var items []models.TraderPortfolioItem
	if err := config.DB.WithContext(c.Request.Context()).
		Where("trader_id = ?", trader.ID).
		Order("invested_pct DESC").
		Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "portfolio": items})
}

// GET /api/v1/traders/:id/posts
func GetTraderPosts(c *gin.Context) {
	trader, ok := loadTrader(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var posts []models.Post
	if err := config.DB.WithContext(c.Request.Context()).
		Where("author = ?", trader.Username).
		Order("scraped_at DESC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": posts})
}

type createTraderRequest struct {
	Username string `json:"username" binding:"required"`
}

// POST /api/v1/admin/traders — register a trader to track; the next
// trader_profiles sync fills the profile in.
func CreateTrader(c *gin.Context) {
	var req createTraderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "username is required"})
		return
	}

	username := strings.TrimSpace(strings.TrimPrefix(req.Username, "@"))
	if !utils.ValidateUsername(username) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid username"})
		return
	}

	trader := &models.Trader{Username: username}
	if err := config.DB.WithContext(c.Request.Context()).Create(trader).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "trader already tracked"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	// Queue the first profile refresh right away.
	job := &models.SyncJob{
		TraderID: trader.ID,
		JobType:  models.SyncJobTypeProfileRefresh,
		Status:   models.SyncJobStatusPending,
	}
	if err := config.DB.WithContext(c.Request.Context()).Create(job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "trader": trader})
}

func loadTrader(c *gin.Context) (*models.Trader, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid trader id"})
		return nil, false
	}

	var trader models.Trader
	if err := config.DB.WithContext(c.Request.Context()).
		Where("id = ?", id).First(&trader).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "trader not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return nil, false
	}
	return &trader, true
}
