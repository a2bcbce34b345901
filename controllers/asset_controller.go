package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"market-compass-api/config"
	"market-compass-api/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GET /api/v1/assets?sector=Technology&limit=100
func GetAssets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := config.DB.WithContext(c.Request.Context()).Model(&models.Asset{}).
		Order("symbol ASC").Limit(limit)
	if sector := strings.TrimSpace(c.Query("sector")); sector != "" {
		query = query.Where("sector = ?", sector)
	}

	var assets []models.Asset
	if err := query.Find(&assets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "assets": assets})
}

// GET /api/v1/assets/:symbol
func GetAsset(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing symbol"})
		return
	}

	var asset models.Asset
	if err := config.DB.WithContext(c.Request.Context()).
		Where("symbol = ?", symbol).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	// Which tracked traders hold it, by stake.
	var holders []models.TraderPortfolioItem
	if err := config.DB.WithContext(c.Request.Context()).
		Where("symbol = ?", symbol).
		Order("invested_pct DESC").
		Limit(20).
		Find(&holders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "asset": asset, "holders": holders})
}

// GET /api/v1/posts?symbol=AAPL&limit=50
func GetPosts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := config.DB.WithContext(c.Request.Context()).Model(&models.Post{}).
		Order("scraped_at DESC").Limit(limit)
	if symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol"))); symbol != "" {
		query = query.Where("symbols LIKE ?", "%"+symbol+"%")
	}

	var posts []models.Post
	if err := query.Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": posts})
}
