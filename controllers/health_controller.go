package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/audit-server/config"
	"github.com/vnkhanh/audit-server/models"
)

// GET /health: ping DB và đếm nhanh dữ liệu chính
func HealthCheck(c *gin.Context) {
	if config.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": "not connected"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := config.DB.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "db": "cannot get DB instance"})
		return
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": "cannot connect to DB"})
		return
	}

	var templates, inspections int64
	db := config.DB.WithContext(ctx)
	db.Model(&models.Template{}).Where("is_archived = ?", false).Count(&templates)
	db.Model(&models.Inspection{}).Count(&inspections)

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"db":          config.DB.Dialector.Name(),
		"templates":   templates,
		"inspections": inspections,
	})
}
