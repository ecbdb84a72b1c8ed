package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/audit-server/config"
	"github.com/vnkhanh/audit-server/controllers"
	"github.com/vnkhanh/audit-server/middleware"
	"github.com/vnkhanh/audit-server/models"
)

// SetupRoutes đăng ký toàn bộ API; ctx giới hạn vòng đời các goroutine nền của middleware.
func SetupRoutes(ctx context.Context, r *gin.Engine, cfg config.Config) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/health", controllers.HealthCheck)

	// giới hạn các route ghi tốn kém (tạo / nhân bản cả cây template)
	writeLimit := middleware.RateLimitByIP(middleware.NewIPRateLimiter(ctx, cfg.RateLimitPerMin, cfg.RateLimitBurst, 5*time.Minute))

	api := r.Group("/api")
	api.Use(middleware.AuthJWT())
	{
		api.GET("/me", controllers.Me)

		templates := api.Group("/templates")
		{
			templates.POST("", writeLimit, controllers.CreateTemplate)
			templates.GET("", controllers.ListTemplates)
			templates.GET("/:id", controllers.GetTemplate)
			templates.PATCH("/:id", controllers.UpdateTemplate)
			templates.DELETE("/:id", controllers.DeleteTemplate)
			templates.POST("/:id/duplicate", writeLimit, controllers.DuplicateTemplate)
			templates.PATCH("/:id/archive", controllers.ArchiveTemplate)
			templates.PATCH("/:id/restore", controllers.RestoreTemplate)
			templates.POST("/:id/reports", controllers.CreateReport)
		}

		api.GET("/reports/:job_id", controllers.GetReport)

		inspections := api.Group("/inspections")
		{
			inspections.GET("", controllers.ListInspections)
			inspections.POST("", controllers.CreateInspection)
			inspections.GET("/:id", controllers.GetInspection)
			inspections.PUT("/:id/answers", controllers.SubmitAnswers)
			inspections.PATCH("/:id/status", controllers.UpdateInspectionStatus)
			inspections.GET("/:id/score", controllers.GetInspectionScore)
			inspections.DELETE("/:id", middleware.RequireRole(models.RoleAdmin), controllers.DeleteInspection)
		}
	}
}
