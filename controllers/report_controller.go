package controllers

import (
	"context"
	"log"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/audit-server/config"
	"github.com/vnkhanh/audit-server/models"
	"github.com/vnkhanh/audit-server/services"
	"github.com/vnkhanh/audit-server/utils"
)

type reportReq struct {
	Format string `json:"format" binding:"omitempty,oneof=csv xlsx"`
}

func reportService() *services.ReportService {
	cfg := config.Current
	var uploader services.Uploader
	if u := utils.NewSupabaseUploader(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket); u != nil {
		uploader = u
	}
	return services.NewReportService(config.DB, cfg.ReportDir, uploader)
}

// POST /api/templates/:id/reports
func CreateReport(c *gin.Context) {
	var req reportReq
	// body rỗng = csv
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	svc := reportService()
	job, err := svc.Queue(c.Request.Context(), c.Param("id"), req.Format)
	if err != nil {
		respondError(c, err)
		return
	}

	go processReportJob(svc, job.JobID)

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.JobID,
		"status": job.Status,
	})
}

// xử lý job báo cáo ở nền
func processReportJob(svc *services.ReportService, jobID string) {
	if err := svc.Process(context.Background(), jobID); err != nil {
		log.Printf("[report] job %s failed: %v", jobID, err)
	}
}

// GET /api/reports/:job_id
func GetReport(c *gin.Context) {
	job, err := reportService().Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if job.Status == models.ReportDone && job.PublicURL == nil && job.FilePath != nil {
		c.FileAttachment(*job.FilePath, filepath.Base(*job.FilePath))
		return
	}

	c.JSON(http.StatusOK, job)
}
