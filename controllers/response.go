package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/audit-server/models"
	"github.com/vnkhanh/audit-server/services"
)

// respondError map lỗi của services sang HTTP status.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Template không tồn tại"})
	case errors.Is(err, services.ErrInspectionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Inspection không tồn tại"})
	case errors.Is(err, services.ErrReportNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Job không tìm thấy"})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Người dùng không tồn tại"})
	case errors.Is(err, services.ErrInvalidDefinition),
		errors.Is(err, services.ErrInvalidAnswer),
		errors.Is(err, services.ErrInvalidReport):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Dữ liệu không hợp lệ", "error": err.Error()})
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrInspectionLocked),
		errors.Is(err, services.ErrTemplateInUse):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	default:
		log.Printf("[api] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Lỗi hệ thống"})
	}
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"message": "Payload không hợp lệ", "error": err.Error()})
}

// templateView thêm creator rút gọn và số inspection vào template.
type templateView struct {
	models.Template
	Creator         *models.UserSummary `json:"creator"`
	InspectionCount *int64              `json:"inspection_count,omitempty"`
}

func newTemplateView(t *models.Template) templateView {
	return templateView{Template: *t, Creator: t.Creator.Summary()}
}

type templateRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// inspectionView: Template là templateRef khi liệt kê, cây đầy đủ khi xem chi tiết.
type inspectionView struct {
	models.Inspection
	Template  interface{}         `json:"template"`
	Conductor *models.UserSummary `json:"conductor"`
}

func newInspectionView(ins *models.Inspection, full bool) inspectionView {
	v := inspectionView{Inspection: *ins, Conductor: ins.Conductor.Summary()}
	switch {
	case ins.Template == nil:
	case full:
		v.Template = newTemplateView(ins.Template)
	default:
		v.Template = templateRef{ID: ins.Template.ID, Title: ins.Template.Title}
	}
	return v
}
