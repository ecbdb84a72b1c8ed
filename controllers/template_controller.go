package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/audit-server/config"
	"github.com/vnkhanh/audit-server/middleware"
	"github.com/vnkhanh/audit-server/services"
)

/* ========== Template: tạo / xem / sửa ========== */

// POST /api/templates
func CreateTemplate(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)

	var def services.TemplateDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		bindError(c, err)
		return
	}

	t, err := services.NewTemplateService(config.DB).Create(c.Request.Context(), def, u.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTemplateView(t))
}

// GET /api/templates?include_archived=true&creator_id=...
func ListTemplates(c *gin.Context) {
	filter := services.TemplateFilter{CreatorID: c.Query("creator_id")}
	if raw := c.Query("include_archived"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "include_archived không hợp lệ"})
			return
		}
		filter.IncludeArchived = v
	}

	items, err := services.NewTemplateService(config.DB).List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]templateView, 0, len(items))
	for i := range items {
		v := newTemplateView(&items[i].Template)
		count := items[i].InspectionCount
		v.InspectionCount = &count
		out = append(out, v)
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/templates/:id
func GetTemplate(c *gin.Context) {
	t, err := services.NewTemplateService(config.DB).Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTemplateView(t))
}

// PATCH /api/templates/:id: chỉ các trường cấp template
func UpdateTemplate(c *gin.Context) {
	var patch services.TemplatePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}

	t, err := services.NewTemplateService(config.DB).Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTemplateView(t))
}

/* ========== Template: nhân bản / lưu trữ / xoá ========== */

// POST /api/templates/:id/duplicate: bản sao thuộc về người gọi
func DuplicateTemplate(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)

	t, err := services.NewTemplateService(config.DB).Duplicate(c.Request.Context(), c.Param("id"), u.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTemplateView(t))
}

// PATCH /api/templates/:id/archive
func ArchiveTemplate(c *gin.Context) {
	t, err := services.NewTemplateService(config.DB).Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "archived", "id": t.ID, "is_archived": t.IsArchived})
}

// PATCH /api/templates/:id/restore
func RestoreTemplate(c *gin.Context) {
	t, err := services.NewTemplateService(config.DB).Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "restored", "id": t.ID, "is_archived": t.IsArchived})
}

// DELETE /api/templates/:id: xoá cứng cả cây; bị chặn nếu còn inspection
func DeleteTemplate(c *gin.Context) {
	if err := services.NewTemplateService(config.DB).Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
