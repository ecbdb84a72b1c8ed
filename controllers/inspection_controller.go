package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/audit-server/config"
	"github.com/vnkhanh/audit-server/middleware"
	"github.com/vnkhanh/audit-server/services"
)

type createInspectionReq struct {
	TemplateID string `json:"template_id" binding:"required"`
	Title      string `json:"title"`
}

type submitAnswersReq struct {
	Answers []services.AnswerInput `json:"answers" binding:"required,min=1,dive"`
}

type statusReq struct {
	Status string `json:"status" binding:"required,oneof=DRAFT IN_PROGRESS COMPLETED ARCHIVED"`
}

// POST /api/inspections: người thực hiện là người gọi
func CreateInspection(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)

	var req createInspectionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ins, err := services.NewInspectionService(config.DB).Create(c.Request.Context(), req.TemplateID, u.ID, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newInspectionView(ins, false))
}

// GET /api/inspections: mới nhất trước
func ListInspections(c *gin.Context) {
	rows, err := services.NewInspectionService(config.DB).List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]inspectionView, 0, len(rows))
	for i := range rows {
		out = append(out, newInspectionView(&rows[i], false))
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/inspections/:id
func GetInspection(c *gin.Context) {
	ins, err := services.NewInspectionService(config.DB).Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInspectionView(ins, true))
}

// PUT /api/inspections/:id/answers
func SubmitAnswers(c *gin.Context) {
	var req submitAnswersReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ins, err := services.NewInspectionService(config.DB).SubmitAnswers(c.Request.Context(), c.Param("id"), req.Answers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInspectionView(ins, true))
}

// PATCH /api/inspections/:id/status
func UpdateInspectionStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ins, err := services.NewInspectionService(config.DB).Transition(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInspectionView(ins, false))
}

// GET /api/inspections/:id/score
func GetInspectionScore(c *gin.Context) {
	res, err := services.NewInspectionService(config.DB).Score(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DELETE /api/inspections/:id (admin)
func DeleteInspection(c *gin.Context) {
	if err := services.NewInspectionService(config.DB).Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
