package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hirelens/hirelens/internal/services"
	"github.com/hirelens/hirelens/internal/utils"
)

type ScreeningHandler struct {
	svc services.ScreeningService
}

func NewScreeningHandler(svc services.ScreeningService) *ScreeningHandler {
	return &ScreeningHandler{svc: svc}
}

type triggerRequest struct {
	ApplicationID uint   `json:"application_id" binding:"required"`
	ResumePath    string `json:"resume_path"`
	Priority      int    `json:"priority"`
}

func (h *ScreeningHandler) Trigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ScreeningHandler.Trigger", "invalid request body", err))
		return
	}

	row, err := h.svc.Trigger(c.Request.Context(), req.ApplicationID, req.ResumePath, req.Priority)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, row)
}

type triggerBulkRequest struct {
	JobPostingID uint `json:"job_posting_id" binding:"required"`
	Priority     int  `json:"priority"`
}

func (h *ScreeningHandler) TriggerBulk(c *gin.Context) {
	var req triggerBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ScreeningHandler.TriggerBulk", "invalid request body", err))
		return
	}

	count, err := h.svc.TriggerBulk(c.Request.Context(), req.JobPostingID, req.Priority)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"triggered": count})
}

func (h *ScreeningHandler) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	row, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *ScreeningHandler) GetByApplication(c *gin.Context) {
	id, ok := uintParam(c, "application_id")
	if !ok {
		return
	}
	row, err := h.svc.GetByApplication(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *ScreeningHandler) ListByJobPosting(c *gin.Context) {
	id, ok := uintParam(c, "job_posting_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, total, err := h.svc.ListByJobPosting(c.Request.Context(), id, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": rows, "total": total})
}

func (h *ScreeningHandler) Retry(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	force := c.Query("force") == "true"

	row, err := h.svc.Retry(c.Request.Context(), id, force)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, row)
}

func (h *ScreeningHandler) Cancel(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (h *ScreeningHandler) ReprocessJobPosting(c *gin.Context) {
	id, ok := uintParam(c, "job_posting_id")
	if !ok {
		return
	}
	count, err := h.svc.ReprocessJobPosting(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"reprocessed": count})
}

func (h *ScreeningHandler) BestMatchingChunks(c *gin.Context) {
	appID, ok := uintParam(c, "application_id")
	if !ok {
		return
	}
	postingID, ok := uintParam(c, "job_posting_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "3"))

	res, err := h.svc.BestMatchingChunks(c.Request.Context(), appID, postingID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ScreeningHandler) QueueStatus(c *gin.Context) {
	stats, err := h.svc.QueueStatus(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queues": stats})
}

func (h *ScreeningHandler) RefreshSkillCache(c *gin.Context) {
	skills, aliases, err := h.svc.RefreshSkillCache(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"skills": skills, "aliases": aliases})
}
