package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lookout-dev/lookout/internal/engine"
	"github.com/lookout-dev/lookout/internal/models"
)

// StatusUpdateRequest is the per-(monitor, region, tick) report posted by the
// probe layer. CronTimestamp is the tick's epoch milliseconds.
type StatusUpdateRequest struct {
	MonitorID     uint   `json:"monitor_id" binding:"required"`
	Region        string `json:"region" binding:"required"`
	Status        string `json:"status" binding:"required"`
	StatusCode    int    `json:"status_code"`
	Message       string `json:"message"`
	CronTimestamp int64  `json:"cron_timestamp" binding:"required"`
	LatencyMs     int64  `json:"latency_ms"`
}

type StatusUpdateHandler struct {
	engine *engine.Engine
}

func NewStatusUpdateHandler(e *engine.Engine) *StatusUpdateHandler {
	return &StatusUpdateHandler{engine: e}
}

func (h *StatusUpdateHandler) UpdateStatus(ctx *gin.Context) {
	var req StatusUpdateRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	switch req.Status {
	case models.MonitorStatusActive, models.MonitorStatusDegraded, models.MonitorStatusError:
	default:
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "status must be active, degraded or error"})
		return
	}

	err := h.engine.UpdateStatus(ctx.Request.Context(), engine.StatusUpdate{
		MonitorID:     req.MonitorID,
		Region:        req.Region,
		Status:        req.Status,
		StatusCode:    req.StatusCode,
		Message:       req.Message,
		CronTimestamp: req.CronTimestamp,
		LatencyMs:     req.LatencyMs,
	})

	if err != nil {
		log.Printf("Status update failed for monitor %d region %s: %v", req.MonitorID, req.Region, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process status update"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Status update processed"})
}
