package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parking-gate-backend/internal/decision"
)

type plateDetectedRequest struct {
	DeviceKey   string     `json:"deviceKey" binding:"required"`
	PlateNumber string     `json:"plateNumber" binding:"required"`
	CapturedAt  *time.Time `json:"capturedAt"`
}

// PlateDetected handles POST /api/v1/events/plate-detected.
func (h *Handler) PlateDetected(c *gin.Context) {
	var req plateDetectedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	capturedAt := time.Now().UTC()
	if req.CapturedAt != nil {
		capturedAt = *req.CapturedAt
	}

	out, err := h.engine.Decide(c.Request.Context(), decision.Detection{
		DeviceKey:   req.DeviceKey,
		PlateNumber: req.PlateNumber,
		CapturedAt:  capturedAt,
	})
	if err != nil {
		h.decisionError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
