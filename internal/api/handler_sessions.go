package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"parking-gate-backend/internal/session"
)

// OpenSessions handles GET /api/v1/sessions/open?parkingLotId=.
func (h *Handler) OpenSessions(c *gin.Context) {
	lotID, ok := lotIDQuery(c)
	if !ok {
		return
	}
	views, err := h.sessions.OpenSessions(c.Request.Context(), lotID)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// SessionHistory handles GET /api/v1/sessions/history?parkingLotId=&date=YYYY-MM-DD.
func (h *Handler) SessionHistory(c *gin.Context) {
	lotID, ok := lotIDQuery(c)
	if !ok {
		return
	}
	views, err := h.sessions.History(c.Request.Context(), lotID, c.Query("date"))
	if err != nil {
		if errors.Is(err, session.ErrInvalidDate) {
			writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// CurrentSession handles GET /api/v1/parking-lots/:lotId/sessions/current/:plateNumber.
func (h *Handler) CurrentSession(c *gin.Context) {
	lotID, err := strconv.ParseInt(c.Param("lotId"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, "invalid parking lot id")
		return
	}

	view, err := h.sessions.Current(c.Request.Context(), lotID, c.Param("plateNumber"))
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			writeError(c, http.StatusNotFound, codeNotFound, err.Error())
			return
		}
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
