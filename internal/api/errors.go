package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"parking-gate-backend/internal/decision"
	"parking-gate-backend/internal/mw"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeBadRequest = "BAD_REQUEST"
	codeDuplicate  = "DUPLICATE"
	codeNotFound   = "NOT_FOUND"
	codeInternal   = "INTERNAL_ERROR"
)

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Message: message})
}

// internalError logs err with the request id and hides it from the caller.
func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.Printf("request %s %s %s failed: %v", mw.GetRequestID(c), c.Request.Method, c.FullPath(), err)
	writeError(c, http.StatusInternalServerError, codeInternal, "internal server error")
}

// decisionStatus maps a decision error kind to its HTTP status.
func decisionStatus(kind decision.Kind) int {
	switch kind {
	case decision.KindNotFound:
		return http.StatusNotFound
	case decision.KindInvalidDirection, decision.KindInvalidInput:
		return http.StatusBadRequest
	case decision.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) decisionError(c *gin.Context, err error) {
	kind := decision.KindOf(err)
	if kind == "" {
		h.internalError(c, err)
		return
	}

	status := decisionStatus(kind)
	message := err.Error()
	var de *decision.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	if status >= http.StatusInternalServerError {
		h.logger.Printf("request %s: detection failed: %v", mw.GetRequestID(c), err)
	}
	if decision.IsRetryable(err) {
		c.Header("Retry-After", "1")
	}
	writeError(c, status, string(kind), message)
}
