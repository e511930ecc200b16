package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
)

type errorResponse struct {
	Error         string             `json:"error"`
	Message       string             `json:"message"`
	Field         string             `json:"field,omitempty"`
	CurrentStatus models.OrderStatus `json:"current_status,omitempty"`
}

// writeError maps the engine's error kinds onto HTTP statuses. StaleState
// carries the order's authoritative status so the client can re-render.
func (h *handler) writeError(c *gin.Context, err error) {
	resp := errorResponse{Message: err.Error()}
	status := http.StatusInternalServerError

	var (
		stale *models.StaleStateError
		verr  *models.ValidationError
	)
	switch {
	case errors.As(err, &stale):
		status, resp.Error, resp.CurrentStatus = http.StatusConflict, "stale_state", stale.Current
	case errors.As(err, &verr):
		status, resp.Error, resp.Field = http.StatusBadRequest, "validation_error", verr.Field
	case errors.Is(err, models.ErrInvalidTransition):
		status, resp.Error = http.StatusConflict, "invalid_transition"
	case errors.Is(err, models.ErrUnauthorized):
		status, resp.Error = http.StatusForbidden, "unauthorized"
	case errors.Is(err, models.ErrSessionConflict):
		status, resp.Error = http.StatusConflict, "session_conflict"
	case errors.Is(err, models.ErrNoActiveSession):
		status, resp.Error = http.StatusConflict, "no_active_session"
	case errors.Is(err, models.ErrNoSample):
		status, resp.Error = http.StatusNotFound, "no_sample"
	case errors.Is(err, models.ErrNotFound):
		status, resp.Error = http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		status, resp.Error = http.StatusServiceUnavailable, "storage_unavailable"
		resp.Message = "storage unavailable, retry later"
	default:
		resp.Error = "internal"
		resp.Message = "internal error"
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("request error",
			logger.String("request_id", c.GetString(keyRequestID)),
			logger.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, field, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "validation_error", Field: field, Message: message})
}
