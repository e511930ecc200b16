package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fulfillment/pkg/models"
)

type stopRequest struct {
	Reason models.StopReason `json:"reason"`
}

func (h *handler) startSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sess, err := h.svc.StartSession(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *handler) stopSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	req := stopRequest{Reason: models.StopReason(c.Query("reason"))}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "reason", err.Error())
			return
		}
	}

	sess, err := h.svc.StopSession(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *handler) session(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sess, err := h.svc.Session(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *handler) reportSample(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var sample models.LocationSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	sample.OrderID = id

	if err := h.svc.ReportSample(c.Request.Context(), actorFrom(c), sample); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) latest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sample, err := h.svc.Latest(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sample)
}

// stream pushes samples as server-sent events. Samples accepted by this
// instance arrive through the subscription; the store is polled as well so
// samples written through another instance are not missed.
func (h *handler) stream(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	actor := actorFrom(c)

	samples, err := h.svc.Subscribe(ctx, actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	var last time.Time
	emit := func(s *models.LocationSample) {
		if s.SampledAt.After(last) {
			last = s.SampledAt
			c.SSEvent("location", s)
		}
	}
	if s, err := h.svc.Latest(ctx, actor, id); err == nil {
		emit(s)
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case s, ok := <-samples:
			if !ok {
				c.SSEvent("closed", gin.H{"order_id": id})
				return false
			}
			emit(&s)
			return true
		case <-ticker.C:
			if s, err := h.svc.Latest(ctx, actor, id); err == nil {
				emit(s)
			}
			if sess, err := h.svc.Session(ctx, actor, id); err == nil && !sess.Active {
				c.SSEvent("closed", sess)
				return false
			}
			return true
		}
	})
}
