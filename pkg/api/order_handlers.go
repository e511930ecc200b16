package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fulfillment/pkg/models"
)

type transitionRequest struct {
	Status models.OrderStatus  `json:"status" binding:"required"`
	From   *models.OrderStatus `json:"from,omitempty"`
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, name, "must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *handler) createOrder(c *gin.Context) {
	var req models.CreateOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	order, err := h.svc.CreateOrder(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *handler) getOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handler) history(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	history, err := h.svc.History(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *handler) transition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status", err.Error())
		return
	}

	var (
		res *models.TransitionResult
		err error
	)
	if req.From != nil {
		res, err = h.svc.RequestTransitionFrom(c.Request.Context(), id, *req.From, req.Status, actorFrom(c))
	} else {
		res, err = h.svc.RequestTransition(c.Request.Context(), id, req.Status, actorFrom(c))
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
