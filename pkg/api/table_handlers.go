package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fulfillment/pkg/models"
)

type createTableRequest struct {
	Number     int                `json:"number" binding:"required"`
	Chairs     int                `json:"chairs" binding:"required"`
	BaseStatus models.TableStatus `json:"base_status"`
}

type tableStatusRequest struct {
	BaseStatus models.TableStatus `json:"base_status" binding:"required"`
}

func (h *handler) listTables(c *gin.Context) {
	rid, ok := pathID(c, "id")
	if !ok {
		return
	}
	views, err := h.svc.ListTables(c.Request.Context(), actorFrom(c), rid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *handler) createTable(c *gin.Context) {
	rid, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req createTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	view, err := h.svc.CreateTable(c.Request.Context(), actorFrom(c), models.Table{
		RestaurantID: rid,
		Number:       req.Number,
		Chairs:       req.Chairs,
		BaseStatus:   req.BaseStatus,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *handler) setTableStatus(c *gin.Context) {
	rid, ok := pathID(c, "id")
	if !ok {
		return
	}
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		badRequest(c, "number", "must be an integer")
		return
	}
	var req tableStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "base_status", err.Error())
		return
	}

	view, err := h.svc.SetTableStatus(c.Request.Context(), actorFrom(c), rid, number, req.BaseStatus)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
