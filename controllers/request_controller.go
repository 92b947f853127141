package controllers

import (
	"net/http"

	"Gin_postgres_redis_supply_tool/models"
	"Gin_postgres_redis_supply_tool/requisition"

	"github.com/gin-gonic/gin"
)

// GET /api/requests?status=pending
func (s *Srv) ListRequests(c *gin.Context) {
	reqs, err := s.Engine.List(c.Request.Context(), actor(c), requisition.ListFilter{
		Status: models.Status(c.Query("status")),
	})
	if err != nil {
		fail(c, "ListRequests", err)
		return
	}
	okList(c, reqs)
}

// GET /api/requests/:id
func (s *Srv) GetRequest(c *gin.Context) {
	req, err := s.Engine.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, "GetRequest", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// POST /api/requests
// 两种形态：{item, quantity, unit} 或 {items: [...]}
func (s *Srv) CreateRequest(c *gin.Context) {
	var in requisition.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	req, err := s.Engine.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		fail(c, "CreateRequest", err)
		return
	}
	ok(c, http.StatusCreated, req)
}

// PUT /api/requests/:id
func (s *Srv) UpdateRequest(c *gin.Context) {
	var in requisition.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	req, err := s.Engine.Update(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		fail(c, "UpdateRequest", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// DELETE /api/requests/:id
func (s *Srv) DeleteRequest(c *gin.Context) {
	if err := s.Engine.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		fail(c, "DeleteRequest", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Request deleted successfully"})
}

type rejectBody struct {
	Reason string `json:"reason"`
}

// PUT /api/requests/:id/approve
func (s *Srv) ApproveRequest(c *gin.Context) {
	req, err := s.Engine.Approve(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, "ApproveRequest", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// PUT /api/requests/:id/reject
func (s *Srv) RejectRequest(c *gin.Context) {
	var body rejectBody
	// 空 body 也允许，原因缺失由 Engine 报错
	_ = c.ShouldBindJSON(&body)
	req, err := s.Engine.Reject(c.Request.Context(), actor(c), c.Param("id"), body.Reason)
	if err != nil {
		fail(c, "RejectRequest", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// PUT /api/requests/:id/items/:lineId/approve
func (s *Srv) ApproveRequestLine(c *gin.Context) {
	req, err := s.Engine.ApproveLine(c.Request.Context(), actor(c), c.Param("id"), c.Param("lineId"))
	if err != nil {
		fail(c, "ApproveRequestLine", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// PUT /api/requests/:id/items/:lineId/reject
func (s *Srv) RejectRequestLine(c *gin.Context) {
	var body rejectBody
	_ = c.ShouldBindJSON(&body)
	req, err := s.Engine.RejectLine(c.Request.Context(), actor(c), c.Param("id"), c.Param("lineId"), body.Reason)
	if err != nil {
		fail(c, "RejectRequestLine", err)
		return
	}
	ok(c, http.StatusOK, req)
}
