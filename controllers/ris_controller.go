package controllers

import (
	"net/http"

	"Gin_postgres_redis_supply_tool/ris"

	"github.com/gin-gonic/gin"
)

// POST /api/ris/generate/:requestId
func (s *Srv) GenerateRIS(c *gin.Context) {
	doc, err := s.RIS.Generate(c.Request.Context(), actor(c), c.Param("requestId"))
	if err != nil {
		fail(c, "GenerateRIS", err)
		return
	}
	c.Header("X-RIS-Number", doc.Numbers[0])
	sendFile(c, doc.Filename, doc.Bytes)
}

type batchBody struct {
	RequestIDs []string `json:"requestIds" binding:"required"`
}

// POST /api/ris/generate-batch {"requestIds": [...]}
func (s *Srv) GenerateRISBatch(c *gin.Context) {
	var body batchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	doc, err := s.RIS.GenerateBatch(c.Request.Context(), actor(c), body.RequestIDs)
	if err != nil {
		fail(c, "GenerateRISBatch", err)
		return
	}
	sendFile(c, doc.Filename, doc.Bytes)
}

// POST /api/ris/generate-custom
func (s *Srv) GenerateCustomRIS(c *gin.Context) {
	var in ris.CustomInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	doc, err := s.RIS.GenerateCustom(c.Request.Context(), actor(c), c.GetString("displayName"), in)
	if err != nil {
		fail(c, "GenerateCustomRIS", err)
		return
	}
	c.Header("X-RIS-Number", doc.Numbers[0])
	sendFile(c, doc.Filename, doc.Bytes)
}

// GET /api/ris/preview-template
func (s *Srv) PreviewRISTemplate(c *gin.Context) {
	p, err := s.RIS.PreviewTemplate(actor(c))
	if err != nil {
		fail(c, "PreviewRISTemplate", err)
		return
	}
	ok(c, http.StatusOK, p)
}
