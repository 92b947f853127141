package controllers

import (
	"Gin_postgres_redis_supply_tool/report"

	"github.com/gin-gonic/gin"
)

// POST /api/excel/inventory-report {"category": "", "lowStockOnly": false}
func (s *Srv) ExportInventoryReport(c *gin.Context) {
	var f report.InventoryFilter
	// body 可省略
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&f); err != nil {
			badRequest(c, err)
			return
		}
	}
	s.sendInventory(c, "ExportInventoryReport", f)
}

// POST /api/excel/low-stock-alert
func (s *Srv) ExportLowStockAlert(c *gin.Context) {
	s.sendInventory(c, "ExportLowStockAlert", report.InventoryFilter{LowStockOnly: true})
}

func (s *Srv) sendInventory(c *gin.Context, funcName string, f report.InventoryFilter) {
	file, err := s.Reports.Inventory(c.Request.Context(), c.GetString("username"), f)
	if err != nil {
		fail(c, funcName, err)
		return
	}
	sendFile(c, file.Filename, file.Bytes)
}

// POST /api/excel/transaction-report?itemId=&type=&startDate=&endDate=
func (s *Srv) ExportTransactionReport(c *gin.Context) {
	q, err := transactionsQuery(c)
	if err != nil {
		fail(c, "ExportTransactionReport", err)
		return
	}
	file, err := s.Reports.Transactions(c.Request.Context(), c.GetString("username"), q)
	if err != nil {
		fail(c, "ExportTransactionReport", err)
		return
	}
	sendFile(c, file.Filename, file.Bytes)
}

// POST /api/excel/item-label/:id
func (s *Srv) ExportItemLabel(c *gin.Context) {
	file, err := s.Reports.ItemLabel(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, "ExportItemLabel", err)
		return
	}
	sendFile(c, file.Filename, file.Bytes)
}
