// controllers/item_controller.go
package controllers

import (
	"net/http"
	"strconv"

	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/inventory"

	"github.com/gin-gonic/gin"
)

type ItemController struct{ *Srv }

func NewItemController(s *Srv) *ItemController { return &ItemController{Srv: s} }

// GET /api/items?search=&category=&lowStock=true&sort=-quantity
func (ic *ItemController) ListItems(c *gin.Context) {
	lowStock, _ := strconv.ParseBool(c.DefaultQuery("lowStock", "false"))
	items, err := ic.Ledger.ListItems(c.Request.Context(), db.ItemsQuery{
		Search:     c.Query("search"),
		CategoryID: c.Query("category"),
		LowStock:   lowStock,
		Sort:       c.Query("sort"),
	})
	if err != nil {
		fail(c, "ListItems", err)
		return
	}
	okList(c, items)
}

// GET /api/items/low-stock
func (ic *ItemController) LowStock(c *gin.Context) {
	items, err := ic.Ledger.LowStock(c.Request.Context())
	if err != nil {
		fail(c, "LowStock", err)
		return
	}
	okList(c, items)
}

// GET /api/items/:id
func (ic *ItemController) GetItem(c *gin.Context) {
	it, err := ic.Ledger.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, "GetItem", err)
		return
	}
	ok(c, http.StatusOK, it)
}

// 管理员创建物品（初始库存记一笔入库）
func (ic *ItemController) CreateItem(c *gin.Context) {
	var in inventory.CreateItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	it, err := ic.Ledger.CreateItem(c.Request.Context(), c.GetString("userID"), in)
	if err != nil {
		fail(c, "CreateItem", err)
		return
	}
	ok(c, http.StatusCreated, it)
}

// PUT /api/items/:id
func (ic *ItemController) UpdateItem(c *gin.Context) {
	var in inventory.UpdateItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	it, err := ic.Ledger.UpdateItem(c.Request.Context(), c.GetString("userID"), c.Param("id"), in)
	if err != nil {
		fail(c, "UpdateItem", err)
		return
	}
	ok(c, http.StatusOK, it)
}

// DELETE /api/items/:id
func (ic *ItemController) DeleteItem(c *gin.Context) {
	if err := ic.Ledger.DeleteItem(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, "DeleteItem", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Item deleted successfully"})
}

// GET /api/categories
func (ic *ItemController) ListCategories(c *gin.Context) {
	cats, err := ic.Ledger.ListCategories(c.Request.Context())
	if err != nil {
		fail(c, "ListCategories", err)
		return
	}
	okList(c, cats)
}

// POST /api/categories
func (ic *ItemController) CreateCategory(c *gin.Context) {
	var in inventory.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := ic.Ledger.CreateCategory(c.Request.Context(), in)
	if err != nil {
		fail(c, "CreateCategory", err)
		return
	}
	ok(c, http.StatusCreated, cat)
}

// GET /api/ledger/verify/:itemId
func (ic *ItemController) VerifyLedger(c *gin.Context) {
	rep, err := ic.Ledger.Verify(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		fail(c, "VerifyLedger", err)
		return
	}
	ok(c, http.StatusOK, rep)
}
