package controllers

import (
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_supply_tool/apperr"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/inventory"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/gin-gonic/gin"
)

// parseDay 接受 2006-01-02 或 RFC3339；endOfDay 时日期补到当天最后一刻
func parseDay(v string, endOfDay bool) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return nil, apperr.Validationf("Invalid date %q, expected YYYY-MM-DD", v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// transactionsQuery 读取 itemId/type/startDate/endDate；非管理员只看自己经手的
func transactionsQuery(c *gin.Context) (db.TransactionsQuery, error) {
	q := db.TransactionsQuery{
		ItemID: c.Query("itemId"),
		Type:   models.TransactionType(c.Query("type")),
	}
	if q.Type != "" && !q.Type.Valid() {
		return q, apperr.Validationf("Unknown transaction type %q", q.Type)
	}
	var err error
	if q.From, err = parseDay(c.Query("startDate"), false); err != nil {
		return q, err
	}
	if q.To, err = parseDay(c.Query("endDate"), true); err != nil {
		return q, err
	}
	if !c.GetBool("isAdmin") {
		q.PerformedBy = c.GetString("userID")
	}
	return q, nil
}

// GET /api/transactions
func (s *Srv) ListTransactions(c *gin.Context) {
	q, err := transactionsQuery(c)
	if err != nil {
		fail(c, "ListTransactions", err)
		return
	}
	ts, err := s.Ledger.ListTransactions(c.Request.Context(), q)
	if err != nil {
		fail(c, "ListTransactions", err)
		return
	}
	okList(c, ts)
}

// GET /api/transactions/item/:itemId
func (s *Srv) ItemTransactions(c *gin.Context) {
	id := c.Param("itemId")
	if _, err := s.Ledger.GetItem(c.Request.Context(), id); err != nil {
		fail(c, "ItemTransactions", err)
		return
	}
	ts, err := s.Ledger.ListTransactions(c.Request.Context(), db.TransactionsQuery{ItemID: id})
	if err != nil {
		fail(c, "ItemTransactions", err)
		return
	}
	okList(c, ts)
}

// POST /api/transactions
func (s *Srv) CreateTransaction(c *gin.Context) {
	var in inventory.MovementInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	t, err := s.Ledger.RecordMovement(c.Request.Context(), c.GetString("userID"), in)
	if err != nil {
		fail(c, "CreateTransaction", err)
		return
	}
	ok(c, http.StatusCreated, t)
}
