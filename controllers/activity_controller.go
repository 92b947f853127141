package controllers

import (
	"net/http"
	"strconv"
	"time"

	"Gin_postgres_redis_supply_tool/db"

	"github.com/gin-gonic/gin"
)

// GET /api/activity-logs?action=&resourceType=&userId=&startDate=&endDate=&limit=
// 普通用户只能看自己的
func (s *Srv) ListActivityLogs(c *gin.Context) {
	from, err := parseDay(c.Query("startDate"), false)
	if err != nil {
		fail(c, "ListActivityLogs", err)
		return
	}
	to, err := parseDay(c.Query("endDate"), true)
	if err != nil {
		fail(c, "ListActivityLogs", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	q := db.ActivityQuery{
		UserID:       c.Query("userId"),
		Action:       c.Query("action"),
		ResourceType: c.Query("resourceType"),
		From:         from,
		To:           to,
		Limit:        limit,
	}
	if !c.GetBool("isAdmin") {
		q.UserID = c.GetString("userID")
	}
	logs, err := s.Repo.ListActivity(c.Request.Context(), q)
	if err != nil {
		fail(c, "ListActivityLogs", err)
		return
	}
	okList(c, logs)
}

// GET /api/activity-logs/stats
func (s *Srv) ActivityStats(c *gin.Context) {
	from, err := parseDay(c.Query("startDate"), false)
	if err != nil {
		fail(c, "ActivityStats", err)
		return
	}
	to, err := parseDay(c.Query("endDate"), true)
	if err != nil {
		fail(c, "ActivityStats", err)
		return
	}
	st, err := s.Repo.ActivityStatsBetween(c.Request.Context(), from, to)
	if err != nil {
		fail(c, "ActivityStats", err)
		return
	}
	ok(c, http.StatusOK, st)
}

// DELETE /api/activity-logs/cleanup
func (s *Srv) CleanupActivityLogs(c *gin.Context) {
	n, err := s.Repo.PurgeExpiredActivity(c.Request.Context(), time.Now())
	if err != nil {
		fail(c, "CleanupActivityLogs", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": n})
}
