package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_supply_tool/config"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/gin-gonic/gin"
)

// 路由模板 -> 操作名
var activityActions = map[string]string{
	"POST /api/requests":                          "CREATE_REQUEST",
	"PUT /api/requests/:id":                       "UPDATE_REQUEST",
	"DELETE /api/requests/:id":                    "DELETE_REQUEST",
	"PUT /api/requests/:id/approve":               "APPROVE_REQUEST",
	"PUT /api/requests/:id/reject":                "REJECT_REQUEST",
	"PUT /api/requests/:id/items/:lineId/approve": "APPROVE_REQUEST_ITEM",
	"PUT /api/requests/:id/items/:lineId/reject":  "REJECT_REQUEST_ITEM",
	"POST /api/ris/generate/:requestId":           "GENERATE_RIS",
	"POST /api/ris/generate-batch":                "GENERATE_RIS_BATCH",
	"POST /api/ris/generate-custom":               "GENERATE_RIS_CUSTOM",
	"POST /api/items":                             "CREATE_ITEM",
	"PUT /api/items/:id":                          "UPDATE_ITEM",
	"DELETE /api/items/:id":                       "DELETE_ITEM",
	"POST /api/categories":                        "CREATE_CATEGORY",
	"POST /api/transactions":                      "CREATE_TRANSACTION",
	"POST /api/excel/inventory-report":            "EXPORT_REPORT",
	"POST /api/excel/low-stock-alert":             "EXPORT_REPORT",
	"POST /api/excel/transaction-report":          "EXPORT_REPORT",
	"POST /api/excel/item-label/:id":              "EXPORT_LABEL",
	"POST /api/documents/inventory-report":        "EXPORT_REPORT",
	"POST /api/documents/low-stock-alert":         "EXPORT_REPORT",
	"POST /api/documents/transaction-report":      "EXPORT_REPORT",
	"POST /api/documents/item-label/:id":          "EXPORT_LABEL",
	"DELETE /api/users/:id":                       "DELETE_USER",
}

// RecordActivity 成功的写操作写一条活动日志；写失败只记日志，不影响响应
func RecordActivity(repo *db.Repo, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet || c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		uid := c.GetString("userID")
		if uid == "" {
			return
		}
		route := c.Request.Method + " " + c.FullPath()
		action, ok := activityActions[route]
		if !ok {
			action = c.Request.Method
		}
		resourceID := c.Param("id")
		if resourceID == "" {
			resourceID = c.Param("requestId")
		}
		now := time.Now()
		entry := &models.ActivityLog{
			UserID:       uid,
			Username:     c.GetString("username"),
			Action:       action,
			ResourceType: resourceType(c.FullPath()),
			ResourceID:   resourceID,
			Details:      truncate(route, 255),
			IPAddress:    c.ClientIP(),
			UserAgent:    truncate(c.Request.UserAgent(), 255),
			CreatedAt:    now,
			ExpiresAt:    now.Add(ttl),
		}
		if err := repo.LogActivity(context.WithoutCancel(c.Request.Context()), entry); err != nil {
			config.LogError(config.GetLogger(), "app", "RecordActivity", "write activity log", route, err)
		}
	}
}

// /api/requests/:id -> requests
func resourceType(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/api/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
