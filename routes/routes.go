package routes

import (
	"time"

	"Gin_postgres_redis_supply_tool/app"
	"Gin_postgres_redis_supply_tool/controllers"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	Register(r, controllers.GetSrv(a), a.RDB)
}

// Register 挂载全部路由；测试里直接传入构造好的 Srv
func Register(r *gin.Engine, s *controllers.Srv, rdb *redis.Client) {
	// 控制器与依赖
	uc := controllers.GetUserController(s.Repo, s.Cfg)
	itemCtl := controllers.NewItemController(s)

	// 复用的中间件
	authMW := app.AuthRequired(s.Repo, s.Cfg)
	adminMW := app.AdminOnly()
	seenMW := app.TouchLastSeen(s.Repo, rdb, 5*time.Minute)
	activityMW := app.RecordActivity(s.Repo, s.Cfg.ActivityLogTTL)

	// Health
	r.GET("/healthz", func(c *app.Ctx) { c.JSON(200, app.H{"ok": true}) })

	api := r.Group("/api", authMW, seenMW, activityMW)

	api.GET("/me", uc.Me)
	api.PUT("/me", uc.UpdateMe)

	// ------------------------------
	// 领用申请
	// ------------------------------
	reqs := api.Group("/requests")
	{
		reqs.GET("", s.ListRequests) // ?status=
		reqs.POST("", s.CreateRequest)
		reqs.GET("/:id", s.GetRequest)
		reqs.PUT("/:id", s.UpdateRequest)
		reqs.DELETE("/:id", s.DeleteRequest)
	}
	reqsAdmin := api.Group("/requests", adminMW)
	{
		reqsAdmin.PUT("/:id/approve", s.ApproveRequest)
		reqsAdmin.PUT("/:id/reject", s.RejectRequest)
		reqsAdmin.PUT("/:id/items/:lineId/approve", s.ApproveRequestLine)
		reqsAdmin.PUT("/:id/items/:lineId/reject", s.RejectRequestLine)
	}

	// ------------------------------
	// RIS 单据
	// ------------------------------
	risGroup := api.Group("/ris")
	{
		risGroup.POST("/generate/:requestId", s.GenerateRIS)
		risGroup.POST("/generate-batch", s.GenerateRISBatch)
	}
	risAdmin := api.Group("/ris", adminMW)
	{
		risAdmin.POST("/generate-custom", s.GenerateCustomRIS)
		risAdmin.GET("/preview-template", s.PreviewRISTemplate)
	}

	// ------------------------------
	// 物品 / 分类
	// ------------------------------
	items := api.Group("/items")
	{
		items.GET("", itemCtl.ListItems) // ?search=&category=&lowStock=&sort=
		items.GET("/low-stock", itemCtl.LowStock)
		items.GET("/:id", itemCtl.GetItem)
	}
	itemsAdmin := api.Group("/items", adminMW)
	{
		itemsAdmin.POST("", itemCtl.CreateItem)
		itemsAdmin.PUT("/:id", itemCtl.UpdateItem)
		itemsAdmin.DELETE("/:id", itemCtl.DeleteItem)
	}
	api.GET("/categories", itemCtl.ListCategories)
	api.POST("/categories", adminMW, itemCtl.CreateCategory)
	api.GET("/ledger/verify/:itemId", adminMW, itemCtl.VerifyLedger)

	// ------------------------------
	// 库存流水
	// ------------------------------
	txs := api.Group("/transactions")
	{
		txs.GET("", s.ListTransactions) // ?itemId=&type=&startDate=&endDate=
		txs.POST("", s.CreateTransaction)
		txs.GET("/item/:itemId", s.ItemTransactions)
	}

	// ------------------------------
	// Excel 导出
	// ------------------------------
	excel := api.Group("/excel")
	{
		excel.POST("/inventory-report", s.ExportInventoryReport)
		excel.POST("/low-stock-alert", s.ExportLowStockAlert)
		excel.POST("/transaction-report", adminMW, s.ExportTransactionReport)
		excel.POST("/item-label/:id", s.ExportItemLabel)
	}
	// 旧客户端仍走 /api/documents
	docs := api.Group("/documents")
	{
		docs.POST("/inventory-report", s.ExportInventoryReport)
		docs.POST("/low-stock-alert", s.ExportLowStockAlert)
		docs.POST("/transaction-report", adminMW, s.ExportTransactionReport)
		docs.POST("/item-label/:id", s.ExportItemLabel)
	}

	// ------------------------------
	// 活动日志
	// ------------------------------
	api.GET("/activity-logs", s.ListActivityLogs)
	api.GET("/activity-logs/stats", adminMW, s.ActivityStats)
	api.DELETE("/activity-logs/cleanup", adminMW, s.CleanupActivityLogs)

	// ------------------------------
	// 用户管理（仅管理员）
	// ------------------------------
	users := api.Group("/users", adminMW)
	{
		users.GET("", uc.ListUsers)   // ?q=&page=&size=
		users.GET("/:id", uc.GetUser) // 精确查单个
		users.PUT("/:id/role", uc.SetRole)
		users.DELETE("/:id", uc.DeleteUser)
	}
}
