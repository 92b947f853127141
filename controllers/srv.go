// controllers/srv.go
package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"Gin_postgres_redis_supply_tool/app"
	"Gin_postgres_redis_supply_tool/apperr"
	"Gin_postgres_redis_supply_tool/config"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/inventory"
	"Gin_postgres_redis_supply_tool/report"
	"Gin_postgres_redis_supply_tool/requisition"
	"Gin_postgres_redis_supply_tool/ris"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Srv 聚合各业务服务，handlers 挂在上面
type Srv struct {
	Repo    *db.Repo
	Ledger  *inventory.Ledger
	Engine  *requisition.Engine
	RIS     *ris.Service
	Reports *report.Generator
	Cfg     app.Config
}

func GetSrv(a *app.App) *Srv {
	loc, err := ris.LoadLocation(a.Config.RISTimezone)
	if err != nil {
		config.LogError(config.GetLogger(), "controllers", "GetSrv", "load RIS_TIMEZONE, falling back to local time", a.Config.RISTimezone, err)
		loc = nil
	}
	return NewSrv(db.NewRepo(a.DB), a.Config, ris.Options{
		Location:     loc,
		TemplatePath: a.Config.RISTemplatePath,
		Locker:       a.Locker,
	})
}

func NewSrv(repo *db.Repo, cfg app.Config, risOpts ris.Options) *Srv {
	return &Srv{
		Repo:    repo,
		Ledger:  inventory.NewLedger(repo),
		Engine:  requisition.NewEngine(repo),
		RIS:     ris.NewService(repo, risOpts),
		Reports: report.NewGenerator(repo, risOpts.Location),
		Cfg:     cfg,
	}
}

// --- helpers ---

// actor 由 AuthRequired 写入的上下文构造
func actor(c *gin.Context) requisition.Actor {
	return requisition.Actor{ID: c.GetString("userID"), IsAdmin: c.GetBool("isAdmin")}
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, app.H{"success": true, "data": data})
}

func okList[T any](c *gin.Context, data []T) {
	if data == nil {
		data = []T{}
	}
	c.JSON(http.StatusOK, app.H{"success": true, "count": len(data), "data": data})
}

func sendFile(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, body)
}

var kindStatus = map[apperr.Kind]int{
	apperr.NotFound:          http.StatusNotFound,
	apperr.Forbidden:         http.StatusForbidden,
	apperr.InvalidState:      http.StatusConflict,
	apperr.InsufficientStock: http.StatusConflict,
	apperr.Validation:        http.StatusBadRequest,
	apperr.Conflict:          http.StatusConflict,
}

// fail 按错误类型映射状态码；未分类的错误记日志后返回 500
func fail(c *gin.Context, funcName string, err error) {
	kind := apperr.KindOf(err)
	status, known := kindStatus[kind]
	if !known {
		config.LogError(config.GetLogger(), "controllers", funcName, c.Request.Method+" "+c.FullPath(), c.Params, err)
		c.JSON(http.StatusInternalServerError, app.H{"success": false, "error": err.Error(), "kind": string(apperr.Internal)})
		return
	}
	c.JSON(status, app.H{"success": false, "error": err.Error(), "kind": string(kind)})
}

// badRequest 绑定失败：validator 的错误转成 字段 -> 规则
func badRequest(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[jsonField(fe)] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, app.H{
			"success": false,
			"error":   "Validation failed",
			"kind":    string(apperr.Validation),
			"fields":  fields,
		})
		return
	}
	c.JSON(http.StatusBadRequest, app.H{"success": false, "error": "Invalid request body: " + err.Error(), "kind": string(apperr.Validation)})
}

// 校验错误里的字段名取 json tag，与客户端提交的字段一致
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// CreateInput.items[0].item -> items[0].item
func jsonField(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
