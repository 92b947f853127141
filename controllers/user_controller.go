package controllers

import (
	"net/http"
	"strconv"

	"Gin_postgres_redis_supply_tool/app"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserController struct {
	repo *db.Repo
	cfg  app.Config
}

func GetUserController(repo *db.Repo, cfg app.Config) *UserController {
	return &UserController{repo: repo, cfg: cfg}
}

// GET /api/me
func (uc *UserController) Me(c *gin.Context) {
	u, err := uc.repo.FindUserByID(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, app.H{"success": false, "error": "unauthorized"})
		return
	}
	ok(c, http.StatusOK, app.H{"user": u, "isAdmin": c.GetBool("isAdmin")})
}

// PUT /api/me  {"displayName": "...", "designation": "..."}
// 打印在 RIS 上的默认申请人姓名与职务
func (uc *UserController) UpdateMe(c *gin.Context) {
	var in struct {
		DisplayName string `json:"displayName" binding:"max=255"`
		Designation string `json:"designation" binding:"max=255"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	uid := c.GetString("userID")
	if err := uc.repo.SetUserProfile(c.Request.Context(), uid, in.DisplayName, in.Designation); err != nil {
		fail(c, "UpdateMe", err)
		return
	}
	u, err := uc.repo.FindUserByID(c.Request.Context(), uid)
	if err != nil {
		fail(c, "UpdateMe", err)
		return
	}
	ok(c, http.StatusOK, app.H{"user": u})
}

// GET /api/users?q=alice&page=1&size=20
func (uc *UserController) ListUsers(c *gin.Context) {
	q := c.Query("q")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := uc.repo.ListUsers(c.Request.Context(), q, page, size)
	if err != nil {
		fail(c, "ListUsers", err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"success": true,
		"total":   res.Total,
		"data":    res.Users,
	})
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil { // 校验 UUID 格式
		c.JSON(http.StatusBadRequest, app.H{"success": false, "error": "invalid uuid", "kind": "ValidationError"})
		return
	}
	user, err := uc.repo.FindUserByID(c.Request.Context(), id)
	if db.IsNotFound(err) {
		c.JSON(http.StatusNotFound, app.H{"success": false, "error": "user not found", "kind": "NotFound"})
		return
	}
	if err != nil {
		fail(c, "GetUser", err)
		return
	}
	ok(c, http.StatusOK, user)
}

// PUT /api/users/:id/role {"role": "admin"|"user"}
func (uc *UserController) SetRole(c *gin.Context) {
	var in struct {
		Role string `json:"role" binding:"required,oneof=admin user"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	id := c.Param("id")
	if id == c.GetString("userID") && in.Role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, app.H{"success": false, "error": "cannot demote yourself", "kind": "ValidationError"})
		return
	}
	if _, err := uc.repo.FindUserByID(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, app.H{"success": false, "error": "user not found", "kind": "NotFound"})
		return
	}
	if err := uc.repo.SetUserRole(c.Request.Context(), id, in.Role); err != nil {
		fail(c, "SetRole", err)
		return
	}
	ok(c, http.StatusOK, app.H{"id": id, "role": in.Role})
}

// DELETE /api/users/:id
func (uc *UserController) DeleteUser(c *gin.Context) {
	id := c.Param("id")

	// 不允许删除自己，避免锁死
	if id == c.GetString("userID") {
		c.JSON(http.StatusBadRequest, app.H{"success": false, "error": "cannot delete yourself", "kind": "ValidationError"})
		return
	}

	target, err := uc.repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, app.H{"success": false, "error": "user not found", "kind": "NotFound"})
		return
	}
	if target.IsAdmin() || uc.cfg.IsAdminUsername(target.Username) {
		c.JSON(http.StatusForbidden, app.H{"success": false, "error": "cannot delete an admin", "kind": "Forbidden"})
		return
	}

	used, err := uc.repo.UserReferenced(c.Request.Context(), id)
	if err != nil {
		fail(c, "DeleteUser", err)
		return
	}
	if used {
		c.JSON(http.StatusConflict, app.H{"success": false, "error": "user has requests or stock history and cannot be deleted", "kind": "InvalidState"})
		return
	}

	if err := uc.repo.DeleteUserByID(c.Request.Context(), id); err != nil {
		fail(c, "DeleteUser", err)
		return
	}
	ok(c, http.StatusOK, app.H{"message": "User deleted successfully"})
}
