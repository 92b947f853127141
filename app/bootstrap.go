// app/bootstrap.go
package app

import (
	"context"
	"time"

	"Gin_postgres_redis_supply_tool/config"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/sirupsen/logrus"
)

const bootstrapTokenTTL = 24 * time.Hour

// BootstrapFirstAdmin 没有任何管理员时，按 BOOTSTRAP_ADMIN 建一个并打印一次性令牌
func BootstrapFirstAdmin(ctx context.Context, cfg Config, repo *db.Repo) {
	log := config.GetLogger()
	if cfg.BootstrapAdmin == "" {
		return
	}
	n, err := repo.CountAdmins(ctx)
	if err != nil {
		config.LogError(log, "app", "BootstrapFirstAdmin", "count admins", nil, err)
		return
	}
	if n > 0 {
		return // 已经有管理员，跳过
	}

	u, token, err := SeedAdmin(ctx, cfg, repo, cfg.BootstrapAdmin, "")
	if err != nil {
		config.LogError(log, "app", "BootstrapFirstAdmin", "seed admin", cfg.BootstrapAdmin, err)
		return
	}
	log.WithFields(logrus.Fields{"username": u.Username, "userId": u.ID}).
		Warn("[BOOTSTRAP] No admin found, created the first admin; use the token below as a Bearer token")
	log.WithField("token", token).Warn("[BOOTSTRAP] admin token (valid 24h)")
}

// SeedAdmin 找到或创建用户并提升为管理员，返回一个访问令牌
func SeedAdmin(ctx context.Context, cfg Config, repo *db.Repo, username, designation string) (*models.User, string, error) {
	u, err := repo.FindOrCreateUser(ctx, username, username, models.RoleAdmin)
	if err != nil {
		return nil, "", err
	}
	if !u.IsAdmin() {
		if err := repo.SetUserRole(ctx, u.ID, models.RoleAdmin); err != nil {
			return nil, "", err
		}
		u.Role = models.RoleAdmin
	}
	if designation != "" && u.Designation != designation {
		if err := repo.SetUserProfile(ctx, u.ID, "", designation); err != nil {
			return nil, "", err
		}
		u.Designation = designation
	}
	token, err := IssueToken(cfg.JWTSecret, u.ID, bootstrapTokenTTL)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}
