// db/repo_users_admin.go
package db

import (
	"Gin_postgres_redis_supply_tool/models"
	"context"
)

func (r *Repo) SetUserRole(ctx context.Context, userID string, role string) error {
	return r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("role", role).Error
}

func (r *Repo) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&n).Error
	return n, err
}

func (r *Repo) SetUserProfile(ctx context.Context, userID, displayName, designation string) error {
	updates := map[string]any{}
	if displayName != "" {
		updates["display_name"] = displayName
	}
	if designation != "" {
		updates["designation"] = designation
	}
	if len(updates) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}

// UserReferenced 用户名下有申请、审核记录或流水时不能删除
func (r *Repo) UserReferenced(ctx context.Context, userID string) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Request{}).
		Where("requested_by = ? OR reviewed_by = ?", userID, userID).
		Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := r.DB.WithContext(ctx).Model(&models.Transaction{}).
		Where("performed_by = ?", userID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
