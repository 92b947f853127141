package db

import (
	"Gin_postgres_redis_supply_tool/models"
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

func (r *Repo) LogActivity(ctx context.Context, entry *models.ActivityLog) error {
	if err := r.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

type ActivityQuery struct {
	UserID       string
	Action       string
	ResourceType string
	From, To     *time.Time
	Limit        int
}

func (r *Repo) ListActivity(ctx context.Context, q ActivityQuery) ([]models.ActivityLog, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	tx := r.DB.WithContext(ctx).Model(&models.ActivityLog{}).Order("created_at DESC").Limit(q.Limit)
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}
	if q.ResourceType != "" {
		tx = tx.Where("resource_type = ?", q.ResourceType)
	}
	if q.From != nil {
		tx = tx.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("created_at <= ?", *q.To)
	}
	var logs []models.ActivityLog
	if err := tx.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// PurgeExpiredActivity 删除过期日志，返回删除条数
func (r *Repo) PurgeExpiredActivity(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.ActivityLog{})
	return res.RowsAffected, res.Error
}

type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

type UserActivityCount struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Count    int64  `json:"count"`
}

type ActivityStats struct {
	Total    int64               `json:"total"`
	Actions  []ActionCount       `json:"actions"`
	TopUsers []UserActivityCount `json:"topUsers"`
}

// ActivityStatsBetween 按操作统计，并列出最活跃的 10 个用户
func (r *Repo) ActivityStatsBetween(ctx context.Context, from, to *time.Time) (ActivityStats, error) {
	base := func() *gorm.DB {
		tx := r.DB.WithContext(ctx).Model(&models.ActivityLog{})
		if from != nil {
			tx = tx.Where("created_at >= ?", *from)
		}
		if to != nil {
			tx = tx.Where("created_at <= ?", *to)
		}
		return tx
	}
	var st ActivityStats
	if err := base().Count(&st.Total).Error; err != nil {
		return st, err
	}
	if err := base().
		Select("action, COUNT(*) AS count").
		Group("action").
		Order("count DESC").
		Scan(&st.Actions).Error; err != nil {
		return st, err
	}
	if err := base().
		Select("user_id, username, COUNT(*) AS count").
		Group("user_id, username").
		Order("count DESC").
		Limit(10).
		Scan(&st.TopUsers).Error; err != nil {
		return st, err
	}
	return st, nil
}
