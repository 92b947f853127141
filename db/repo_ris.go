package db

import (
	"context"
	"time"

	"Gin_postgres_redis_supply_tool/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NextRISSequence 原子地为某天取下一个序号：
// INSERT ... ON CONFLICT (day_key) DO UPDATE SET last_seq = last_seq + 1
// seed 为当天第一次使用时的初值（兼容已有编号的旧数据）
func (r *Repo) NextRISSequence(ctx context.Context, dayKey string, seed int) (int, error) {
	row := models.RISCounter{DayKey: dayKey, LastSeq: seed, UpdatedAt: time.Now()}
	if err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_seq":   gorm.Expr(models.RISCounterTable + ".last_seq + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error; err != nil {
		return 0, err
	}
	var seq int
	if err := r.DB.WithContext(ctx).Model(&models.RISCounter{}).
		Select("last_seq").
		Where("day_key = ?", dayKey).
		Scan(&seq).Error; err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *Repo) RISCounterExists(ctx context.Context, dayKey string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.RISCounter{}).Where("day_key = ?", dayKey).Count(&n).Error
	return n > 0, err
}
