package db

import (
	"context"
	"time"

	"Gin_postgres_redis_supply_tool/models"
)

func (r *Repo) AppendTransaction(ctx context.Context, t *models.Transaction) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

type TransactionsQuery struct {
	PerformedBy string // 非管理员只能看自己的
	ItemID      string
	Type        models.TransactionType
	From        *time.Time
	To          *time.Time
}

func (r *Repo) ListTransactions(ctx context.Context, q TransactionsQuery) ([]models.Transaction, error) {
	tx := r.DB.WithContext(ctx).Model(&models.Transaction{}).
		Preload("Item").
		Preload("Performer").
		Order("id DESC")
	if q.PerformedBy != "" {
		tx = tx.Where("performed_by = ?", q.PerformedBy)
	}
	if q.ItemID != "" {
		tx = tx.Where("item_id = ?", q.ItemID)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.From != nil {
		tx = tx.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("created_at <= ?", *q.To)
	}
	var ts []models.Transaction
	if err := tx.Find(&ts).Error; err != nil {
		return nil, err
	}
	return ts, nil
}

// ItemHistory 按写入顺序返回某物品全部流水，用于重放校验
func (r *Repo) ItemHistory(ctx context.Context, itemID string) ([]models.Transaction, error) {
	var ts []models.Transaction
	err := r.DB.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("id ASC").
		Find(&ts).Error
	return ts, err
}

// IssueTransactions 返回某申请产生的出库流水（按写入顺序）
func (r *Repo) IssueTransactions(ctx context.Context, requestID string) ([]models.Transaction, error) {
	var ts []models.Transaction
	err := r.DB.WithContext(ctx).
		Where("request_id = ? AND type = ?", requestID, models.TxOut).
		Order("id ASC").
		Find(&ts).Error
	return ts, err
}

func (r *Repo) AllItemIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&models.Item{}).Order("name").Pluck("id", &ids).Error
	return ids, err
}
