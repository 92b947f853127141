package db

import (
	"context"
	"time"

	"Gin_postgres_redis_supply_tool/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func preloadRequest(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Lines.Item").
		Preload("Requester").
		Preload("Reviewer")
}

// CreateRequest 连同明细行一起写入
func (r *Repo) CreateRequest(ctx context.Context, req *models.Request) error {
	return r.DB.WithContext(ctx).Create(req).Error
}

func (r *Repo) FindRequest(ctx context.Context, id string) (*models.Request, error) {
	var req models.Request
	if err := preloadRequest(r.DB.WithContext(ctx)).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// LockRequest 锁住申请行再读出明细，审批/编号都先走这里
func (r *Repo) LockRequest(ctx context.Context, id string) (*models.Request, error) {
	var req models.Request
	if err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.DB.WithContext(ctx).
		Where("request_id = ?", id).
		Order("position ASC").
		Find(&req.Lines).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

type RequestsQuery struct {
	RequestedBy string
	Status      models.Status
}

func (r *Repo) ListRequests(ctx context.Context, q RequestsQuery) ([]models.Request, error) {
	tx := preloadRequest(r.DB.WithContext(ctx)).Model(&models.Request{}).Order("created_at DESC")
	if q.RequestedBy != "" {
		tx = tx.Where("requested_by = ?", q.RequestedBy)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	var rs []models.Request
	if err := tx.Find(&rs).Error; err != nil {
		return nil, err
	}
	return rs, nil
}

func (r *Repo) FindRequestsByIDs(ctx context.Context, ids []string) (map[string]*models.Request, error) {
	var rs []models.Request
	if err := preloadRequest(r.DB.WithContext(ctx)).Where("id IN ?", ids).Find(&rs).Error; err != nil {
		return nil, err
	}
	out := make(map[string]*models.Request, len(rs))
	for i := range rs {
		out[rs[i].ID] = &rs[i]
	}
	return out, nil
}

func (r *Repo) UpdateRequestFields(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	return r.DB.WithContext(ctx).Model(&models.Request{}).Where("id = ?", id).Updates(fields).Error
}

func (r *Repo) UpdateLineQuantity(ctx context.Context, lineID string, qty int) error {
	return r.DB.WithContext(ctx).Model(&models.RequestLine{}).
		Where("id = ? AND status = ?", lineID, models.StatusPending).
		Updates(map[string]any{"quantity": qty, "updated_at": time.Now()}).Error
}

// ResolveLine 只在行仍为 pending 时改状态；返回是否命中
func (r *Repo) ResolveLine(ctx context.Context, lineID string, status models.Status, reason string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.RequestLine{}).
		Where("id = ? AND status = ?", lineID, models.StatusPending).
		Updates(map[string]any{
			"status":           status,
			"rejection_reason": reason,
			"updated_at":       time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

// ResolveRequest 写入汇总状态；reviewer 为空表示仍未结案
func (r *Repo) ResolveRequest(ctx context.Context, id string, status models.Status, reviewer string, at time.Time, reason string) error {
	fields := map[string]any{"status": status, "updated_at": time.Now()}
	if reviewer != "" {
		fields["reviewed_by"] = reviewer
		fields["reviewed_at"] = at
	}
	if reason != "" {
		fields["rejection_reason"] = reason
	}
	return r.DB.WithContext(ctx).Model(&models.Request{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteRequest 先删明细再删申请
func (r *Repo) DeleteRequest(ctx context.Context, id string) error {
	if err := r.DB.WithContext(ctx).Where("request_id = ?", id).Delete(&models.RequestLine{}).Error; err != nil {
		return err
	}
	res := r.DB.WithContext(ctx).Delete(&models.Request{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetRISNumber 仅在尚未编号时写入；返回是否命中
func (r *Repo) SetRISNumber(ctx context.Context, id, number string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Request{}).
		Where("id = ? AND ris_number IS NULL", id).
		Updates(map[string]any{"ris_number": number, "updated_at": time.Now()})
	return res.RowsAffected == 1, res.Error
}

func (r *Repo) CountRISPrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Request{}).
		Where("ris_number LIKE ?", prefix+"%").
		Count(&n).Error
	return n, err
}
