package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"Gin_postgres_redis_supply_tool/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStockGuard 表示条件扣减没有命中（库存不足或物品不存在）
var ErrStockGuard = errors.New("stock guard rejected update")

// Items
func (r *Repo) CreateItem(ctx context.Context, it *models.Item) error {
	return r.DB.WithContext(ctx).Create(it).Error
}

func (r *Repo) FindItemByID(ctx context.Context, id string) (*models.Item, error) {
	var it models.Item
	if err := r.DB.WithContext(ctx).Preload("Category").First(&it, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// LockItem 读取并锁住物品行（sqlite 会忽略 FOR UPDATE）
func (r *Repo) LockItem(ctx context.Context, id string) (*models.Item, error) {
	var it models.Item
	if err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&it, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

type ItemsQuery struct {
	Search     string // name/sku/description 模糊匹配
	CategoryID string
	LowStock   bool
	Sort       string // "name", "-quantity", ...
}

var itemSortColumns = map[string]string{
	"name":      "name",
	"quantity":  "quantity",
	"createdAt": "created_at",
	"sku":       "sku",
}

func (r *Repo) ListItems(ctx context.Context, q ItemsQuery) ([]models.Item, error) {
	tx := r.DB.WithContext(ctx).Model(&models.Item{}).Preload("Category")
	if s := strings.TrimSpace(q.Search); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ? OR LOWER(description) LIKE ?", pat, pat, pat)
	}
	if q.CategoryID != "" {
		tx = tx.Where("category_id = ?", q.CategoryID)
	}
	if q.LowStock {
		tx = tx.Where("quantity <= min_stock_level")
	}
	tx = tx.Order(itemOrder(q.Sort))

	var items []models.Item
	if err := tx.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func itemOrder(sort string) string {
	var parts []string
	for _, f := range strings.Split(sort, ",") {
		f = strings.TrimSpace(f)
		desc := strings.HasPrefix(f, "-")
		col, ok := itemSortColumns[strings.TrimPrefix(f, "-")]
		if !ok {
			continue
		}
		if desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return "created_at DESC"
	}
	return strings.Join(parts, ", ")
}

// UpdateItemFields 只更新非库存字段；库存变动必须走 Debit/Credit
func (r *Repo) UpdateItemFields(ctx context.Context, id string, fields map[string]any) error {
	delete(fields, "quantity")
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now()
	res := r.DB.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) DeleteItem(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Delete(&models.Item{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DebitItem 条件扣减：quantity >= qty 才会更新，返回扣减后的数量
func (r *Repo) DebitItem(ctx context.Context, id string, qty int) (int, error) {
	res := r.DB.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrStockGuard
	}
	return r.currentQuantity(ctx, id)
}

func (r *Repo) CreditItem(ctx context.Context, id string, qty int) (int, error) {
	res := r.DB.WithContext(ctx).Model(&models.Item{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return r.currentQuantity(ctx, id)
}

func (r *Repo) currentQuantity(ctx context.Context, id string) (int, error) {
	var q int
	if err := r.DB.WithContext(ctx).Model(&models.Item{}).
		Select("quantity").
		Where("id = ?", id).
		Scan(&q).Error; err != nil {
		return 0, err
	}
	return q, nil
}

// Categories

func (r *Repo) CreateCategory(ctx context.Context, c *models.Category) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *Repo) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cs []models.Category
	err := r.DB.WithContext(ctx).Order("name").Find(&cs).Error
	return cs, err
}

func (r *Repo) CategoryExists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// ItemReferenced 物品是否已有流水或申请行
func (r *Repo) ItemReferenced(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Transaction{}).Where("item_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := r.DB.WithContext(ctx).Model(&models.RequestLine{}).Where("item_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
