// Package inventory owns item stock. Every quantity change goes through Apply, which
// performs a guarded update and appends the matching transaction in the caller's
// database transaction.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Gin_postgres_redis_supply_tool/apperr"
	"Gin_postgres_redis_supply_tool/config"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/sirupsen/logrus"
)

type Ledger struct {
	repo *db.Repo
	log  *logrus.Logger
}

func NewLedger(repo *db.Repo) *Ledger {
	return &Ledger{repo: repo, log: config.GetLogger()}
}

// Movement is one stock change. RequestID/LineID link issues back to a requisition.
type Movement struct {
	ItemID      string
	Type        models.TransactionType
	Quantity    int
	RequestID   *string
	LineID      *string
	Notes       string
	PerformedBy string
}

// Apply 在调用方的事务里改库存并追加流水；出库走条件扣减
func Apply(ctx context.Context, tx *db.Repo, m Movement) (*models.Transaction, error) {
	if !m.Type.Valid() {
		return nil, apperr.Validationf("type must be 'in' or 'out'")
	}
	if m.Quantity < 1 {
		return nil, apperr.Validationf("quantity must be at least 1")
	}

	var (
		balance int
		err     error
	)
	if m.Type == models.TxOut {
		balance, err = tx.DebitItem(ctx, m.ItemID, m.Quantity)
		if errors.Is(err, db.ErrStockGuard) {
			return nil, shortage(ctx, tx, m.ItemID, m.Quantity)
		}
	} else {
		balance, err = tx.CreditItem(ctx, m.ItemID, m.Quantity)
		if db.IsNotFound(err) {
			return nil, apperr.NotFoundf("Item not found")
		}
	}
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		ItemID:        m.ItemID,
		Type:          m.Type,
		Quantity:      m.Quantity,
		BalanceAfter:  balance,
		RequestID:     m.RequestID,
		RequestLineID: m.LineID,
		Notes:         m.Notes,
		PerformedBy:   m.PerformedBy,
	}
	if err := tx.AppendTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}
	return t, nil
}

// shortage explains why a guarded debit matched no row.
func shortage(ctx context.Context, tx *db.Repo, itemID string, requested int) error {
	it, err := tx.FindItemByID(ctx, itemID)
	if db.IsNotFound(err) {
		return apperr.NotFoundf("Item not found")
	}
	if err != nil {
		return err
	}
	return &apperr.InsufficientStockError{
		ItemID:    it.ID,
		ItemName:  it.Name,
		Available: it.Quantity,
		Requested: requested,
	}
}

// CheckAvailable is the non-binding stock check used when a request is created or edited.
func CheckAvailable(it *models.Item, qty int) error {
	if qty > it.Quantity {
		return &apperr.InsufficientStockError{
			ItemID:    it.ID,
			ItemName:  it.Name,
			Available: it.Quantity,
			Requested: qty,
		}
	}
	return nil
}

// Items

type CreateItemInput struct {
	Name          string  `json:"name" binding:"required,max=200"`
	Description   string  `json:"description"`
	SKU           *string `json:"sku"`
	CategoryID    *string `json:"category"`
	Quantity      int     `json:"quantity" binding:"gte=0"`
	Unit          string  `json:"unit"`
	MinStockLevel *int    `json:"minStockLevel" binding:"omitempty,gte=0"`
}

// CreateItem 创建物品；有初始库存时记一笔 in 流水
func (l *Ledger) CreateItem(ctx context.Context, actorID string, in CreateItemInput) (*models.Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validationf("Item name is required")
	}
	if in.Quantity < 0 {
		return nil, apperr.Validationf("quantity cannot be negative")
	}
	if err := l.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	it := &models.Item{
		Name:          name,
		Description:   in.Description,
		SKU:           optionalString(in.SKU),
		CategoryID:    optionalString(in.CategoryID),
		Unit:          strings.TrimSpace(in.Unit),
		MinStockLevel: 10,
		CreatedBy:     actorID,
	}
	if in.MinStockLevel != nil {
		it.MinStockLevel = *in.MinStockLevel
	}

	err := l.repo.WithTx(ctx, func(tx *db.Repo) error {
		if err := tx.CreateItem(ctx, it); err != nil {
			if db.IsDuplicateKey(err) {
				return apperr.Conflictf("An item with this stock number already exists")
			}
			return err
		}
		if in.Quantity == 0 {
			return nil
		}
		_, err := Apply(ctx, tx, Movement{
			ItemID:      it.ID,
			Type:        models.TxIn,
			Quantity:    in.Quantity,
			Notes:       "Initial stock - Item created",
			PerformedBy: actorID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return l.GetItem(ctx, it.ID)
}

type UpdateItemInput struct {
	Name          *string `json:"name" binding:"omitempty,max=200"`
	Description   *string `json:"description"`
	SKU           *string `json:"sku"`
	CategoryID    *string `json:"category"`
	Unit          *string `json:"unit"`
	MinStockLevel *int    `json:"minStockLevel" binding:"omitempty,gte=0"`
	Quantity      *int    `json:"quantity" binding:"omitempty,gte=0"`
}

// UpdateItem 更新物品信息；数量变化记为调整流水（in 为补货，out 为盘亏）
func (l *Ledger) UpdateItem(ctx context.Context, actorID, id string, in UpdateItemInput) (*models.Item, error) {
	if in.Quantity != nil && *in.Quantity < 0 {
		return nil, apperr.Validationf("quantity cannot be negative")
	}
	if err := l.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validationf("Item name is required")
		}
		fields["name"] = name
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.SKU != nil {
		fields["sku"] = optionalString(in.SKU)
	}
	if in.CategoryID != nil {
		if *in.CategoryID == "" {
			fields["category_id"] = nil
		} else {
			fields["category_id"] = *in.CategoryID
		}
	}
	if in.Unit != nil && strings.TrimSpace(*in.Unit) != "" {
		fields["unit"] = strings.TrimSpace(*in.Unit)
	}
	if in.MinStockLevel != nil {
		fields["min_stock_level"] = *in.MinStockLevel
	}

	err := l.repo.WithTx(ctx, func(tx *db.Repo) error {
		it, err := tx.LockItem(ctx, id)
		if db.IsNotFound(err) {
			return apperr.NotFoundf("Item not found")
		}
		if err != nil {
			return err
		}
		if err := tx.UpdateItemFields(ctx, id, fields); err != nil {
			if db.IsDuplicateKey(err) {
				return apperr.Conflictf("An item with this stock number already exists")
			}
			return err
		}
		if in.Quantity == nil || *in.Quantity == it.Quantity {
			return nil
		}

		m := Movement{ItemID: id, PerformedBy: actorID}
		diff := *in.Quantity - it.Quantity
		if diff > 0 {
			m.Type, m.Quantity = models.TxIn, diff
			m.Notes = fmt.Sprintf("Restocking - Item quantity updated from %d to %d", it.Quantity, *in.Quantity)
		} else {
			m.Type, m.Quantity = models.TxOut, -diff
			m.Notes = fmt.Sprintf("Stock adjustment - Item quantity updated from %d to %d", it.Quantity, *in.Quantity)
		}
		_, err = Apply(ctx, tx, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return l.GetItem(ctx, id)
}

// DeleteItem refuses items that already have ledger entries or request lines.
func (l *Ledger) DeleteItem(ctx context.Context, id string) error {
	return l.repo.WithTx(ctx, func(tx *db.Repo) error {
		if _, err := tx.LockItem(ctx, id); err != nil {
			if db.IsNotFound(err) {
				return apperr.NotFoundf("Item not found")
			}
			return err
		}
		used, err := tx.ItemReferenced(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return apperr.InvalidStatef("Item has stock history and cannot be deleted")
		}
		return tx.DeleteItem(ctx, id)
	})
}

func (l *Ledger) GetItem(ctx context.Context, id string) (*models.Item, error) {
	it, err := l.repo.FindItemByID(ctx, id)
	if db.IsNotFound(err) {
		return nil, apperr.NotFoundf("Item not found")
	}
	return it, err
}

func (l *Ledger) ListItems(ctx context.Context, q db.ItemsQuery) ([]models.Item, error) {
	return l.repo.ListItems(ctx, q)
}

// LowStock lists items at or below their minimum, emptiest first.
func (l *Ledger) LowStock(ctx context.Context) ([]models.Item, error) {
	return l.repo.ListItems(ctx, db.ItemsQuery{LowStock: true, Sort: "quantity"})
}

// Movements

type MovementInput struct {
	ItemID   string                 `json:"item" binding:"required"`
	Type     models.TransactionType `json:"type" binding:"required,oneof=in out"`
	Quantity int                    `json:"quantity" binding:"required,min=1"`
	Notes    string                 `json:"notes" binding:"max=255"`
}

// RecordMovement 直接入库/出库
func (l *Ledger) RecordMovement(ctx context.Context, actorID string, in MovementInput) (*models.Transaction, error) {
	var out *models.Transaction
	err := l.repo.WithTx(ctx, func(tx *db.Repo) error {
		if _, err := tx.LockItem(ctx, in.ItemID); err != nil {
			if db.IsNotFound(err) {
				return apperr.NotFoundf("Item not found")
			}
			return err
		}
		t, err := Apply(ctx, tx, Movement{
			ItemID:      in.ItemID,
			Type:        in.Type,
			Quantity:    in.Quantity,
			Notes:       in.Notes,
			PerformedBy: actorID,
		})
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) ListTransactions(ctx context.Context, q db.TransactionsQuery) ([]models.Transaction, error) {
	return l.repo.ListTransactions(ctx, q)
}

// Categories

type CategoryInput struct {
	Name        string `json:"name" binding:"required,max=120"`
	Description string `json:"description" binding:"max=255"`
}

func (l *Ledger) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validationf("Category name is required")
	}
	c := &models.Category{Name: name, Description: in.Description}
	if err := l.repo.CreateCategory(ctx, c); err != nil {
		if db.IsDuplicateKey(err) {
			return nil, apperr.Conflictf("Category %s already exists", name)
		}
		return nil, err
	}
	return c, nil
}

func (l *Ledger) ListCategories(ctx context.Context) ([]models.Category, error) {
	return l.repo.ListCategories(ctx)
}

func (l *Ledger) checkCategory(ctx context.Context, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	ok, err := l.repo.CategoryExists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFoundf("Category not found")
	}
	return nil
}

func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
