// models/item.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ItemTable     = "inv_items"
	CategoryTable = "inv_categories"
)

type Category struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:120;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Item struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"size:200;not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description,omitempty"`
	SKU           *string   `gorm:"column:sku;size:120;uniqueIndex" json:"sku,omitempty"` // 库存编号，可空但唯一
	CategoryID    *string   `gorm:"type:uuid;index" json:"categoryId,omitempty"`
	Category      *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Quantity      int       `gorm:"not null;default:0;check:chk_inv_items_quantity,quantity >= 0" json:"quantity"`
	Unit          string    `gorm:"size:40;not null;default:'pcs'" json:"unit"`
	MinStockLevel int       `gorm:"not null" json:"minStockLevel"`
	CreatedBy     string    `gorm:"type:uuid;index" json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	LowStock bool `gorm:"-" json:"isLowStock"`
}

func (Item) TableName() string     { return ItemTable }
func (Category) TableName() string { return CategoryTable }

func (it *Item) IsLowStock() bool { return it.Quantity <= it.MinStockLevel }

// StockCode is what the RIS prints in the "Stock No." column.
func (it *Item) StockCode() string {
	if it.SKU == nil || *it.SKU == "" {
		return "N/A"
	}
	return *it.SKU
}

func (it *Item) BeforeCreate(tx *gorm.DB) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.Unit == "" {
		it.Unit = "pcs"
	}
	return nil
}

func (it *Item) AfterFind(tx *gorm.DB) error {
	it.LowStock = it.IsLowStock()
	return nil
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
