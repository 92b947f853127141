package models

import "time"

const TransactionTable = "inv_transactions"

type TransactionType string

const (
	TxIn  TransactionType = "in"
	TxOut TransactionType = "out"
)

func (t TransactionType) Valid() bool { return t == TxIn || t == TxOut }

// Signed returns q with the sign the movement applies to stock.
func (t TransactionType) Signed(q int) int {
	if t == TxOut {
		return -q
	}
	return q
}

// Transaction is an append-only stock movement. BalanceAfter is the item quantity right
// after the movement was applied; RIS documents read it instead of the live quantity.
// ID is auto-increment so id order is creation order.
type Transaction struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemID        string          `gorm:"type:uuid;index;not null" json:"itemId"`
	Item          *Item           `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	Type          TransactionType `gorm:"size:8;not null" json:"type"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	BalanceAfter  int             `gorm:"not null" json:"balanceAfter"`
	RequestID     *string         `gorm:"type:uuid;index" json:"requestId,omitempty"`
	RequestLineID *string         `gorm:"type:uuid;index" json:"requestLineId,omitempty"`
	Notes         string          `gorm:"size:255" json:"notes,omitempty"`
	PerformedBy   string          `gorm:"type:uuid;index;not null" json:"performedBy"`
	Performer     *User           `gorm:"foreignKey:PerformedBy" json:"performer,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"createdAt"`
}

func (Transaction) TableName() string { return TransactionTable }
