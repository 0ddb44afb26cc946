package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionStatus is the payment state of a ledger row
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusExpired   TransactionStatus = "expired"
)

// Transaction is the canonical payment ledger row. The unique index on
// XenditInvoiceID is the idempotency anchor: concurrent duplicate callbacks
// and promotions converge on a single row through upsert-by-invoice-id.
type Transaction struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	XenditInvoiceID string `gorm:"type:varchar(100);uniqueIndex;not null" json:"xendit_invoice_id"`

	OrderID      uint `gorm:"index" json:"order_id"`
	RestaurantID uint `gorm:"index:idx_transactions_settlement,priority:1" json:"restaurant_id"`

	Amount     decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
	Commission decimal.Decimal `gorm:"type:decimal(15,2)" json:"commission"`

	Source PaymentSource     `gorm:"type:varchar(20)" json:"source"`
	Status TransactionStatus `gorm:"type:varchar(20);default:'pending';index:idx_transactions_settlement,priority:2" json:"status"`

	// Saturday 20:00 Asia/Manila closing the settlement week this row falls in
	WeekEnding time.Time `gorm:"index:idx_transactions_settlement,priority:3" json:"week_ending"`

	// Channel detail delivered by late webhook enrichment (payment method etc.)
	ChannelMetadata json.RawMessage `gorm:"type:jsonb" json:"channel_metadata"`

	// Relationships
	Order      Order      `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Restaurant Restaurant `gorm:"foreignKey:RestaurantID" json:"restaurant,omitempty"`
}
