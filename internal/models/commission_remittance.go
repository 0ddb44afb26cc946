package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionRemittance is one week's cash-channel commission owed by a
// restaurant. The unique (restaurant_id, week_ending) pair makes the weekly
// rollup safe to re-run: a week that already has a row is never invoiced again.
type CommissionRemittance struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	RestaurantID uint      `gorm:"uniqueIndex:idx_remittance_restaurant_week;not null" json:"restaurant_id"`
	WeekEnding   time.Time `gorm:"uniqueIndex:idx_remittance_restaurant_week;not null" json:"week_ending"`

	TotalCommission decimal.Decimal `gorm:"type:decimal(15,2)" json:"total_commission"`

	XenditInvoiceID string    `gorm:"type:varchar(100)" json:"xendit_invoice_id"`
	InvoiceURL      string    `gorm:"type:text" json:"invoice_url"`
	DueDate         time.Time `json:"due_date"`

	// Relationships
	Restaurant Restaurant `gorm:"foreignKey:RestaurantID" json:"restaurant,omitempty"`
}
