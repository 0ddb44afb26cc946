package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayoutMethodType is how a restaurant receives its money
type PayoutMethodType string

const (
	PayoutMethodBankAccount PayoutMethodType = "bank_account"
	PayoutMethodEwallet     PayoutMethodType = "ewallet"
)

// Restaurant represents a merchant selling through the platform.
// Funds are routed to its Xendit sub-account; a restaurant without a
// sub-account must not be charged for (see PaymentService).
type Restaurant struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Title       string `gorm:"type:varchar(255)" json:"title"`
	Code        string `gorm:"type:varchar(50)" json:"code"`
	OwnerName   string `gorm:"type:varchar(255)" json:"owner_name"`
	Email       string `gorm:"type:varchar(255)" json:"email"`
	IsAvailable bool   `gorm:"default:true" json:"is_available"`

	XenditSubAccountID  string `gorm:"type:varchar(100);index" json:"xendit_sub_account_id"`
	XenditAccountStatus string `gorm:"type:varchar(20)" json:"xendit_account_status"`

	// Payout routing details captured at registration
	PayoutMethod      PayoutMethodType `gorm:"type:varchar(20)" json:"payout_method"`
	BankCode          string           `gorm:"type:varchar(50)" json:"bank_code"`
	AccountNumber     string           `gorm:"type:varchar(50)" json:"account_number"`
	AccountHolderName string           `gorm:"type:varchar(255)" json:"account_holder_name"`
	EwalletType       string           `gorm:"type:varchar(50)" json:"ewallet_type"`
	EwalletNumber     string           `gorm:"type:varchar(50)" json:"ewallet_number"`

	// Latest commission remittance owed by this restaurant.
	// Overwritten each settlement cycle; CommissionRemittance keeps history.
	PendingRemitAmount     decimal.Decimal `gorm:"type:decimal(15,2)" json:"pending_remit_amount"`
	PendingRemitInvoiceURL string          `gorm:"type:text" json:"pending_remit_invoice_url"`
	PendingRemitDueDate    *time.Time      `json:"pending_remit_due_date"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:RestaurantID" json:"transactions,omitempty"`
}
