package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// FailedWebhook records a provider callback that authenticated correctly but
// could not be processed. Rows are append-only and kept for replay; they are
// never deleted automatically.
type FailedWebhook struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	XenditInvoiceID string          `gorm:"type:varchar(100);index" json:"xendit_invoice_id"`
	ExternalID      string          `gorm:"type:varchar(100)" json:"external_id"`
	Payload         json.RawMessage `gorm:"type:jsonb" json:"payload"`
	Error           string          `gorm:"type:text" json:"error"`
	RetryCount      int             `gorm:"default:0" json:"retry_count"`
	Resolved        bool            `gorm:"default:false;index" json:"resolved"`
}
