package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentSource distinguishes provider-collected payments from cash on delivery
type PaymentSource string

const (
	PaymentSourceOnline PaymentSource = "online"
	PaymentSourceCash   PaymentSource = "cash"
)

// PaymentStatus is the payment state of an order
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

// OrderStatus is the fulfillment state of an order
type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "Placed"
	OrderStatusPreparing      OrderStatus = "Preparing"
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	OrderStatusDelivered      OrderStatus = "Delivered"
)

// OrderItem is a single cart line of an order
type OrderItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	OrderID      uint            `gorm:"index" json:"order_id"`
	FoodID       string          `gorm:"type:varchar(100)" json:"food_id"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `gorm:"type:decimal(15,2)" json:"price"`
	Instructions string          `gorm:"type:text" json:"instructions"`
}

// Order is the durable order record. It is created exactly once per Xendit
// invoice id by the promotion path; only its status fields change afterwards.
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UUID         string `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID       uint   `gorm:"index" json:"user_id"`
	RestaurantID uint   `gorm:"index" json:"restaurant_id"`

	Subtotal    decimal.Decimal `gorm:"type:decimal(15,2)" json:"subtotal"`
	DeliveryFee decimal.Decimal `gorm:"type:decimal(15,2)" json:"delivery_fee"`
	GrandTotal  decimal.Decimal `gorm:"type:decimal(15,2)" json:"grand_total"`

	DeliveryAddress string `gorm:"type:text" json:"delivery_address"`

	PaymentMethod    string          `gorm:"type:varchar(100)" json:"payment_method"`
	PaymentSource    PaymentSource   `gorm:"type:varchar(20);default:'online'" json:"payment_source"`
	XenditInvoiceID  string          `gorm:"type:varchar(100);index" json:"xendit_invoice_id"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(15,2)" json:"commission_amount"`

	PaymentStatus PaymentStatus `gorm:"type:varchar(20);default:'Pending'" json:"payment_status"`
	OrderStatus   OrderStatus   `gorm:"type:varchar(30);default:'Placed'" json:"order_status"`
	OrderDate     time.Time     `json:"order_date"`

	// Relationships
	User       User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Restaurant Restaurant  `gorm:"foreignKey:RestaurantID" json:"restaurant,omitempty"`
	Items      []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}
