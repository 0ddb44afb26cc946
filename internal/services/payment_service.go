package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kainan_app_echo/internal/models"
)

// ErrPaymentNotConfirmed means promotion was attempted before the provider
// reported the intent paid
var ErrPaymentNotConfirmed = errors.New("payment not confirmed")

// ErrProviderNotRegistered means the restaurant has no Xendit sub-account and
// must not be charged for
var ErrProviderNotRegistered = errors.New("provider not registered with Xendit")

// errPromotionLost signals that a racing promotion inserted the ledger row
// first; the loser rolls back its order and adopts the winner's records
var errPromotionLost = errors.New("promotion lost the insert race")

// CartValidationError names the missing required cart field
type CartValidationError struct {
	Field string
}

func (e *CartValidationError) Error() string {
	return fmt.Sprintf("invalid cart payload: missing %s", e.Field)
}

// CartItem is one client-side cart line
type CartItem struct {
	FoodID       string          `json:"foodId"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Instructions string          `json:"instructions"`
}

// CartPayload is the client's locally cached cart, supplied at promotion
// time. It does not come from the provider and is never trusted blindly.
type CartPayload struct {
	UserID          uint                 `json:"userId"`
	Items           []CartItem           `json:"items"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	DeliveryFee     decimal.Decimal      `json:"deliveryFee"`
	GrandTotal      decimal.Decimal      `json:"grandTotal"`
	DeliveryAddress string               `json:"deliveryAddress"`
	RestaurantID    uint                 `json:"restaurantId"`
	PaymentMethod   string               `json:"paymentMethod"`
	PaymentSource   models.PaymentSource `json:"paymentSource"`
}

// ValidateCart checks every field required to materialize an order
func ValidateCart(cart CartPayload) error {
	switch {
	case cart.UserID == 0:
		return &CartValidationError{Field: "userId"}
	case len(cart.Items) == 0:
		return &CartValidationError{Field: "items"}
	case cart.DeliveryAddress == "":
		return &CartValidationError{Field: "deliveryAddress"}
	case cart.RestaurantID == 0:
		return &CartValidationError{Field: "restaurantId"}
	case cart.PaymentMethod == "":
		return &CartValidationError{Field: "paymentMethod"}
	}
	return nil
}

// IntentInitiation is the result of creating a remote payment intent
type IntentInitiation struct {
	CorrelationKey string
	InvoiceID      string
	InvoiceURL     string
}

// PromotionResult identifies the durable records a confirmed intent became
type PromotionResult struct {
	OrderID       string
	TransactionID uint
}

// PaymentService owns the payment-intent lifecycle: creating remote intents
// and promoting confirmed ones into a durable order + transaction pair.
type PaymentService struct {
	db       *gorm.DB
	store    IntentStore
	ledger   *TransactionLedger
	provider PaymentProvider
}

func NewPaymentService(db *gorm.DB, store IntentStore, ledger *TransactionLedger, provider PaymentProvider) *PaymentService {
	return &PaymentService{db: db, store: store, ledger: ledger, provider: provider}
}

// CreatePaymentIntent creates a hosted Xendit invoice for a cart and registers
// the pending intent. The merchant-registration check is a hard precondition:
// funds cannot be routed to a restaurant without a sub-account.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, restaurantID uint, amount decimal.Decimal, correlationKey, description string) (*IntentInitiation, error) {
	var restaurant models.Restaurant
	if err := s.db.WithContext(ctx).First(&restaurant, restaurantID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch restaurant: %w", err)
	}
	if restaurant.XenditSubAccountID == "" {
		return nil, ErrProviderNotRegistered
	}

	if correlationKey == "" {
		correlationKey = uuid.New().String()
	}
	if description == "" {
		description = fmt.Sprintf("Order at %s", restaurant.Title)
	}

	invoice, err := s.provider.CreateInvoice(ctx, correlationKey, amount, description)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	intent := PendingIntent{
		CorrelationKey: correlationKey,
		InvoiceID:      invoice.ID,
		Status:         IntentStatusAwaiting,
		Amount:         amount,
		ReceivedAt:     time.Now(),
	}
	if err := s.store.Put(ctx, correlationKey, intent); err != nil {
		return nil, fmt.Errorf("failed to register pending intent: %w", err)
	}

	return &IntentInitiation{
		CorrelationKey: correlationKey,
		InvoiceID:      invoice.ID,
		InvoiceURL:     invoice.InvoiceURL,
	}, nil
}

// CheckIntentStatus reports whether the intent is paid. It reflects only the
// intent store and never blocks; an expired or unknown key reads as unpaid.
func (s *PaymentService) CheckIntentStatus(ctx context.Context, correlationKey string) (bool, string, error) {
	intent, err := s.store.Get(ctx, correlationKey)
	if err != nil {
		return false, "", err
	}
	if intent == nil || intent.Status != IntentStatusPaid {
		return false, "", nil
	}
	return true, intent.Channel, nil
}

// PromoteOrder turns a confirmed intent into a durable order and transaction,
// exactly once in effect. Duplicate calls - sequential or racing - converge
// on the same pair: an existing ledger row short-circuits immediately, and the
// order create and ledger upsert commit in one database transaction, so a
// racing loser rolls back its order and adopts the winner's records. A
// partial failure leaves no order behind for a retry to duplicate.
func (s *PaymentService) PromoteOrder(ctx context.Context, invoiceID, correlationKey string, cart CartPayload) (*PromotionResult, error) {
	existing, err := s.ledger.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.OrderID != 0 {
		return s.resultFor(ctx, existing)
	}

	if err := ValidateCart(cart); err != nil {
		return nil, err
	}

	intent, err := s.store.Get(ctx, correlationKey)
	if err != nil {
		return nil, err
	}
	if intent == nil || intent.Status != IntentStatusPaid || intent.InvoiceID != invoiceID {
		return nil, ErrPaymentNotConfirmed
	}

	source := cart.PaymentSource
	if source == "" {
		source = models.PaymentSourceOnline
	}
	commission := ComputeCommission(source, cart.GrandTotal)

	order := models.Order{
		UUID:             uuid.New().String(),
		UserID:           cart.UserID,
		RestaurantID:     cart.RestaurantID,
		Subtotal:         cart.Subtotal,
		DeliveryFee:      cart.DeliveryFee,
		GrandTotal:       cart.GrandTotal,
		DeliveryAddress:  cart.DeliveryAddress,
		PaymentMethod:    cart.PaymentMethod,
		PaymentSource:    source,
		XenditInvoiceID:  invoiceID,
		CommissionAmount: commission,
		PaymentStatus:    models.PaymentStatusCompleted,
		OrderStatus:      models.OrderStatusPlaced,
		OrderDate:        time.Now(),
	}
	for _, item := range cart.Items {
		order.Items = append(order.Items, models.OrderItem{
			FoodID:       item.FoodID,
			Quantity:     item.Quantity,
			Price:        item.Price,
			Instructions: item.Instructions,
		})
	}
	var created *models.Transaction
	txErr := s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		row := models.Transaction{
			XenditInvoiceID: invoiceID,
			OrderID:         order.ID,
			RestaurantID:    cart.RestaurantID,
			Amount:          cart.GrandTotal,
			Commission:      commission,
			Source:          source,
			Status:          models.TransactionStatusCompleted,
			WeekEnding:      WeekEnding(time.Now()),
			ChannelMetadata: intent.ChannelMetadata,
		}
		c, err := NewTransactionLedger(dbtx).UpsertByInvoiceID(ctx, row)
		if err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}
		if c == nil {
			return fmt.Errorf("transaction row missing after upsert for invoice %s", invoiceID)
		}
		created = c

		if created.OrderID != order.ID {
			// A racing promotion won the insert; its order is the answer
			return errPromotionLost
		}
		return nil
	})
	if txErr != nil && !errors.Is(txErr, errPromotionLost) {
		return nil, txErr
	}

	// Retire the intent; a failure here is harmless, the TTL collects it
	if err := s.store.Delete(ctx, correlationKey); err != nil {
		log.Printf("Failed to retire intent %s: %v", correlationKey, err)
	}

	if errors.Is(txErr, errPromotionLost) {
		return s.resultFor(ctx, created)
	}
	return &PromotionResult{OrderID: order.UUID, TransactionID: created.ID}, nil
}

func (s *PaymentService) resultFor(ctx context.Context, tx *models.Transaction) (*PromotionResult, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, tx.OrderID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch promoted order: %w", err)
	}
	return &PromotionResult{OrderID: order.UUID, TransactionID: tx.ID}, nil
}

// CreateCashOrder places a cash-on-delivery order: no remote intent, a
// pending ledger row carrying the 10% cash commission, completed when the
// driver reports collection.
func (s *PaymentService) CreateCashOrder(ctx context.Context, cart CartPayload) (*PromotionResult, error) {
	cart.PaymentSource = models.PaymentSourceCash
	if cart.PaymentMethod == "" {
		cart.PaymentMethod = "cash"
	}
	if err := ValidateCart(cart); err != nil {
		return nil, err
	}

	commission := ComputeCommission(models.PaymentSourceCash, cart.GrandTotal)

	order := models.Order{
		UUID:             uuid.New().String(),
		UserID:           cart.UserID,
		RestaurantID:     cart.RestaurantID,
		Subtotal:         cart.Subtotal,
		DeliveryFee:      cart.DeliveryFee,
		GrandTotal:       cart.GrandTotal,
		DeliveryAddress:  cart.DeliveryAddress,
		PaymentMethod:    cart.PaymentMethod,
		PaymentSource:    models.PaymentSourceCash,
		CommissionAmount: commission,
		PaymentStatus:    models.PaymentStatusPending,
		OrderStatus:      models.OrderStatusPlaced,
		OrderDate:        time.Now(),
	}
	for _, item := range cart.Items {
		order.Items = append(order.Items, models.OrderItem{
			FoodID:       item.FoodID,
			Quantity:     item.Quantity,
			Price:        item.Price,
			Instructions: item.Instructions,
		})
	}
	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	tx := models.Transaction{
		// Cash orders never touch Xendit; the order UUID keys the ledger row
		XenditInvoiceID: "cash-" + order.UUID,
		OrderID:         order.ID,
		RestaurantID:    cart.RestaurantID,
		Amount:          cart.GrandTotal,
		Commission:      commission,
		Source:          models.PaymentSourceCash,
		Status:          models.TransactionStatusPending,
		WeekEnding:      WeekEnding(time.Now()),
	}
	if err := s.db.WithContext(ctx).Create(&tx).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	return &PromotionResult{OrderID: order.UUID, TransactionID: tx.ID}, nil
}

// MarkCashCollected completes a cash order's payment once the driver has
// collected, making the row visible to the weekly commission rollup
func (s *PaymentService) MarkCashCollected(ctx context.Context, orderUUID string) error {
	var order models.Order
	err := s.db.WithContext(ctx).Where("uuid = ?", orderUUID).First(&order).Error
	if err != nil {
		return err
	}
	if order.PaymentSource != models.PaymentSourceCash {
		return fmt.Errorf("order %s is not a cash order", orderUUID)
	}

	if err := s.db.WithContext(ctx).Model(&order).
		Update("payment_status", models.PaymentStatusCompleted).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("order_id = ?", order.ID).
		Update("status", models.TransactionStatusCompleted).Error
}
