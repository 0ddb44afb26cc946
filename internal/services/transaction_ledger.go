package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kainan_app_echo/internal/models"
)

// TransactionLedger is the durable payment ledger keyed by Xendit invoice id.
// The unique index on xendit_invoice_id is enforced by the database; the
// ledger never recreates that guarantee in application code, it only arranges
// writes so concurrent duplicates converge instead of colliding.
type TransactionLedger struct {
	db *gorm.DB
}

func NewTransactionLedger(db *gorm.DB) *TransactionLedger {
	return &TransactionLedger{db: db}
}

// FindByInvoiceID returns the transaction for an invoice id, or nil if absent
func (l *TransactionLedger) FindByInvoiceID(ctx context.Context, invoiceID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := l.db.WithContext(ctx).Where("xendit_invoice_id = ?", invoiceID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// UpsertByInvoiceID inserts the transaction unless a row already holds its
// invoice id, in which case the existing row is left in place. The returned
// row is re-read so racing callers all observe the single canonical record:
// a uniqueness violation can never surface from this path. The result is nil
// without error if the row vanished between the insert and the re-read;
// callers must not assume a non-nil row.
func (l *TransactionLedger) UpsertByInvoiceID(ctx context.Context, tx models.Transaction) (*models.Transaction, error) {
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "xendit_invoice_id"}},
		DoNothing: true,
	}).Create(&tx).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	return l.FindByInvoiceID(ctx, tx.XenditInvoiceID)
}

// MergeChannelMetadata merges late webhook detail into an existing row.
// It is an idempotent no-op when no row exists for the invoice id.
func (l *TransactionLedger) MergeChannelMetadata(ctx context.Context, invoiceID string, metadata json.RawMessage) error {
	if len(metadata) == 0 {
		return nil
	}
	return l.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("xendit_invoice_id = ?", invoiceID).
		Update("channel_metadata", metadata).Error
}

// MarkCompleted transitions the row for an invoice id to completed
func (l *TransactionLedger) MarkCompleted(ctx context.Context, invoiceID string) error {
	return l.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("xendit_invoice_id = ?", invoiceID).
		Update("status", models.TransactionStatusCompleted).Error
}

// RestaurantsWithCompletedCash lists restaurants owing cash commission in the window
func (l *TransactionLedger) RestaurantsWithCompletedCash(ctx context.Context, weekStart, weekEnd time.Time) ([]uint, error) {
	var ids []uint
	err := l.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("source = ? AND status = ? AND week_ending > ? AND week_ending <= ?",
			models.PaymentSourceCash, models.TransactionStatusCompleted, weekStart, weekEnd).
		Distinct("restaurant_id").
		Pluck("restaurant_id", &ids).Error
	return ids, err
}

// CompletedCashByWeek returns a restaurant's completed cash rows in the window
func (l *TransactionLedger) CompletedCashByWeek(ctx context.Context, restaurantID uint, weekStart, weekEnd time.Time) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := l.db.WithContext(ctx).
		Where("restaurant_id = ? AND source = ? AND status = ? AND week_ending > ? AND week_ending <= ?",
			restaurantID, models.PaymentSourceCash, models.TransactionStatusCompleted, weekStart, weekEnd).
		Find(&txs).Error
	return txs, err
}
