package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory SQLite database migrated with the
// full schema. cache=shared keeps the database alive across GORM's pooled
// connections; the test name keeps databases isolated between tests.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// fakeProvider is an in-memory PaymentProvider for tests
type fakeProvider struct {
	mu           sync.Mutex
	invoiceSeq   int
	payableCalls int
	failPayable  bool
}

func (f *fakeProvider) CreateInvoice(ctx context.Context, externalID string, amount decimal.Decimal, description string) (*XenditInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoiceSeq++
	id := fmt.Sprintf("inv_%d", f.invoiceSeq)
	return &XenditInvoice{
		ID:          id,
		ExternalID:  externalID,
		Status:      "PENDING",
		Amount:      amount,
		InvoiceURL:  "https://checkout.xendit.test/" + id,
		Description: description,
	}, nil
}

func (f *fakeProvider) GetInvoice(ctx context.Context, invoiceID string) (*XenditInvoice, error) {
	return &XenditInvoice{ID: invoiceID, Status: "PENDING"}, nil
}

func (f *fakeProvider) CreateSubAccount(ctx context.Context, profile SubAccountProfile) (string, error) {
	return "acct_test", nil
}

func (f *fakeProvider) CreatePayableInvoice(ctx context.Context, externalID string, amount decimal.Decimal, description string, dueDate time.Time) (*XenditInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPayable {
		return nil, errors.New("xendit unavailable")
	}
	f.payableCalls++
	id := fmt.Sprintf("payable_%d", f.payableCalls)
	return &XenditInvoice{
		ID:         id,
		ExternalID: externalID,
		Amount:     amount,
		InvoiceURL: "https://checkout.xendit.test/" + id,
	}, nil
}

func (f *fakeProvider) payableInvoiceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payableCalls
}
