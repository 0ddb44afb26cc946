package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"kainan_app_echo/internal/models"
)

const testWebhookSecret = "whsec_test"

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// failingStore returns a fixed error from Put, to exercise the failure ledger
type failingStore struct {
	err error
}

func (s *failingStore) Put(ctx context.Context, key string, intent PendingIntent) error {
	return s.err
}
func (s *failingStore) Get(ctx context.Context, key string) (*PendingIntent, error) {
	return nil, nil
}
func (s *failingStore) Delete(ctx context.Context, key string) error {
	return nil
}

func TestIngestRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewMemoryIntentStore()
	svc := NewWebhookService(db, store, NewTransactionLedger(db), testWebhookSecret)

	body := []byte(`{"id":"inv_1","external_id":"corr_1","status":"PAID","amount":500}`)

	err := svc.Ingest(ctx, body, "deadbeef")
	if !errors.Is(err, ErrUnauthorizedWebhook) {
		t.Fatalf("Ingest with bad signature = %v; want ErrUnauthorizedWebhook", err)
	}

	// A rejected callback must leave no trace
	if intent, _ := store.Get(ctx, "corr_1"); intent != nil {
		t.Errorf("intent store mutated by rejected callback: %+v", intent)
	}
	var count int64
	db.Model(&models.FailedWebhook{}).Count(&count)
	if count != 0 {
		t.Errorf("failed webhook rows after rejection = %d; want 0", count)
	}
}

func TestIngestFlatShape(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewMemoryIntentStore()
	svc := NewWebhookService(db, store, NewTransactionLedger(db), testWebhookSecret)

	body := []byte(`{"id":"inv_1","external_id":"corr_1","status":"PAID","payment_method":"GCASH","amount":500}`)
	if err := svc.Ingest(ctx, body, signBody(testWebhookSecret, body)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	intent, err := store.Get(ctx, "corr_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if intent == nil {
		t.Fatal("no intent recorded for flat callback")
	}
	if intent.Status != IntentStatusPaid || intent.InvoiceID != "inv_1" || intent.Channel != "GCASH" {
		t.Errorf("intent = %+v; want PAID, inv_1, GCASH", intent)
	}
	if !intent.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Amount = %s; want 500", intent.Amount)
	}
}

func TestIngestEnvelopedShape(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewMemoryIntentStore()
	svc := NewWebhookService(db, store, NewTransactionLedger(db), testWebhookSecret)

	tests := []struct {
		name       string
		body       string
		wantStatus IntentStatus
	}{
		{
			name:       "invoice.paid",
			body:       `{"event":"invoice.paid","data":{"id":"inv_2","external_id":"corr_2","paid_amount":250,"payment_channel":"OVO"}}`,
			wantStatus: IntentStatusPaid,
		},
		{
			name:       "invoice.expired",
			body:       `{"event":"invoice.expired","data":{"id":"inv_3","external_id":"corr_3"}}`,
			wantStatus: IntentStatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(tt.body)
			if err := svc.Ingest(ctx, body, signBody(testWebhookSecret, body)); err != nil {
				t.Fatalf("Ingest failed: %v", err)
			}
		})
	}

	paid, _ := store.Get(ctx, "corr_2")
	if paid == nil || paid.Status != IntentStatusPaid || paid.Channel != "OVO" {
		t.Errorf("paid intent = %+v; want PAID via OVO", paid)
	}
	if paid != nil && !paid.Amount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("paid amount = %s; want 250", paid.Amount)
	}
	expired, _ := store.Get(ctx, "corr_3")
	if expired == nil || expired.Status != IntentStatusExpired {
		t.Errorf("expired intent = %+v; want EXPIRED", expired)
	}
}

func TestIngestUnknownShapeIsNoOp(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewMemoryIntentStore()
	svc := NewWebhookService(db, store, NewTransactionLedger(db), testWebhookSecret)

	tests := []struct {
		name string
		body string
	}{
		{name: "unrelated object", body: `{"foo":"bar"}`},
		{name: "unknown event", body: `{"event":"invoice.viewed","data":{"external_id":"corr_9"}}`},
		{name: "flat without external_id", body: `{"id":"inv_9","status":"PAID"}`},
		{name: "not json", body: `not json at all`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(tt.body)
			if err := svc.Ingest(ctx, body, signBody(testWebhookSecret, body)); err != nil {
				t.Fatalf("Ingest = %v; want nil for unrecognized shape", err)
			}
		})
	}

	var count int64
	db.Model(&models.FailedWebhook{}).Count(&count)
	if count != 0 {
		t.Errorf("unrecognized shapes produced %d failure rows; want 0", count)
	}
}

func TestIngestCompletesExistingTransaction(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewMemoryIntentStore()
	ledger := NewTransactionLedger(db)
	svc := NewWebhookService(db, store, ledger, testWebhookSecret)

	tx := models.Transaction{
		XenditInvoiceID: "inv_1",
		RestaurantID:    1,
		Amount:          decimal.NewFromInt(500),
		Source:          models.PaymentSourceOnline,
		Status:          models.TransactionStatusPending,
	}
	if err := db.Create(&tx).Error; err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}

	body := []byte(`{"id":"inv_1","external_id":"corr_1","status":"PAID","payment_method":"CARD","amount":500}`)
	if err := svc.Ingest(ctx, body, signBody(testWebhookSecret, body)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	reloaded, err := ledger.FindByInvoiceID(ctx, "inv_1")
	if err != nil {
		t.Fatalf("FindByInvoiceID failed: %v", err)
	}
	if reloaded.Status != models.TransactionStatusCompleted {
		t.Errorf("transaction status = %s; want completed", reloaded.Status)
	}
	if len(reloaded.ChannelMetadata) == 0 {
		t.Error("channel metadata was not merged into the transaction")
	}

	// A duplicate delivery of the same terminal status is harmless
	if err := svc.Ingest(ctx, body, signBody(testWebhookSecret, body)); err != nil {
		t.Fatalf("duplicate Ingest failed: %v", err)
	}
	again, _ := ledger.FindByInvoiceID(ctx, "inv_1")
	if again.Status != models.TransactionStatusCompleted {
		t.Errorf("status after duplicate delivery = %s; want completed", again.Status)
	}
}

func TestIngestRecordsProcessingFailure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewWebhookService(db, &failingStore{err: errors.New("store down")}, NewTransactionLedger(db), testWebhookSecret)

	body := []byte(`{"id":"inv_1","external_id":"corr_1","status":"PAID","amount":500}`)
	if err := svc.Ingest(ctx, body, signBody(testWebhookSecret, body)); err != nil {
		t.Fatalf("Ingest = %v; processing failures must still acknowledge", err)
	}

	var failed models.FailedWebhook
	if err := db.First(&failed).Error; err != nil {
		t.Fatalf("no failure row recorded: %v", err)
	}
	if failed.XenditInvoiceID != "inv_1" || failed.ExternalID != "corr_1" {
		t.Errorf("failure row = %+v; want inv_1/corr_1", failed)
	}
	if failed.Error == "" || len(failed.Payload) == 0 {
		t.Error("failure row is missing the error or original payload")
	}
	if failed.Resolved {
		t.Error("new failure row must start unresolved")
	}
}

func TestReplayFailed(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	// First delivery fails because the intent store is down
	broken := NewWebhookService(db, &failingStore{err: errors.New("store down")}, NewTransactionLedger(db), testWebhookSecret)
	body := []byte(`{"id":"inv_1","external_id":"corr_1","status":"PAID","payment_method":"GCASH","amount":500}`)
	if err := broken.Ingest(ctx, body, signBody(testWebhookSecret, body)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	var failed models.FailedWebhook
	if err := db.First(&failed).Error; err != nil {
		t.Fatalf("no failure row recorded: %v", err)
	}

	// Replay against a healthy store succeeds and resolves the row
	store := NewMemoryIntentStore()
	svc := NewWebhookService(db, store, NewTransactionLedger(db), testWebhookSecret)
	if err := svc.ReplayFailed(ctx, failed.ID); err != nil {
		t.Fatalf("ReplayFailed failed: %v", err)
	}

	if err := db.First(&failed, failed.ID).Error; err != nil {
		t.Fatalf("failed to reload failure row: %v", err)
	}
	if !failed.Resolved || failed.RetryCount != 1 {
		t.Errorf("failure row = resolved=%v retries=%d; want resolved after 1 retry", failed.Resolved, failed.RetryCount)
	}

	intent, _ := store.Get(ctx, "corr_1")
	if intent == nil || intent.Status != IntentStatusPaid {
		t.Errorf("replay did not restore the intent: %+v", intent)
	}

	// Replaying a resolved row is a no-op
	if err := svc.ReplayFailed(ctx, failed.ID); err != nil {
		t.Fatalf("replay of resolved row = %v; want nil", err)
	}
	db.First(&failed, failed.ID)
	if failed.RetryCount != 1 {
		t.Errorf("retry count after resolved replay = %d; want 1", failed.RetryCount)
	}
}
