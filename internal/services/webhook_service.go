package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kainan_app_echo/internal/models"
)

// ErrUnauthorizedWebhook is returned when a callback's signature does not
// match; it is the only ingestion failure surfaced to the provider.
var ErrUnauthorizedWebhook = errors.New("invalid webhook signature")

// CallbackEvent is the canonical form of a provider callback, extracted from
// whichever shape Xendit delivered
type CallbackEvent struct {
	InvoiceID       string
	ExternalID      string
	Status          string
	PaymentMethod   string
	Amount          decimal.Decimal
	ChannelMetadata json.RawMessage
}

// callbackBody covers both delivery shapes: a flat invoice object, and the
// enveloped {event, data} form
type callbackBody struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`

	ID             string          `json:"id"`
	ExternalID     string          `json:"external_id"`
	Status         string          `json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentChannel string          `json:"payment_channel"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
}

// WebhookService is the ingestion pipeline for Xendit callbacks:
// authenticate, normalize, update the intent store, enrich the ledger, and
// record anything unprocessable in the failed-webhook ledger.
type WebhookService struct {
	db     *gorm.DB
	store  IntentStore
	ledger *TransactionLedger
	secret string
}

func NewWebhookService(db *gorm.DB, store IntentStore, ledger *TransactionLedger, secret string) *WebhookService {
	return &WebhookService{db: db, store: store, ledger: ledger, secret: secret}
}

// VerifySignature checks the HMAC-SHA256 hex signature of the raw body
func (s *WebhookService) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Ingest processes one raw callback. A signature mismatch returns
// ErrUnauthorizedWebhook with no side effects; every other failure is
// recorded as a FailedWebhook and acknowledged with a nil error so the
// provider never retry-storms a broken payload.
func (s *WebhookService) Ingest(ctx context.Context, body []byte, signature string) error {
	if !s.VerifySignature(body, signature) {
		return ErrUnauthorizedWebhook
	}

	event, ok := s.normalize(body)
	if !ok {
		log.Printf("Unrecognized webhook shape, acknowledging as no-op")
		return nil
	}

	if err := s.process(ctx, event); err != nil {
		log.Printf("Webhook processing failed for invoice %s: %v", event.InvoiceID, err)
		s.recordFailure(ctx, event, body, err)
		return nil
	}

	return nil
}

// normalize extracts the canonical event from either delivery shape
func (s *WebhookService) normalize(body []byte) (CallbackEvent, bool) {
	var parsed callbackBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return CallbackEvent{}, false
	}

	// Enveloped form: {event: "invoice.paid", data: {...}}
	if parsed.Event != "" {
		var status string
		switch parsed.Event {
		case "invoice.paid":
			status = "PAID"
		case "invoice.expired":
			status = "EXPIRED"
		default:
			return CallbackEvent{}, false
		}

		var data callbackBody
		if len(parsed.Data) > 0 {
			if err := json.Unmarshal(parsed.Data, &data); err != nil {
				return CallbackEvent{}, false
			}
		}
		if data.ExternalID == "" {
			return CallbackEvent{}, false
		}
		if data.Status == "" {
			data.Status = status
		}
		return s.toEvent(data, parsed.Data), true
	}

	// Flat form: {status: "PAID", external_id: "...", ...}
	if parsed.Status != "" && parsed.ExternalID != "" {
		return s.toEvent(parsed, body), true
	}

	return CallbackEvent{}, false
}

func (s *WebhookService) toEvent(b callbackBody, raw json.RawMessage) CallbackEvent {
	amount := b.Amount
	if amount.IsZero() && !b.PaidAmount.IsZero() {
		amount = b.PaidAmount
	}
	method := b.PaymentMethod
	if b.PaymentChannel != "" {
		method = b.PaymentChannel
	}
	return CallbackEvent{
		InvoiceID:       b.ID,
		ExternalID:      b.ExternalID,
		Status:          b.Status,
		PaymentMethod:   method,
		Amount:          amount,
		ChannelMetadata: raw,
	}
}

func (s *WebhookService) process(ctx context.Context, event CallbackEvent) error {
	status := intentStatusFromCallback(event.Status)

	// Last write wins; the provider sends terminal statuses only once final,
	// and duplicate terminal deliveries are tolerated downstream.
	intent := PendingIntent{
		CorrelationKey:  event.ExternalID,
		InvoiceID:       event.InvoiceID,
		Status:          status,
		Amount:          event.Amount,
		Channel:         event.PaymentMethod,
		ChannelMetadata: event.ChannelMetadata,
		ReceivedAt:      time.Now(),
	}
	if err := s.store.Put(ctx, event.ExternalID, intent); err != nil {
		return fmt.Errorf("failed to update intent store: %w", err)
	}

	if status != IntentStatusPaid {
		return nil
	}

	// Idempotent enrichment: a transaction already promoted by an earlier
	// callback gets the late channel detail merged in and is completed.
	existing, err := s.ledger.FindByInvoiceID(ctx, event.InvoiceID)
	if err != nil {
		return fmt.Errorf("failed to look up transaction: %w", err)
	}
	if existing != nil {
		if err := s.ledger.MergeChannelMetadata(ctx, event.InvoiceID, event.ChannelMetadata); err != nil {
			return fmt.Errorf("failed to merge channel metadata: %w", err)
		}
		if err := s.ledger.MarkCompleted(ctx, event.InvoiceID); err != nil {
			return fmt.Errorf("failed to complete transaction: %w", err)
		}
	}

	return nil
}

func intentStatusFromCallback(status string) IntentStatus {
	switch status {
	case "PAID", "SETTLED":
		return IntentStatusPaid
	case "EXPIRED":
		return IntentStatusExpired
	case "FAILED":
		return IntentStatusFailed
	default:
		return IntentStatusAwaiting
	}
}

func (s *WebhookService) recordFailure(ctx context.Context, event CallbackEvent, body []byte, cause error) {
	failed := models.FailedWebhook{
		XenditInvoiceID: event.InvoiceID,
		ExternalID:      event.ExternalID,
		Payload:         json.RawMessage(body),
		Error:           cause.Error(),
	}
	if err := s.db.WithContext(ctx).Create(&failed).Error; err != nil {
		log.Printf("Failed to record failed webhook for invoice %s: %v", event.InvoiceID, err)
	}
}

// ReplayFailed re-runs ingestion on a stored failed callback. The signature
// check is skipped: the payload already authenticated when it first arrived.
func (s *WebhookService) ReplayFailed(ctx context.Context, id uint) error {
	var failed models.FailedWebhook
	if err := s.db.WithContext(ctx).First(&failed, id).Error; err != nil {
		return err
	}
	if failed.Resolved {
		return nil
	}

	event, ok := s.normalize(failed.Payload)
	if !ok {
		return fmt.Errorf("stored payload is not a recognizable callback")
	}

	processErr := s.process(ctx, event)

	updates := map[string]interface{}{
		"retry_count": gorm.Expr("retry_count + 1"),
	}
	if processErr == nil {
		updates["resolved"] = true
	}
	if err := s.db.WithContext(ctx).Model(&failed).Updates(updates).Error; err != nil {
		return err
	}

	return processErr
}
