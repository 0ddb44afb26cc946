package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// XenditInvoice is the provider-side payment intent. ID is assigned by
// Xendit; ExternalID carries the client correlation key.
type XenditInvoice struct {
	ID             string          `json:"id"`
	ExternalID     string          `json:"external_id"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	InvoiceURL     string          `json:"invoice_url"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	PaymentChannel string          `json:"payment_channel,omitempty"`
	Description    string          `json:"description,omitempty"`
}

// SubAccountProfile describes the merchant for payout routing
type SubAccountProfile struct {
	BusinessName string
	Email        string
}

// PaymentProvider is the capability the engine consumes from Xendit. A single
// explicit implementation per capability; no dynamic branching over SDK shapes.
type PaymentProvider interface {
	CreateInvoice(ctx context.Context, externalID string, amount decimal.Decimal, description string) (*XenditInvoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*XenditInvoice, error)
	CreateSubAccount(ctx context.Context, profile SubAccountProfile) (string, error)
	CreatePayableInvoice(ctx context.Context, externalID string, amount decimal.Decimal, description string, dueDate time.Time) (*XenditInvoice, error)
}

// XenditService talks to the Xendit REST API
type XenditService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewXenditService builds the client from environment configuration
func NewXenditService() *XenditService {
	baseURL := os.Getenv("XENDIT_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.xendit.co"
	}
	return &XenditService{
		baseURL: baseURL,
		apiKey:  os.Getenv("XENDIT_API_KEY"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *XenditService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}, out interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", s.baseURL, endpoint), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	// Xendit authenticates with the secret key as basic-auth username
	req.SetBasicAuth(s.apiKey, "")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("xendit request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CreateInvoice creates a hosted invoice for the given correlation key
func (s *XenditService) CreateInvoice(ctx context.Context, externalID string, amount decimal.Decimal, description string) (*XenditInvoice, error) {
	payload := map[string]interface{}{
		"external_id": externalID,
		"amount":      amount,
		"description": description,
	}

	var invoice XenditInvoice
	if err := s.makeRequest(ctx, http.MethodPost, "/v2/invoices", payload, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoice fetches the remote state of an invoice
func (s *XenditService) GetInvoice(ctx context.Context, invoiceID string) (*XenditInvoice, error) {
	var invoice XenditInvoice
	if err := s.makeRequest(ctx, http.MethodGet, "/v2/invoices/"+invoiceID, nil, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// CreateSubAccount registers a merchant-owned account for payout routing
func (s *XenditService) CreateSubAccount(ctx context.Context, profile SubAccountProfile) (string, error) {
	payload := map[string]interface{}{
		"type":  "OWNED",
		"email": profile.Email,
		"business_profile": map[string]interface{}{
			"business_type": "INDIVIDUAL",
			"company_name":  profile.BusinessName,
		},
		"capabilities": []string{"PAYMENTS", "PAYOUTS"},
	}

	var account struct {
		ID string `json:"id"`
	}
	if err := s.makeRequest(ctx, http.MethodPost, "/v2/accounts", payload, &account); err != nil {
		return "", err
	}
	return account.ID, nil
}

// CreatePayableInvoice creates an invoice the merchant pays to the platform,
// used for weekly cash-commission remittance
func (s *XenditService) CreatePayableInvoice(ctx context.Context, externalID string, amount decimal.Decimal, description string, dueDate time.Time) (*XenditInvoice, error) {
	duration := int(time.Until(dueDate).Seconds())
	if duration < 0 {
		duration = 0
	}
	payload := map[string]interface{}{
		"external_id":      externalID,
		"amount":           amount,
		"description":      description,
		"invoice_duration": duration,
	}

	var invoice XenditInvoice
	if err := s.makeRequest(ctx, http.MethodPost, "/v2/invoices", payload, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}
