// Package gateway abstracts the payment providers the marketplace charges
// through.
//
// Every provider implements the same small surface: describe itself, quote
// its processing fee, start a payment, and report the payment's state in a
// normalized vocabulary. Callers never see provider-specific status strings.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Errors
var (
	ErrUnknownGateway       = errors.New("gateway: unknown gateway")
	ErrUnsupportedCurrency  = errors.New("gateway: currency not supported by gateway")
	ErrPaymentNotFound      = errors.New("gateway: payment record not found")
	ErrDuplicatePayment     = errors.New("gateway: payment already initialized for this transaction")
	ErrInitializationFailed = errors.New("gateway: payment initialization failed")
	ErrNotConfigured        = errors.New("gateway: gateway is not configured")
	ErrGatewayUnavailable   = errors.New("gateway: provider temporarily unavailable")
	ErrInvalidSignature     = errors.New("gateway: invalid webhook signature")
)

// PaymentStatus is the normalized provider-side state of a payment attempt.
type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusSucceeded  PaymentStatus = "succeeded"
	StatusFailed     PaymentStatus = "failed"
	StatusCancelled  PaymentStatus = "cancelled"
	StatusRefunded   PaymentStatus = "refunded"
)

// Config describes a provider to clients choosing how to pay.
type Config struct {
	Name                string   `json:"name"`
	DisplayName         string   `json:"displayName"`
	SupportedCurrencies []string `json:"supportedCurrencies"`
	FeePercent          float64  `json:"feePercent"`
	IsActive            bool     `json:"isActive"`
}

// SupportsCurrency reports whether the provider settles in the currency.
func (c Config) SupportsCurrency(code string) bool {
	code = strings.ToUpper(code)
	for _, cur := range c.SupportedCurrencies {
		if cur == code {
			return true
		}
	}
	return false
}

// InitializeRequest carries everything a provider needs to start a payment.
type InitializeRequest struct {
	TransactionCode string            `json:"transactionCode"`
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency"`
	BuyerID         string            `json:"buyerId"`
	Description     string            `json:"description,omitempty"`
	ReturnURL       string            `json:"returnUrl,omitempty"`
	CancelURL       string            `json:"cancelUrl,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// InitializeResult is what the client needs to complete the payment.
type InitializeResult struct {
	GatewayTransactionID string        `json:"gatewayTransactionId"`
	PaymentURL           string        `json:"paymentUrl,omitempty"`
	ClientSecret         string        `json:"clientSecret,omitempty"`
	Status               PaymentStatus `json:"status"`
}

// StatusResult is a provider's normalized answer to a status poll.
type StatusResult struct {
	GatewayTransactionID string        `json:"gatewayTransactionId"`
	Status               PaymentStatus `json:"status"`
	FailureReason        string        `json:"failureReason,omitempty"`
}

// Gateway is one payment provider.
type Gateway interface {
	Config() Config
	// Fee returns the provider processing fee for a decimal amount.
	Fee(amount string) string
	InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	CheckStatus(ctx context.Context, gatewayTxnID string) (*StatusResult, error)
}

// PaymentRecord is the stored projection of one payment attempt through a
// provider. When the requested currency was not supported and the charge
// was converted, the original amount, currency and rate are kept so the
// client-facing numbers stay explainable.
type PaymentRecord struct {
	ID                   string        `json:"id"`
	TransactionCode      string        `json:"transactionCode"`
	Gateway              string        `json:"gateway"`
	GatewayTransactionID string        `json:"gatewayTransactionId"`
	Amount               string        `json:"amount"`
	Currency             string        `json:"currency"`
	OriginalAmount       string        `json:"originalAmount,omitempty"`
	OriginalCurrency     string        `json:"originalCurrency,omitempty"`
	ExchangeRate         float64       `json:"exchangeRate,omitempty"`
	Status               PaymentStatus `json:"status"`
	PaymentURL           string        `json:"paymentUrl,omitempty"`
	FailureReason        string        `json:"failureReason,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
	CompletedAt          *time.Time    `json:"completedAt,omitempty"`
}

// Store persists payment records.
type Store interface {
	Create(ctx context.Context, rec *PaymentRecord) error
	Get(ctx context.Context, id string) (*PaymentRecord, error)
	GetByTransactionCode(ctx context.Context, code string) (*PaymentRecord, error)
	GetByGatewayTxnID(ctx context.Context, gateway, gatewayTxnID string) (*PaymentRecord, error)
	Update(ctx context.Context, rec *PaymentRecord) error
}

// Terminal reports whether a payment status can no longer change.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}
