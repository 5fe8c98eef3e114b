package gateway

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/metrics"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/money"
)

// StripeGateway charges through Stripe PaymentIntents.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	cfg           Config
}

// NewStripeGateway creates a Stripe provider. An empty secretKey leaves the
// provider registered but inactive so clients can see it exists.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	g := &StripeGateway{
		webhookSecret: webhookSecret,
		cfg: Config{
			Name:                "stripe",
			DisplayName:         "Stripe",
			SupportedCurrencies: []string{"USD", "EUR", "GBP", "AED", "SAR", "ILS"},
			FeePercent:          2.9,
			IsActive:            secretKey != "",
		},
	}
	if secretKey != "" {
		g.api = &client.API{}
		g.api.Init(secretKey, nil)
	}
	return g
}

func (g *StripeGateway) Config() Config {
	return g.cfg
}

func (g *StripeGateway) Fee(amount string) string {
	return money.Percent(amount, g.cfg.FeePercent)
}

func (g *StripeGateway) InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	if g.api == nil {
		return nil, ErrNotConfigured
	}
	if !g.cfg.SupportsCurrency(req.Currency) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, req.Currency)
	}
	cents, ok := money.Parse(req.Amount)
	if !ok {
		return nil, fmt.Errorf("%w: bad amount %q", ErrInitializationFailed, req.Amount)
	}

	params := &stripe.PaymentIntentParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(cents.Int64()),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
	}
	params.AddMetadata("transaction_code", req.TransactionCode)
	params.AddMetadata("buyer_id", req.BuyerID)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("stripe", "initialize", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInitializationFailed, err)
	}
	metrics.GatewayCalls.WithLabelValues("stripe", "initialize", "ok").Inc()

	return &InitializeResult{
		GatewayTransactionID: pi.ID,
		ClientSecret:         pi.ClientSecret,
		Status:               stripeStatus(pi.Status),
	}, nil
}

func (g *StripeGateway) CheckStatus(ctx context.Context, gatewayTxnID string) (*StatusResult, error) {
	if g.api == nil {
		return nil, ErrNotConfigured
	}

	pi, err := g.api.PaymentIntents.Get(gatewayTxnID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("stripe", "check_status", "error").Inc()
		return nil, fmt.Errorf("stripe check status: %w", err)
	}
	metrics.GatewayCalls.WithLabelValues("stripe", "check_status", "ok").Inc()

	result := &StatusResult{
		GatewayTransactionID: pi.ID,
		Status:               stripeStatus(pi.Status),
	}
	if pi.LastPaymentError != nil {
		result.FailureReason = pi.LastPaymentError.Msg
	}
	return result, nil
}

// VerifyWebhook checks the Stripe-Signature header and returns the event.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*stripe.Event, error) {
	if g.webhookSecret == "" {
		return nil, ErrNotConfigured
	}
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return &event, nil
}

func stripeStatus(s stripe.PaymentIntentStatus) PaymentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusProcessing:
		return StatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return StatusCancelled
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture:
		return StatusPending
	default:
		return StatusPending
	}
}

var _ Gateway = (*StripeGateway)(nil)
